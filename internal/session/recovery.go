package session

import (
	"fmt"
	"os"

	"github.com/bebsworthy/covergate/internal/debug"
)

// recoverySuffix names the sidecar file that holds the committed
// content while an attempt is in flight. A crash mid-attempt leaves the
// sidecar behind; RecoverTestFile repairs from it on the next run.
const recoverySuffix = ".covergate-recovery"

// RecoveryPath returns the sidecar path for a test file.
func RecoveryPath(testFile string) string {
	return testFile + recoverySuffix
}

// HasRecovery reports whether a sidecar from an interrupted attempt
// exists next to the test file.
func HasRecovery(testFile string) bool {
	_, err := os.Stat(RecoveryPath(testFile))
	return err == nil
}

// RecoverTestFile restores a test file from a sidecar left behind by a
// crash mid-attempt, then removes the sidecar. It reports whether a
// recovery happened; no sidecar is not an error.
func RecoverTestFile(testFile string) (bool, error) {
	sidecar := RecoveryPath(testFile)
	content, err := os.ReadFile(sidecar)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read recovery sidecar: %w", err)
	}
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to restore test file from sidecar: %w", err)
	}
	if err := os.Remove(sidecar); err != nil {
		return false, fmt.Errorf("failed to remove recovery sidecar: %w", err)
	}
	debug.Log("Recovered %s from interrupted attempt", testFile)
	return true, nil
}

// persistRecovery writes the committed content to the sidecar. This
// happens before the merged attempt touches the test file, so the last
// good state survives a crash at any later point.
func (s *ValidationSession) persistRecovery() error {
	if err := os.WriteFile(RecoveryPath(s.testFile), []byte(s.committed), 0o644); err != nil {
		return fmt.Errorf("failed to persist recovery sidecar: %w", err)
	}
	return nil
}

// clearRecovery removes the sidecar once the attempt reached a terminal
// outcome and the test file matches the session state again.
func (s *ValidationSession) clearRecovery() {
	if err := os.Remove(RecoveryPath(s.testFile)); err != nil && !os.IsNotExist(err) {
		debug.LogError(err, "removing recovery sidecar")
	}
}
