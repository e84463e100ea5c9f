package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

// Covergate hands configured test commands to the system shell as opaque
// strings (sh -c, or cmd /C on Windows). The helpers here build command
// strings that behave the same on both shells.

const windowsOS = "windows"

// SafeTestCommand returns a command that prints message and exits 0.
// The message must not contain shell metacharacters.
func SafeTestCommand(message string) string {
	return "echo " + message
}

// SuccessfulTestCommand returns a command that exits 0 with no output.
func SuccessfulTestCommand() string {
	if runtime.GOOS == windowsOS {
		return "exit /b 0"
	}
	return "true"
}

// FailingTestCommand returns a command that writes message to stderr and
// exits 1.
func FailingTestCommand(message string) string {
	if runtime.GOOS == windowsOS {
		return fmt.Sprintf("echo %s 1>&2 & exit /b 1", message)
	}
	return fmt.Sprintf("echo %s >&2; exit 1", message)
}

// SleepCommand returns a command that sleeps for roughly the given number
// of seconds, for exercising timeouts.
func SleepCommand(seconds int) string {
	if runtime.GOOS == windowsOS {
		return fmt.Sprintf("ping -n %d 127.0.0.1 > nul", seconds+1)
	}
	return fmt.Sprintf("sleep %d", seconds)
}

// CopyCommand returns a command that copies src to dst, simulating a test
// suite that regenerates its coverage report on every run.
func CopyCommand(src, dst string) string {
	if runtime.GOOS == windowsOS {
		return fmt.Sprintf(`copy /y "%s" "%s" > nul`, src, dst)
	}
	return fmt.Sprintf(`cp "%s" "%s"`, src, dst)
}

// RunShell executes a command string through the system shell and returns
// its output, for verifying that helper commands behave as advertised.
func RunShell(t testing.TB, script string) (stdout, stderr string, exitCode int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shell, flag := "sh", "-c"
	if runtime.GOOS == windowsOS {
		shell, flag = "cmd", "/C"
	}

	cmd := exec.CommandContext(ctx, shell, flag, script)
	outBuf := &TestWriter{}
	errBuf := &TestWriter{}
	cmd.Stdout = outBuf
	cmd.Stderr = errBuf

	err := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return stdout, stderr, exitCode
}

// RequireCommand skips the test if the command is not available.
func RequireCommand(t testing.TB, command string) {
	t.Helper()

	if _, err := exec.LookPath(command); err != nil {
		t.Skipf("Command %q not found in PATH", command)
	}
}

// TempScript creates a temporary executable script and returns its path.
func TempScript(t testing.TB, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "test-script-*.sh")
	if err != nil {
		t.Fatalf("Failed to create temp script: %v", err)
	}
	defer func() { _ = tmpFile.Close() }() //nolint:errcheck

	if runtime.GOOS != windowsOS {
		content = "#!/bin/sh\n" + content
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write script content: %v", err)
	}

	if runtime.GOOS != windowsOS {
		if err := os.Chmod(tmpFile.Name(), 0755); err != nil { //nolint:gosec // G302: script must be executable
			t.Fatalf("Failed to make script executable: %v", err)
		}
	}

	return tmpFile.Name()
}

// IsWindows returns true if running on Windows.
func IsWindows() bool {
	return runtime.GOOS == windowsOS
}

// SkipOnWindows skips the test if running on Windows.
func SkipOnWindows(t testing.TB, reason string) {
	t.Helper()
	if IsWindows() {
		t.Skip("Skipping on Windows: " + reason)
	}
}

// SkipOnCI skips the test if running in a CI environment.
func SkipOnCI(t testing.TB, reason string) {
	t.Helper()
	if os.Getenv("CI") != "" {
		t.Skip("Skipping in CI: " + reason)
	}
}

// TestContext creates a context with a timeout suitable for tests.
// The context is automatically canceled when the test completes.
func TestContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
