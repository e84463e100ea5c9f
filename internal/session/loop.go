package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bebsworthy/covergate/internal/candidate"
	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/internal/patch"
)

// ErrAttemptInFlight is returned when OfferCandidate is entered while a
// previous attempt has not reached a terminal outcome. A session is
// strictly sequential; the test file and the report are shared state.
var ErrAttemptInFlight = errors.New("an attempt is already in flight")

// OfferCandidate runs one candidate through the loop: merge it into the
// committed content, write the merged file, execute the test command,
// and commit or revert on the evidence. The returned attempt carries
// the outcome and everything observed along the way; per-attempt
// failures are data, not errors. The only errors returned are reentry
// (ErrAttemptInFlight) and a nil candidate.
func (s *ValidationSession) OfferCandidate(ctx context.Context, cand *candidate.Candidate) (*Attempt, error) {
	if cand == nil {
		return nil, fmt.Errorf("candidate is required")
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrAttemptInFlight
	}
	defer s.inFlight.Store(false)

	attempt := &Attempt{
		Ordinal:        len(s.attempts) + 1,
		TestName:       cand.TestName,
		Behavior:       cand.TestBehavior,
		Tags:           cand.TestTags,
		Body:           cand.TestCode,
		Imports:        cand.NewImportsCode,
		ExitCode:       -1,
		CoverageBefore: s.baseline,
		StartedAt:      time.Now(),
	}
	debug.LogSection(fmt.Sprintf("Attempt %d", attempt.Ordinal))

	s.transition(statePatching)
	merged, insertedImports, err := patch.Merge(
		strings.Split(s.committed, "\n"),
		cand.ImportLines(),
		cand.BodyLines(),
		s.importOffset,
		s.testOffset,
		s.indent,
	)
	if err != nil {
		s.revert(false)
		return s.finish(attempt, OutcomeRejectedError, err.Error()), nil
	}
	mergedText := strings.Join(merged, "\n")

	if err := s.persistRecovery(); err != nil {
		s.revert(false)
		return s.finish(attempt, OutcomeRejectedError, err.Error()), nil
	}
	if err := os.WriteFile(s.testFile, []byte(mergedText), 0o644); err != nil {
		s.revert(true)
		return s.finish(attempt, OutcomeRejectedError, fmt.Sprintf("failed to write merged test file: %v", err)), nil
	}

	s.transition(stateExecuting)
	result := s.runTestCommand()
	attempt.ExitCode = result.ExitCode
	attempt.Stdout = result.Stdout
	attempt.Stderr = result.Stderr

	if result.ExitCode != 0 {
		if rerr := s.revert(true); rerr != nil {
			return s.finish(attempt, OutcomeRejectedError, rerr.Error()), nil
		}
		if result.Error != nil && attempt.Stderr == "" {
			attempt.Stderr = result.Error.Error()
		}
		attempt.Summary = s.summarizeFailure(ctx, attempt, mergedText)
		debug.Log("Candidate failed execution (exit %d), rolled back", result.ExitCode)
		return s.finish(attempt, OutcomeRejectedExecution, ""), nil
	}

	m, err := s.reader.Process(result.StartedAt)
	if err != nil {
		attempt.RawReport = s.readRawReport()
		_ = s.revert(true) // already on the error path; restore failure is logged
		debug.LogError(err, "coverage verification")
		return s.finish(attempt, OutcomeRejectedError, err.Error()), nil
	}
	attempt.CoverageAfter = m.Fraction

	if !s.tolerance.Accepts(m.Fraction, s.baseline) {
		if rerr := s.revert(true); rerr != nil {
			return s.finish(attempt, OutcomeRejectedError, rerr.Error()), nil
		}
		debug.LogCoverage(s.baseline, m.Fraction, string(OutcomeRejectedCoverage))
		return s.finish(attempt, OutcomeRejectedCoverage, ""), nil
	}

	s.transition(stateAccepting)
	s.committed = mergedText
	s.testOffset += insertedImports
	snapshot := perFileSnapshot(m, s.sourceFile)
	s.logCoverageShift(snapshot)
	s.baseline = m.Fraction
	s.perFile = snapshot
	s.clearRecovery()
	debug.LogCoverage(attempt.CoverageBefore, m.Fraction, string(OutcomeCommitted))
	return s.finish(attempt, OutcomeCommitted, ""), nil
}

// transition moves the state machine and logs the edge.
func (s *ValidationSession) transition(to state) {
	debug.LogTransition(s.id, string(s.state), string(to))
	s.state = to
}

// revert routes the attempt through REVERTING. When the merged content
// reached the disk the committed bytes are written back; a failed
// restore keeps the recovery sidecar in place as the repair path and
// escalates the outcome.
func (s *ValidationSession) revert(wrote bool) error {
	s.transition(stateReverting)
	if !wrote {
		s.clearRecovery()
		return nil
	}
	if err := os.WriteFile(s.testFile, []byte(s.committed), 0o644); err != nil {
		debug.LogError(err, "restoring test file; recovery sidecar kept")
		return fmt.Errorf("failed to restore test file: %w", err)
	}
	s.clearRecovery()
	return nil
}

// finish stamps the terminal outcome, records the attempt in history
// and the store, and returns to IDLE. errText lands in the stderr
// field for REJECTED_ERROR outcomes.
func (s *ValidationSession) finish(attempt *Attempt, outcome Outcome, errText string) *Attempt {
	attempt.Outcome = outcome
	if errText != "" {
		attempt.Stderr = errText
	}
	attempt.Elapsed = time.Since(attempt.StartedAt)
	s.transition(stateIdle)

	s.attempts = append(s.attempts, *attempt)
	if s.store != nil {
		if err := s.store.RecordAttempt(s.id, attempt); err != nil {
			debug.LogError(err, "recording attempt history")
		}
	}
	return attempt
}

// runTestCommand executes the configured command, retrying while it
// exits non-zero to absorb flaky infrastructure. The first zero exit
// stops the retries; a command that cannot start is not retried.
func (s *ValidationSession) runTestCommand() *executor.ExecResult {
	options := executor.ExecOptions{
		WorkingDir: s.commandDir,
		Timeout:    s.timeout,
		InheritEnv: true,
	}
	var result *executor.ExecResult
	for run := 1; run <= s.commandAttempts; run++ {
		debug.LogCommand(s.commandLine, nil, s.commandDir)
		res, err := s.runner.RunScript(s.commandLine, options)
		if err != nil {
			result = &executor.ExecResult{ExitCode: -1, StartedAt: time.Now(), Error: err}
			break
		}
		result = res
		debug.LogTiming("test command", result.Elapsed)
		if result.ExitCode == 0 {
			break
		}
		if executor.IsStartFailure(result.Error) {
			break
		}
		if run < s.commandAttempts {
			debug.Log("Test command exited %d, retrying (%d/%d)", result.ExitCode, run+1, s.commandAttempts)
		}
	}
	return result
}

// summarizeFailure asks the configured summarizer for a short failure
// explanation. Summarizer errors degrade to an empty summary.
func (s *ValidationSession) summarizeFailure(ctx context.Context, attempt *Attempt, mergedFile string) string {
	if s.summarizer == nil {
		return ""
	}
	summary, err := s.summarizer.SummarizeFailure(ctx, FailureContext{
		SourceFile: s.sourceFile,
		TestFile:   s.testFile,
		Command:    s.commandLine,
		ExitCode:   attempt.ExitCode,
		Stdout:     attempt.Stdout,
		Stderr:     attempt.Stderr,
		TestCode:   attempt.Body,
		MergedFile: mergedFile,
	})
	if err != nil {
		debug.LogError(err, "summarizing failure")
		return ""
	}
	return strings.TrimSpace(summary)
}

// logCoverageShift logs per-file coverage movement against the last
// snapshot, the way operators expect to read a commit.
func (s *ValidationSession) logCoverageShift(snapshot map[string]float64) {
	reference := filepath.Base(s.sourceFile)
	for file, fraction := range snapshot {
		previous, seen := s.perFile[file]
		if !seen || fraction <= previous {
			continue
		}
		if file == reference {
			debug.Log("Coverage for source file %s increased from %.2f%% to %.2f%%",
				file, previous*100, fraction*100)
		} else {
			debug.Log("Coverage for %s increased from %.2f%% to %.2f%%",
				file, previous*100, fraction*100)
		}
	}
}
