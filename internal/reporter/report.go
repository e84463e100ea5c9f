// Package reporter formats validation results for the command line and
// provides the template failure summarizer used when no AI tool is wired.
package reporter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bebsworthy/covergate/internal/analyze"
	"github.com/bebsworthy/covergate/internal/coverage"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/internal/session"
)

// Exit codes for the run command. Code 2 is reserved for the gate signal
// so CI can distinguish "the run failed" from "the run finished but the
// coverage goal was missed".
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitGateMiss = 2
)

// ReportResult contains the final report output
type ReportResult struct {
	// Exit code for the process
	ExitCode int
	// Standard error output (for errors)
	Stderr string
	// Standard output (for success or informational messages)
	Stdout string
}

// RunReporter formats attempts and session summaries for terminal output
type RunReporter struct{}

// NewRunReporter creates a new run reporter
func NewRunReporter() *RunReporter {
	return &RunReporter{}
}

// FormatAttempt renders one attempt as a progress line, with the failure
// summary indented below it when present.
func (r *RunReporter) FormatAttempt(a *session.Attempt) string {
	name := a.TestName
	if name == "" {
		name = fmt.Sprintf("candidate %d", a.Ordinal)
	}

	var b strings.Builder
	switch a.Outcome {
	case session.OutcomeCommitted:
		fmt.Fprintf(&b, "#%d %s: committed, coverage %.1f%% -> %.1f%% (%s)",
			a.Ordinal, name, a.CoverageBefore*100, a.CoverageAfter*100, formatDuration(a.Elapsed))
	case session.OutcomeRejectedExecution:
		fmt.Fprintf(&b, "#%d %s: rejected, tests failed with exit code %d (%s)",
			a.Ordinal, name, a.ExitCode, formatDuration(a.Elapsed))
	case session.OutcomeRejectedCoverage:
		fmt.Fprintf(&b, "#%d %s: rejected, coverage %.1f%% did not improve on %.1f%% (%s)",
			a.Ordinal, name, a.CoverageAfter*100, a.CoverageBefore*100, formatDuration(a.Elapsed))
	case session.OutcomeRejectedError:
		fmt.Fprintf(&b, "#%d %s: rejected, attempt error (%s)",
			a.Ordinal, name, formatDuration(a.Elapsed))
	default:
		fmt.Fprintf(&b, "#%d %s: %s (%s)", a.Ordinal, name, a.Outcome, formatDuration(a.Elapsed))
	}

	if a.Summary != "" {
		for _, line := range strings.Split(strings.TrimSpace(a.Summary), "\n") {
			b.WriteString("\n    ")
			b.WriteString(line)
		}
	}
	if a.Outcome == session.OutcomeRejectedError && a.Stderr != "" {
		b.WriteString("\n    ")
		b.WriteString(firstLine(a.Stderr))
	}

	return b.String()
}

// FormatSummary renders the end-of-run summary block.
func (r *RunReporter) FormatSummary(s session.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session %s finished: %d attempts, %d committed, %d rejected\n",
		shortID(s.SessionID), s.Attempts, s.Committed, s.Rejected)
	// Coverage is a fraction; the desired target is configured in percent.
	fmt.Fprintf(&b, "Coverage: %.1f%%", s.Coverage*100)
	if s.DesiredCoverage > 0 {
		if s.ReachedDesired {
			fmt.Fprintf(&b, " (desired %.1f%% reached)", s.DesiredCoverage)
		} else {
			fmt.Fprintf(&b, " (desired %.1f%% not reached)", s.DesiredCoverage)
		}
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Test file: %s\n", s.TestFile)
	if s.Degraded {
		b.WriteString("Note: the coverage report could not be parsed; raw report text was surfaced instead.\n")
	}

	return b.String()
}

// Report turns a finished session into the process result. With strict
// set, missing a configured desired coverage maps to ExitGateMiss.
func (r *RunReporter) Report(s session.Summary, strict bool) *ReportResult {
	result := &ReportResult{
		ExitCode: ExitOK,
		Stdout:   r.FormatSummary(s),
	}

	if strict && s.DesiredCoverage > 0 && !s.ReachedDesired {
		result.ExitCode = ExitGateMiss
		result.Stderr = fmt.Sprintf("desired coverage %.1f%% not reached (final: %.1f%%)",
			s.DesiredCoverage, s.Coverage*100)
	}

	return result
}

// ReportFatal formats an error that ended the run before or outside the
// candidate loop, with a classification and fix hint where one is known.
func (r *RunReporter) ReportFatal(err error) *ReportResult {
	title, details := classifyFatal(err)
	return r.ReportError(title, err.Error(), details...)
}

// ReportError creates a report for a single error message
func (r *RunReporter) ReportError(errorType string, message string, details ...string) *ReportResult {
	var stderr strings.Builder

	fmt.Fprintf(&stderr, "[COVERGATE ERROR] %s: %s\n", errorType, message)

	if len(details) > 0 {
		stderr.WriteString("\nDetails:\n")
		for _, detail := range details {
			fmt.Fprintf(&stderr, "- %s\n", detail)
		}
	}

	stderr.WriteString("\nDebug with: covergate --debug <command>")

	return &ReportResult{
		ExitCode: ExitFatal,
		Stderr:   stderr.String(),
	}
}

// classifyFatal maps known fatal errors to a title and fix hints.
func classifyFatal(err error) (string, []string) {
	var discoveryErr *analyze.DiscoveryError
	switch {
	case errors.As(err, &discoveryErr):
		return "Layout discovery failed", []string{
			fmt.Sprintf("The analyzer could not determine %s for the test file", discoveryErr.Field),
			"Check that the test file contains at least one test in a recognized framework",
			"AI-based analysis (--ai) handles layouts the line scanner cannot",
		}
	case errors.Is(err, session.ErrRecoveryPending):
		return "Interrupted attempt detected", []string{
			"A previous run stopped while a candidate was written to the test file",
			"The committed content is preserved in the .covergate-recovery sidecar next to the test file",
			"Re-run to restore it, or restore the sidecar manually",
		}
	case errors.Is(err, executor.ErrCommandNotFound):
		return "Test command not found", []string{
			"The configured test command's program is not installed or not in PATH",
			"Check the command in .covergate.json and the tools it needs",
		}
	case errors.Is(err, executor.ErrTimeout):
		return "Test command timed out", []string{
			"The baseline run exceeded the configured timeout",
			"Increase timeout_sec in .covergate.json or speed up the suite",
		}
	case errors.Is(err, executor.ErrInvalidWorkingDirectory):
		return "Working directory error", []string{
			"Ensure the configured dir exists relative to the project root",
		}
	case errors.Is(err, coverage.ErrUnsupportedReportKind):
		return "Unsupported coverage report kind", []string{
			fmt.Sprintf("Supported kinds: %s", strings.Join(coverage.Kinds(), ", ")),
		}
	}
	return "Run failed", nil
}

// formatDuration renders an elapsed time compactly: milliseconds under a
// second, one decimal of seconds under a minute, m+s above.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// shortID abbreviates a session id the way git abbreviates hashes.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
