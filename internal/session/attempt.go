package session

import (
	"context"
	"time"
)

// Outcome classifies how an offered candidate ended.
type Outcome string

const (
	// OutcomeCommitted means the candidate passed and raised coverage;
	// the merged file is the new durable state.
	OutcomeCommitted Outcome = "COMMITTED"

	// OutcomeRejectedExecution means the test command exited non-zero.
	OutcomeRejectedExecution Outcome = "REJECTED_EXECUTION"

	// OutcomeRejectedCoverage means the command passed but coverage did
	// not improve on the baseline.
	OutcomeRejectedCoverage Outcome = "REJECTED_COVERAGE"

	// OutcomeRejectedError means patching, execution plumbing, or report
	// processing failed in a way the loop absorbed.
	OutcomeRejectedError Outcome = "REJECTED_ERROR"
)

// Attempt records one candidate offered to a session. Per-attempt
// failures are carried here as data; OfferCandidate never returns an
// error for them.
type Attempt struct {
	// Ordinal is the 1-based position of the attempt within the session
	Ordinal int `json:"ordinal"`

	// TestName, Behavior and Tags are the candidate's metadata, kept for
	// reports and history
	TestName string `json:"testName,omitempty"`
	Behavior string `json:"behavior,omitempty"`
	Tags     string `json:"tags,omitempty"`

	// Body and Imports are the candidate exactly as offered
	Body    string `json:"body"`
	Imports string `json:"imports,omitempty"`

	// Outcome classifies the attempt
	Outcome Outcome `json:"outcome"`

	// ExitCode is the final exit code of the test command. -1 means the
	// command never ran or never started.
	ExitCode int `json:"exitCode"`

	// Stdout and Stderr are the command's output. For REJECTED_ERROR the
	// stderr field carries the text of the error that ended the attempt.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	// Summary is a short natural-language explanation of an execution
	// failure, produced by the configured summarizer. Empty when the
	// attempt committed or no summarizer is set.
	Summary string `json:"summary,omitempty"`

	// RawReport carries the unparsed coverage report text when report
	// processing failed and the session degraded to raw surfacing.
	RawReport string `json:"rawReport,omitempty"`

	// CoverageBefore is the session baseline when the attempt started.
	// CoverageAfter is the measured fraction after a zero-exit run; it is
	// meaningless for REJECTED_EXECUTION.
	CoverageBefore float64 `json:"coverageBefore"`
	CoverageAfter  float64 `json:"coverageAfter"`

	// StartedAt and Elapsed bound the attempt in time
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Committed reports whether the attempt was accepted into the file.
func (a *Attempt) Committed() bool {
	return a.Outcome == OutcomeCommitted
}

// FailureContext is what a summarizer sees about a failed execution.
type FailureContext struct {
	// SourceFile and TestFile are the session's file pair
	SourceFile string
	TestFile   string

	// Command is the test command that failed
	Command string

	// ExitCode, Stdout and Stderr come from the final run
	ExitCode int
	Stdout   string
	Stderr   string

	// TestCode is the candidate body under trial
	TestCode string

	// MergedFile is the full test file content the command ran against
	MergedFile string
}

// FailureSummarizer turns a failed execution into a short explanation
// for the attempt record. Summarizer errors are logged and produce an
// empty summary; they never fail the attempt.
type FailureSummarizer interface {
	SummarizeFailure(ctx context.Context, failure FailureContext) (string, error)
}

// AttemptStore persists attempt records. A store error degrades to a
// debug log entry; history is advisory, not load-bearing.
type AttemptStore interface {
	RecordAttempt(sessionID string, attempt *Attempt) error
}
