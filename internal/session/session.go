// Package session implements the coverage-gated validation loop: one
// candidate test at a time is merged into a live test file, the
// project's test command runs, and the candidate is committed when the
// suite passes and measured coverage improves on the session baseline.
// Anything else reverts the file to its last committed bytes.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bebsworthy/covergate/internal/analyze"
	"github.com/bebsworthy/covergate/internal/coverage"
	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/pkg/config"
)

// ErrRecoveryPending is returned by New when a recovery sidecar from an
// interrupted attempt still sits next to the test file. The caller must
// run RecoverTestFile (or remove the sidecar) before starting a session.
var ErrRecoveryPending = errors.New("recovery sidecar present from an interrupted attempt")

// ScriptRunner executes the configured test command through the system
// shell. *executor.CommandExecutor is the production implementation.
type ScriptRunner interface {
	RunScript(script string, options executor.ExecOptions) (*executor.ExecResult, error)
}

// CoverageReader reduces the regenerated coverage report to a
// measurement. *coverage.Processor is the production implementation.
type CoverageReader interface {
	Process(since time.Time) (*coverage.Measurement, error)
	ReportPath() string
}

// Options configures a validation session. SourceFile, TestFile,
// Command, Coverage and Analyzer are required. Runner and Reader exist
// so tests can substitute the process and report boundaries; production
// callers leave them nil.
type Options struct {
	// SourceFile is the file whose coverage the session grows
	SourceFile string

	// TestFile is the live test file candidates are merged into
	TestFile string

	// WorkDir is the project root, used for relative paths in analysis
	// and as the default command directory. Defaults to ".".
	WorkDir string

	// Command describes the test command, its directory, timeout and
	// retry budget
	Command *config.CommandConfig

	// Coverage describes the report the command regenerates
	Coverage *config.CoverageConfig

	// DesiredCoverage is the target percentage; 0 means no target
	DesiredCoverage float64

	// Tolerance is the acceptance band; the zero value compares raw
	Tolerance ToleranceBand

	// Analyzer discovers the test file layout before any candidate runs
	Analyzer analyze.Analyzer

	// Summarizer explains execution failures; nil disables summaries
	Summarizer FailureSummarizer

	// Store receives attempt records; nil disables persistence
	Store AttemptStore

	// Runner overrides the command executor
	Runner ScriptRunner

	// Reader overrides the coverage processor
	Reader CoverageReader
}

// ValidationSession owns one (source file, test file) validation
// effort: the committed file content, the coverage baseline, and the
// insertion offsets candidates are merged at. All state is in memory;
// the test file is the only durable artifact.
type ValidationSession struct {
	id         string
	sourceFile string
	testFile   string
	workDir    string
	language   string

	commandLine     string
	commandDir      string
	timeout         time.Duration
	commandAttempts int
	desired         float64
	tolerance       ToleranceBand

	runner     ScriptRunner
	reader     CoverageReader
	summarizer FailureSummarizer
	store      AttemptStore

	indent       int
	importOffset int
	testOffset   int
	framework    string

	committed string
	baseline  float64
	perFile   map[string]float64
	rawReport string
	degraded  bool

	state    state
	inFlight atomic.Bool
	attempts []Attempt
}

// state names the loop's position for transition logging.
type state string

const (
	stateIdle      state = "IDLE"
	statePatching  state = "PATCHING"
	stateExecuting state = "EXECUTING"
	stateAccepting state = "ACCEPTING"
	stateReverting state = "REVERTING"
)

// New builds a session: it discovers the test file layout, runs the
// test command once to establish the coverage baseline, and returns a
// session ready to take candidates. Discovery exhaustion surfaces as a
// *analyze.DiscoveryError; a failing baseline run is fatal too.
func New(ctx context.Context, opts Options) (*ValidationSession, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if HasRecovery(opts.TestFile) {
		return nil, fmt.Errorf("%w: %s", ErrRecoveryPending, RecoveryPath(opts.TestFile))
	}

	content, err := os.ReadFile(opts.TestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	commandDir := opts.Command.Dir
	if commandDir == "" {
		commandDir = workDir
	}

	s := &ValidationSession{
		id:          uuid.NewString(),
		sourceFile:  opts.SourceFile,
		testFile:    opts.TestFile,
		workDir:     workDir,
		language:    analyze.LanguageForFile(opts.SourceFile),
		commandLine: opts.Command.Command,
		commandDir:  commandDir,
		timeout:     time.Duration(opts.Command.TimeoutSec) * time.Second,
		desired:     opts.DesiredCoverage,
		tolerance:   opts.Tolerance,
		runner:      opts.Runner,
		summarizer:  opts.Summarizer,
		store:       opts.Store,
		committed:   string(content),
		state:       stateIdle,
	}
	s.commandAttempts = opts.Command.Retries + 1
	if s.commandAttempts < 1 {
		s.commandAttempts = 1
	}

	layout, err := analyze.Discover(ctx, opts.Analyzer, analyze.Target{
		Path:     opts.TestFile,
		RelPath:  relativeTo(workDir, opts.TestFile),
		Language: s.language,
	})
	if err != nil {
		return nil, err
	}
	s.indent = layout.HeaderIndent
	s.testOffset = layout.TestInsertAfter
	s.importOffset = layout.ImportInsertAfter
	s.framework = layout.Framework

	var cmdExec *executor.CommandExecutor
	if s.runner == nil {
		cmdExec = executor.NewCommandExecutor(s.timeout)
		s.runner = cmdExec
	}
	s.reader = opts.Reader
	if s.reader == nil {
		if cmdExec == nil {
			cmdExec = executor.NewCommandExecutor(s.timeout)
		}
		processor, err := coverage.NewProcessor(opts.Coverage, opts.SourceFile, commandDir, cmdExec)
		if err != nil {
			return nil, err
		}
		s.reader = processor
	}

	if err := s.runBaseline(); err != nil {
		return nil, err
	}
	return s, nil
}

func validateOptions(opts Options) error {
	if opts.SourceFile == "" {
		return fmt.Errorf("source file is required")
	}
	if opts.TestFile == "" {
		return fmt.Errorf("test file is required")
	}
	if opts.Command == nil || strings.TrimSpace(opts.Command.Command) == "" {
		return fmt.Errorf("test command is required")
	}
	if opts.Coverage == nil && opts.Reader == nil {
		return fmt.Errorf("coverage configuration is required")
	}
	if opts.Analyzer == nil {
		return fmt.Errorf("layout analyzer is required")
	}
	return nil
}

// runBaseline executes the test command against the untouched file and
// establishes the coverage baseline. A non-zero exit is fatal: a
// command that cannot pass on the committed content cannot judge
// candidates. Report parse failures degrade the session to raw-report
// surfacing instead of failing it.
func (s *ValidationSession) runBaseline() error {
	debug.LogSection("Baseline Coverage")
	result := s.runTestCommand()
	if result.ExitCode != 0 {
		debug.Log("Baseline stdout:\n%s", result.Stdout)
		debug.Log("Baseline stderr:\n%s", result.Stderr)
		return fmt.Errorf("baseline run of %q exited with code %d; is the test command correct?",
			s.commandLine, result.ExitCode)
	}

	m, err := s.reader.Process(result.StartedAt)
	if err != nil {
		if errors.Is(err, coverage.ErrReportMissing) || errors.Is(err, coverage.ErrReportStale) {
			return fmt.Errorf("baseline coverage report was not produced: %w", err)
		}
		debug.Log("Baseline report could not be parsed (%v); degrading to raw report surfacing", err)
		s.degraded = true
		s.rawReport = s.readRawReport()
		return nil
	}
	s.baseline = m.Fraction
	s.perFile = perFileSnapshot(m, s.sourceFile)
	debug.Log("Initial coverage: %.2f%%", s.baseline*100)
	return nil
}

// readRawReport loads the report file verbatim for degraded surfacing.
// Best effort: an unreadable report yields an empty string.
func (s *ValidationSession) readRawReport() string {
	content, err := os.ReadFile(s.reader.ReportPath())
	if err != nil {
		debug.Log("Raw report unavailable: %v", err)
		return ""
	}
	return string(content)
}

// perFileSnapshot keeps the attribution map: the report's own per-file
// fractions in aggregate mode, otherwise the reference file alone.
func perFileSnapshot(m *coverage.Measurement, sourceFile string) map[string]float64 {
	if len(m.PerFile) > 0 {
		snapshot := make(map[string]float64, len(m.PerFile))
		for file, fraction := range m.PerFile {
			snapshot[file] = fraction
		}
		return snapshot
	}
	return map[string]float64{filepath.Base(sourceFile): m.Fraction}
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// ID returns the session identifier used in logs and history.
func (s *ValidationSession) ID() string { return s.id }

// BaselineCoverage returns the raw fraction measured after the most
// recent commit, or the initial run.
func (s *ValidationSession) BaselineCoverage() float64 { return s.baseline }

// Degraded reports whether the session fell back to raw-report
// surfacing because the report could not be parsed.
func (s *ValidationSession) Degraded() bool { return s.degraded }

// DesiredReached reports whether the baseline meets the configured
// target percentage. Always false without a target.
func (s *ValidationSession) DesiredReached() bool {
	return s.desired > 0 && s.baseline*100 >= s.desired
}

// History returns a copy of every attempt recorded so far.
func (s *ValidationSession) History() []Attempt {
	history := make([]Attempt, len(s.attempts))
	copy(history, s.attempts)
	return history
}

// Summary is the session's final report shape: identification, the
// configuration that drove it, and the attempt tally.
type Summary struct {
	SessionID       string  `json:"sessionId"`
	SourceFile      string  `json:"sourceFile"`
	TestFile        string  `json:"testFile"`
	Language        string  `json:"language"`
	Framework       string  `json:"framework"`
	Command         string  `json:"command"`
	CommandDir      string  `json:"commandDir"`
	ReportPath      string  `json:"reportPath"`
	DesiredCoverage float64 `json:"desiredCoverage,omitempty"`
	ReachedDesired  bool    `json:"reachedDesired"`
	Coverage        float64 `json:"coverage"`
	Degraded        bool    `json:"degraded,omitempty"`
	Attempts        int     `json:"attempts"`
	Committed       int     `json:"committed"`
	Rejected        int     `json:"rejected"`
}

// Summarize reports the session state as pure data.
func (s *ValidationSession) Summarize() Summary {
	committed := 0
	for i := range s.attempts {
		if s.attempts[i].Committed() {
			committed++
		}
	}
	return Summary{
		SessionID:       s.id,
		SourceFile:      s.sourceFile,
		TestFile:        s.testFile,
		Language:        s.language,
		Framework:       s.framework,
		Command:         s.commandLine,
		CommandDir:      s.commandDir,
		ReportPath:      s.reader.ReportPath(),
		DesiredCoverage: s.desired,
		ReachedDesired:  s.DesiredReached(),
		Coverage:        s.baseline,
		Degraded:        s.degraded,
		Attempts:        len(s.attempts),
		Committed:       committed,
		Rejected:        len(s.attempts) - committed,
	}
}
