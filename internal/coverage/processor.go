package coverage

import (
	"fmt"
	"os"
	"time"

	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/pkg/config"
)

// Mode selects how a report reduces to a single measurement.
type Mode int

const (
	// ModeSingleFile reads only the reference source file's entry.
	ModeSingleFile Mode = iota
	// ModeAggregate sums line counts across every file in the report.
	ModeAggregate
	// ModeDiff restricts coverage to lines changed against a branch.
	ModeDiff
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeAggregate:
		return "aggregate"
	case ModeDiff:
		return "diff"
	default:
		return "single-file"
	}
}

// Measurement is the outcome of processing one coverage report.
type Measurement struct {
	Covered  []int
	Missed   []int
	Fraction float64
	// PerFile carries each file's own fraction in aggregate mode.
	PerFile map[string]float64
}

// referenceMatcher lets a dialect override how report entries resolve
// against a reference source file.
type referenceMatcher interface {
	MatchReference(r Report, reference string) (FileCoverage, bool)
}

// Processor reduces coverage reports to measurements. The dialect and
// mode are fixed at construction; the report file is re-read on every
// call because the test command rewrites it between attempts.
type Processor struct {
	dialect    Dialect
	reportPath string
	sourceFile string
	mode       Mode
	scope      *DiffScope
}

// NewProcessor builds a processor from a coverage config. workDir and
// runner are only consulted in diff mode, where the external
// diff-cover generator and the git fallback run.
func NewProcessor(cfg *config.CoverageConfig, sourceFile, workDir string, runner commandRunner) (*Processor, error) {
	dialect, err := ForKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	p := &Processor{
		dialect:    dialect,
		reportPath: cfg.ReportPath,
		sourceFile: sourceFile,
		mode:       ModeSingleFile,
	}
	switch {
	case cfg.Aggregate:
		p.mode = ModeAggregate
	case cfg.Diff:
		if runner == nil {
			return nil, fmt.Errorf("diff coverage requires a command runner")
		}
		p.mode = ModeDiff
		p.scope = NewDiffScope(cfg.Branch, workDir, runner)
	}
	debug.Log("Coverage processor: kind=%s mode=%s report=%s", dialect.Name(), p.mode, p.reportPath)
	return p, nil
}

// Mode returns the processing mode the processor was built with.
func (p *Processor) Mode() Mode { return p.mode }

// ReportPath returns the report file the processor reads.
func (p *Processor) ReportPath() string { return p.reportPath }

// Process verifies the report was regenerated after the command start
// time and reduces it according to the configured mode.
func (p *Processor) Process(since time.Time) (*Measurement, error) {
	if err := p.verifyReportUpdate(since); err != nil {
		return nil, err
	}
	switch p.mode {
	case ModeAggregate:
		return p.processAggregate()
	case ModeDiff:
		return p.processDiff()
	default:
		return p.processFile(p.reportPath)
	}
}

// verifyReportUpdate checks the report exists and its mtime is not
// older than the command start. The test command regenerates the
// report as a side effect, so an older mtime means it never ran the
// instrumented suite.
func (p *Processor) verifyReportUpdate(since time.Time) error {
	info, err := os.Stat(p.reportPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrReportMissing, p.reportPath)
	}
	if err != nil {
		return fmt.Errorf("failed to stat coverage report: %w", err)
	}
	if info.ModTime().Before(since) {
		return fmt.Errorf("%w: %s (modified %s, command started %s)",
			ErrReportStale, p.reportPath,
			info.ModTime().Format(time.RFC3339), since.Format(time.RFC3339))
	}
	return nil
}

func (p *Processor) processFile(path string) (*Measurement, error) {
	report, err := p.dialect.Parse(path)
	if err != nil {
		return nil, err
	}
	return p.reduceSingle(report), nil
}

func (p *Processor) processAggregate() (*Measurement, error) {
	report, err := p.dialect.Parse(p.reportPath)
	if err != nil {
		return nil, err
	}
	total, perFile := report.Aggregate()
	if total == 0 {
		lines := 0
		for _, fc := range report {
			lines += len(fc.Covered) + len(fc.Missed)
		}
		if lines == 0 {
			debug.Log("Coverage report %s carries no line data, aggregate coverage is 0", p.reportPath)
		}
	}
	return &Measurement{Fraction: total, PerFile: perFile}, nil
}

func (p *Processor) processDiff() (*Measurement, error) {
	jsonPath, err := p.scope.GenerateReport(p.reportPath)
	if err == nil {
		defer func() { _ = os.Remove(jsonPath) }()
		report, parseErr := diffCoverJSONDialect{}.Parse(jsonPath)
		if parseErr != nil {
			return nil, parseErr
		}
		return p.reduceSingle(report), nil
	}
	if !p.scope.Unavailable(err) {
		return nil, err
	}

	debug.Log("diff-cover unavailable (%v), restricting %s report to changed lines", err, p.dialect.Name())
	changed, err := p.scope.ChangedLines()
	if err != nil {
		return nil, err
	}
	report, err := p.dialect.Parse(p.reportPath)
	if err != nil {
		return nil, err
	}
	return p.reduceSingle(RestrictToChanged(report, changed)), nil
}

func (p *Processor) reduceSingle(report Report) *Measurement {
	fc, ok := p.matchReference(report)
	if !ok {
		debug.Log("Source file %s not present in %s report, treating as zero coverage",
			p.sourceFile, p.dialect.Name())
		return &Measurement{Covered: []int{}, Missed: []int{}}
	}
	return &Measurement{Covered: fc.Covered, Missed: fc.Missed, Fraction: fc.Fraction}
}

func (p *Processor) matchReference(report Report) (FileCoverage, bool) {
	if matcher, ok := p.dialect.(referenceMatcher); ok {
		return matcher.MatchReference(report, p.sourceFile)
	}
	return report.Lookup(p.sourceFile)
}
