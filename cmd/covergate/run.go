// Package main provides the run command for covergate
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/covergate/internal/ai"
	"github.com/bebsworthy/covergate/internal/analyze"
	"github.com/bebsworthy/covergate/internal/candidate"
	"github.com/bebsworthy/covergate/internal/config"
	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/internal/filter"
	"github.com/bebsworthy/covergate/internal/reporter"
	"github.com/bebsworthy/covergate/internal/session"
	"github.com/bebsworthy/covergate/internal/store"
	"github.com/bebsworthy/covergate/internal/watcher"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// osExit is a variable to allow mocking os.Exit in tests
var osExit = os.Exit

// Run command flags
var (
	candidatesPath string
	watchDir       string
	runSourceFile  string
	runTestFile    string
	useAI          bool
	runAITool      string
	jsonSummary    bool
	strictFlag     bool
	candidateLimit int
	parallelCap    int
)

// defaultHistoryPath is where attempt history lands when the
// configuration does not name a database.
const defaultHistoryPath = ".covergate/history.db"

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [changed-files...]",
	Short: "Validate candidate tests against the coverage gate",
	Long: `Run a validation session: merge candidate tests one at a time into the
configured test file, execute the project's test command after each
insertion, and keep only the candidates that leave the suite green and
move coverage forward. Everything else is reverted byte for byte.

Candidates come from a YAML or JSON batch file (--candidates), from
stdin (--candidates -), or from a directory watched for new batch files
(--watch). With changed files as arguments the configured targets they
map to are each validated in their own session, in parallel where the
targets do not share a working directory or report path; --candidates
then names a directory holding one batch file per source, found by the
source's base name (src/calc.py reads calc.yaml, calc.yml or
calc.json).

Exit codes:
  0  session finished (rejected candidates are not failures)
  1  fatal error: configuration, baseline run, or file system
  2  --strict was set and the desired coverage was not reached`,
	Example: `  # Validate a batch of candidates
  covergate run --candidates tests.yaml

  # Stream candidates from a generator
  generate-tests | covergate run --candidates -

  # Keep validating as batch files appear
  covergate run --watch ./incoming

  # Validate an explicit source/test pair
  covergate run --source src/calc.py --test tests/test_calc.py --candidates tests.yaml

  # Validate the targets affected by changed files
  covergate run src/calc.py src/api/handlers.py --candidates ./batches

  # Fail CI when 80% is configured but not reached
  covergate run --candidates tests.yaml --strict`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&candidatesPath, "candidates", "", "Candidate batch file, \"-\" for stdin, or a directory in changed-files mode")
	runCmd.Flags().StringVar(&watchDir, "watch", "", "Directory to watch for candidate batch files")
	runCmd.Flags().StringVar(&runSourceFile, "source", "", "Source file whose coverage the session grows")
	runCmd.Flags().StringVar(&runTestFile, "test", "", "Test file candidates are merged into")
	runCmd.Flags().BoolVar(&useAI, "ai", false, "Use an AI CLI tool for layout analysis and failure summaries")
	runCmd.Flags().StringVar(&runAITool, "ai-tool", "", "AI tool to use (claude, gemini)")
	runCmd.Flags().BoolVar(&jsonSummary, "json", false, "Print session summaries as JSON")
	runCmd.Flags().BoolVar(&strictFlag, "strict", false, "Exit with code 2 when the desired coverage is not reached")
	runCmd.Flags().IntVar(&candidateLimit, "max-candidates", 0, "Stop after this many candidates (0 uses the configured budget)")
	runCmd.Flags().IntVar(&parallelCap, "parallel", 0, "Concurrent sessions in changed-files mode (default 4)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate, err := newGateRunner(cfg)
	if err != nil {
		return err
	}
	defer gate.close()

	if len(args) > 0 {
		return gate.runChanged(ctx, args)
	}
	return gate.runSingle(ctx)
}

// loadConfig loads the effective configuration: the --config path when
// set, otherwise the nearest .covergate.json with monorepo overlays
// applied for the current directory.
func loadConfig() (*pkgconfig.Config, error) {
	loader := config.NewLoader()

	if configPath != "" {
		cfg, err := loader.LoadFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := loader.LoadForMonorepo(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// historyPath resolves the attempt-history database location.
func historyPath(cfg *pkgconfig.Config) string {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath
	}
	return defaultHistoryPath
}

// gateRunner bundles the collaborators shared by every session in a
// run: the layout analyzer, the failure summarizer, the history store,
// and the terminal reporter.
type gateRunner struct {
	cfg        *pkgconfig.Config
	mapper     *watcher.TargetMapper
	reporter   *reporter.RunReporter
	analyzer   analyze.Analyzer
	summarizer session.FailureSummarizer
	history    *store.Store
	workDir    string
}

func newGateRunner(cfg *pkgconfig.Config) (*gateRunner, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	g := &gateRunner{
		cfg:      cfg,
		mapper:   watcher.NewTargetMapper(cfg),
		reporter: reporter.NewRunReporter(),
		workDir:  workDir,
	}

	if useAI {
		client := ai.NewClient(executor.NewCommandExecutor(2 * time.Minute))
		options := ai.AIOptions{Tool: runAITool, WorkingDir: workDir, Timeout: 2 * time.Minute}
		g.analyzer = ai.NewLayoutAnalyzer(client, options)
		g.summarizer = ai.NewSummarizer(client, options)
	} else {
		g.analyzer = analyze.NewLineScanner()
		g.summarizer = templateSummarizer(cfg)
	}

	// History never blocks a run: an unopenable store only costs the
	// record, not the session.
	history, err := store.Open(historyPath(cfg))
	if err != nil {
		debug.LogError(err, "opening history store")
	} else {
		g.history = history
	}
	return g, nil
}

func (g *gateRunner) close() {
	if g.history != nil {
		if err := g.history.Close(); err != nil {
			debug.LogError(err, "closing history store")
		}
	}
}

// templateSummarizer builds the fallback failure summarizer, wiring in
// the configured output filter when one is set.
func templateSummarizer(cfg *pkgconfig.Config) session.FailureSummarizer {
	if cfg.OutputFilter == nil {
		return reporter.NewTemplateSummarizer(nil)
	}
	f, err := filter.NewOutputFilter(cfg.OutputFilter)
	if err != nil {
		debug.LogError(err, "compiling output filter")
		return reporter.NewTemplateSummarizer(nil)
	}
	return reporter.NewTemplateSummarizer(f)
}

// runSingle validates one target: the --source/--test pair when given,
// otherwise the single configured target.
func (g *gateRunner) runSingle(ctx context.Context) error {
	match, err := g.resolveTarget()
	if err != nil {
		return err
	}

	source, err := openCandidateSource()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			debug.LogError(cerr, "closing candidate source")
		}
	}()

	summary, err := g.validate(ctx, match, source, os.Stdout)
	if err != nil {
		emitReport(g.reporter.ReportFatal(err))
		return nil
	}
	g.finish([]session.Summary{*summary})
	return nil
}

// resolveTarget picks the target for a single-session run. Explicit
// --source/--test flags win; otherwise the configuration must name
// exactly one target.
func (g *gateRunner) resolveTarget() (*watcher.TargetMatch, error) {
	if (runSourceFile == "") != (runTestFile == "") {
		return nil, fmt.Errorf("--source and --test must be used together")
	}
	if runSourceFile != "" {
		return g.mapper.Resolve(&pkgconfig.TargetConfig{
			SourceFile: runSourceFile,
			TestFile:   runTestFile,
		}), nil
	}

	switch len(g.cfg.Targets) {
	case 0:
		return nil, fmt.Errorf("no target configured; pass --source and --test, or add targets to %s", config.ConfigFileName)
	case 1:
		return g.mapper.Resolve(g.cfg.Targets[0]), nil
	default:
		return nil, fmt.Errorf("%d targets configured; pass --source and --test, or the changed files as arguments", len(g.cfg.Targets))
	}
}

// openCandidateSource builds the candidate source from the flags:
// --watch wins, then --candidates, where "-" reads stdin.
func openCandidateSource() (candidate.Source, error) {
	if watchDir != "" {
		source, err := candidate.NewDirSource(watchDir)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Watching %s for candidate batches (Ctrl-C to finish)...\n", watchDir)
		return source, nil
	}

	switch candidatesPath {
	case "":
		return nil, fmt.Errorf("no candidate source; use --candidates <file> or --watch <dir>")
	case "-":
		return candidate.NewStdinSource(), nil
	default:
		return candidate.NewFileSource(candidatesPath)
	}
}

// validate drives one validation session over a candidate source and
// returns its summary. Fatal conditions (unreadable files, failing
// baseline, discovery exhaustion) come back as errors; rejected
// candidates are ordinary attempts inside the summary.
func (g *gateRunner) validate(ctx context.Context, match *watcher.TargetMatch, source candidate.Source, out io.Writer) (*session.Summary, error) {
	if match.Command == nil || match.Coverage == nil {
		return nil, fmt.Errorf("no test command or coverage report configured for %s", match.Target.SourceFile)
	}

	if recovered, err := session.RecoverTestFile(match.Target.TestFile); err != nil {
		return nil, err
	} else if recovered {
		fmt.Fprintf(out, "Restored %s from an interrupted attempt\n", match.Target.TestFile)
	}

	opts := session.Options{
		SourceFile: match.Target.SourceFile,
		TestFile:   match.Target.TestFile,
		WorkDir:    g.workDir,
		Command:    match.Command,
		Coverage:   match.Coverage,
		Analyzer:   g.analyzer,
		Summarizer: g.summarizer,
	}
	if g.history != nil {
		opts.Store = g.history
	}
	if v := g.cfg.Validation; v != nil {
		opts.DesiredCoverage = v.DesiredCoverage
		opts.Tolerance = session.BandFromConfig(v.Tolerance)
	}

	sess, err := session.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	if g.history != nil {
		if herr := g.history.BeginSession(sess.Summarize()); herr != nil {
			debug.LogError(herr, "recording session start")
		}
	}
	fmt.Fprintf(out, "Baseline coverage for %s: %.1f%%\n", match.Target.SourceFile, sess.BaselineCoverage()*100)
	if sess.Degraded() {
		fmt.Fprintln(out, "Warning: baseline report could not be parsed; relative improvements only")
	}

	offerErr := g.offerAll(ctx, sess, source, out)

	summary := sess.Summarize()
	if g.history != nil {
		if herr := g.history.FinishSession(summary); herr != nil {
			debug.LogError(herr, "recording session end")
		}
	}
	if offerErr != nil {
		return nil, offerErr
	}
	return &summary, nil
}

// offerAll feeds candidates to the session until the source drains, the
// budget is spent, the desired coverage is reached, or the context
// ends. A source failure before any attempt is fatal; after that it
// only stops the intake, the judged attempts stand.
func (g *gateRunner) offerAll(ctx context.Context, sess *session.ValidationSession, source candidate.Source, out io.Writer) error {
	limit := candidateLimit
	if limit == 0 && g.cfg.Validation != nil {
		limit = g.cfg.Validation.MaxCandidates
	}

	offered := 0
	for {
		if sess.DesiredReached() {
			fmt.Fprintln(out, "Desired coverage reached; stopping")
			return nil
		}
		if limit > 0 && offered >= limit {
			fmt.Fprintf(out, "Candidate budget of %d spent\n", limit)
			return nil
		}

		cand, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out, "Interrupted; reporting the attempts made so far")
				return nil
			}
			if offered == 0 {
				return err
			}
			fmt.Fprintf(out, "Candidate intake stopped: %v\n", err)
			return nil
		}

		attempt, err := sess.OfferCandidate(ctx, cand)
		if err != nil {
			return err
		}
		offered++
		fmt.Fprintln(out, g.reporter.FormatAttempt(attempt))
	}
}

// finish prints summaries and applies the exit code. Strictness comes
// from the flag or the configuration; with several summaries the gate
// misses when any target misses.
func (g *gateRunner) finish(summaries []session.Summary) {
	strict := strictFlag
	if g.cfg.Validation != nil && g.cfg.Validation.Strict {
		strict = true
	}

	exit := reporter.ExitOK
	for i := range summaries {
		report := g.reporter.Report(summaries[i], strict)
		if !jsonSummary && report.Stdout != "" {
			fmt.Fprintln(os.Stdout, report.Stdout)
		}
		if report.Stderr != "" {
			fmt.Fprintln(os.Stderr, report.Stderr)
		}
		if report.ExitCode > exit {
			exit = report.ExitCode
		}
	}

	if jsonSummary {
		if err := printJSON(summaries); err != nil {
			emitReport(g.reporter.ReportFatal(err))
			return
		}
	}
	if exit != reporter.ExitOK {
		osExit(exit)
	}
}

// printJSON writes the summaries to stdout: one object for a single
// session, an array for a group.
func printJSON(summaries []session.Summary) error {
	var payload interface{} = summaries
	if len(summaries) == 1 {
		payload = summaries[0]
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// emitReport prints a report and applies its exit code.
func emitReport(report *reporter.ReportResult) {
	if report.Stdout != "" {
		fmt.Fprintln(os.Stdout, report.Stdout)
	}
	if report.Stderr != "" {
		fmt.Fprintln(os.Stderr, report.Stderr)
	}
	if report.ExitCode != 0 {
		osExit(report.ExitCode)
	}
}

// targetRun carries one changed-files session: its target, its batch
// file, and the output buffered so parallel sessions do not interleave.
type targetRun struct {
	match   *watcher.TargetMatch
	batch   string
	output  bytes.Buffer
	summary *session.Summary
}

// runChanged maps changed files onto configured targets and validates
// each affected target in its own session, concurrently where the
// targets are isolated.
func (g *gateRunner) runChanged(ctx context.Context, files []string) error {
	if watchDir != "" {
		return fmt.Errorf("--watch cannot be combined with changed files")
	}
	if runSourceFile != "" || runTestFile != "" {
		return fmt.Errorf("--source/--test cannot be combined with changed files")
	}

	matches := g.mapper.MatchesForFiles(files)
	if len(matches) == 0 {
		return fmt.Errorf("no configured target matches the changed files")
	}

	if candidatesPath == "" || candidatesPath == "-" {
		return fmt.Errorf("changed-files mode needs --candidates to name a batch directory")
	}
	info, err := os.Stat(candidatesPath)
	if err != nil {
		return fmt.Errorf("failed to read candidate directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("changed-files mode needs --candidates to name a directory with one batch file per source (src/calc.py reads calc.yaml)")
	}

	runs := make([]*targetRun, 0, len(matches))
	for _, match := range matches {
		batch, ok := batchForSource(candidatesPath, match.Target.SourceFile)
		if !ok {
			fmt.Printf("Skipping %s: no batch file in %s\n", match.Target.SourceFile, candidatesPath)
			continue
		}
		runs = append(runs, &targetRun{match: match, batch: batch})
	}
	if len(runs) == 0 {
		return fmt.Errorf("no batch files found in %s for the matched targets", candidatesPath)
	}

	tasks := make([]executor.GroupTask, 0, len(runs))
	for _, run := range runs {
		run := run
		tasks = append(tasks, executor.GroupTask{
			ID:         run.match.Target.SourceFile,
			WorkingDir: taskWorkingDir(run.match, g.workDir),
			ReportPath: taskReportPath(run.match),
			Run: func(ctx context.Context) error {
				source, err := candidate.NewFileSource(run.batch)
				if err != nil {
					return err
				}
				defer func() { _ = source.Close() }()

				summary, err := g.validate(ctx, run.match, source, &run.output)
				if err != nil {
					return err
				}
				run.summary = summary
				return nil
			},
		})
	}

	group := executor.NewSessionGroup(parallelCap)
	result, err := group.Run(ctx, tasks, func(completed, total int, id string) {
		fmt.Printf("[%d/%d] %s\n", completed, total, id)
	})
	if err != nil {
		emitReport(g.reporter.ReportFatal(err))
		return nil
	}

	summaries := make([]session.Summary, 0, len(runs))
	for _, run := range runs {
		fmt.Printf("\n=== %s\n", run.match.Target.SourceFile)
		if out := strings.TrimRight(run.output.String(), "\n"); out != "" {
			fmt.Println(out)
		}
		if terr := result.Errors[run.match.Target.SourceFile]; terr != nil {
			report := g.reporter.ReportFatal(terr)
			fmt.Fprintln(os.Stderr, report.Stderr)
			continue
		}
		if run.summary != nil {
			summaries = append(summaries, *run.summary)
		}
	}

	if result.HasFailures {
		fmt.Fprintf(os.Stderr, "\n%s", result.FailureSummary())
		osExit(reporter.ExitFatal)
		return nil
	}
	g.finish(summaries)
	return nil
}

// taskWorkingDir names the directory a target's command runs in, for
// the group's isolation check.
func taskWorkingDir(match *watcher.TargetMatch, workDir string) string {
	if match.Command != nil && match.Command.Dir != "" {
		return match.Command.Dir
	}
	return workDir
}

func taskReportPath(match *watcher.TargetMatch) string {
	if match.Coverage != nil {
		return match.Coverage.ReportPath
	}
	return ""
}

// batchExtensions are tried in order when resolving a batch file.
var batchExtensions = []string{".yaml", ".yml", ".json"}

// batchForSource resolves the candidate batch file for a source file:
// the source's base name with a batch extension, inside dir.
func batchForSource(dir, sourceFile string) (string, bool) {
	base := filepath.Base(sourceFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, ext := range batchExtensions {
		path := filepath.Join(dir, stem+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
