// Package main provides the baseline command for covergate
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/covergate/internal/coverage"
	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/internal/reporter"
	"github.com/bebsworthy/covergate/internal/watcher"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// Baseline command flags
var (
	baselineSource string
	baselineJSON   bool
)

// baselineCmd represents the baseline command
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Measure coverage without offering candidates",
	Long: `Run the configured test command once and report the coverage it
produces. No test file is touched: baseline is the read-only half of a
validation run.

Use it to check that the command, the report path and the report kind
are wired correctly before streaming candidates, or to track current
coverage in CI. Without --source the single configured target is
measured; with no targets at all the whole report is aggregated.`,
	Example: `  # Measure the configured target
  covergate baseline

  # Measure a specific source file
  covergate baseline --source src/calc.py

  # Machine-readable output
  covergate baseline --json`,
	RunE: runBaselineCmd,
}

func init() {
	baselineCmd.Flags().StringVar(&baselineSource, "source", "", "Source file to report coverage for")
	baselineCmd.Flags().BoolVar(&baselineJSON, "json", false, "Print the measurement as JSON")
}

func runBaselineCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sourceFile, command, coverageCfg, err := baselineTarget(cfg)
	if err != nil {
		return err
	}

	measurement, elapsed, err := measureBaseline(sourceFile, command, coverageCfg)
	if err != nil {
		emitReport(reporter.NewRunReporter().ReportFatal(err))
		return nil
	}
	return printBaseline(cfg, sourceFile, measurement, coverageCfg, elapsed)
}

// baselineTarget resolves what to measure: the --source flag, the
// single configured target, or the whole report in aggregate mode.
func baselineTarget(cfg *pkgconfig.Config) (string, *pkgconfig.CommandConfig, *pkgconfig.CoverageConfig, error) {
	mapper := watcher.NewTargetMapper(cfg)

	if baselineSource != "" {
		target := &pkgconfig.TargetConfig{SourceFile: baselineSource}
		if configured, ok := mapper.TargetForSource(baselineSource); ok {
			target = configured
		}
		match := mapper.Resolve(target)
		if match.Command == nil || match.Coverage == nil {
			return "", nil, nil, fmt.Errorf("no test command or coverage report configured for %s", baselineSource)
		}
		return baselineSource, match.Command, match.Coverage, nil
	}

	if len(cfg.Targets) == 1 {
		match := mapper.Resolve(cfg.Targets[0])
		if match.Command == nil || match.Coverage == nil {
			return "", nil, nil, fmt.Errorf("no test command or coverage report configured for %s", cfg.Targets[0].SourceFile)
		}
		return cfg.Targets[0].SourceFile, match.Command, match.Coverage, nil
	}

	if cfg.Command == nil || cfg.Coverage == nil {
		return "", nil, nil, fmt.Errorf("no test command configured; run covergate config first")
	}
	coverageCfg := cfg.Coverage.Clone()
	if !coverageCfg.Diff {
		coverageCfg.Aggregate = true
	}
	return "", cfg.Command.Clone(), coverageCfg, nil
}

// measureBaseline runs the test command once and reduces the report it
// regenerates.
func measureBaseline(sourceFile string, command *pkgconfig.CommandConfig, coverageCfg *pkgconfig.CoverageConfig) (*coverage.Measurement, time.Duration, error) {
	dir := command.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = cwd
	}

	timeout := time.Duration(command.TimeoutSec) * time.Second
	exec := executor.NewCommandExecutor(timeout)
	processor, err := coverage.NewProcessor(coverageCfg, sourceFile, dir, exec)
	if err != nil {
		return nil, 0, err
	}

	debug.LogSection("Baseline Measurement")
	debug.LogCommand(command.Command, nil, dir)
	result, err := exec.RunScript(command.Command, executor.ExecOptions{
		WorkingDir: dir,
		Timeout:    timeout,
		InheritEnv: true,
	})
	if err != nil {
		return nil, 0, err
	}
	debug.LogTiming("test command", result.Elapsed)
	if result.ExitCode != 0 {
		debug.Log("baseline stdout:\n%s", result.Stdout)
		debug.Log("baseline stderr:\n%s", result.Stderr)
		return nil, 0, fmt.Errorf("baseline run of %q exited with code %d; is the test command correct?",
			command.Command, result.ExitCode)
	}

	measurement, err := processor.Process(result.StartedAt)
	if err != nil {
		return nil, 0, err
	}
	return measurement, result.Elapsed, nil
}

// printBaseline renders the measurement: the coverage figure, line
// counts outside aggregate mode, the desired-coverage comparison, and
// the per-file table when the report carries one.
func printBaseline(cfg *pkgconfig.Config, sourceFile string, m *coverage.Measurement, coverageCfg *pkgconfig.CoverageConfig, elapsed time.Duration) error {
	desired := 0.0
	if cfg.Validation != nil {
		desired = cfg.Validation.DesiredCoverage
	}

	if baselineJSON {
		payload := struct {
			SourceFile      string             `json:"sourceFile,omitempty"`
			Coverage        float64            `json:"coverage"`
			CoveredLines    int                `json:"coveredLines,omitempty"`
			MissedLines     int                `json:"missedLines,omitempty"`
			Kind            string             `json:"kind"`
			ReportPath      string             `json:"reportPath"`
			DesiredCoverage float64            `json:"desiredCoverage,omitempty"`
			ReachedDesired  bool               `json:"reachedDesired"`
			PerFile         map[string]float64 `json:"perFile,omitempty"`
		}{
			SourceFile:      sourceFile,
			Coverage:        m.Fraction,
			CoveredLines:    len(m.Covered),
			MissedLines:     len(m.Missed),
			Kind:            coverageCfg.Kind,
			ReportPath:      coverageCfg.ReportPath,
			DesiredCoverage: desired,
			ReachedDesired:  desired > 0 && m.Fraction*100 >= desired,
			PerFile:         m.PerFile,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode measurement: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if sourceFile != "" {
		fmt.Printf("Coverage for %s: %.1f%%\n", sourceFile, m.Fraction*100)
	} else {
		fmt.Printf("Coverage: %.1f%%\n", m.Fraction*100)
	}
	if !coverageCfg.Aggregate {
		fmt.Printf("Lines: %d covered, %d missed\n", len(m.Covered), len(m.Missed))
	}
	fmt.Printf("Report: %s (%s), suite took %s\n", coverageCfg.ReportPath, coverageCfg.Kind, elapsed.Round(time.Millisecond))
	if desired > 0 {
		if m.Fraction*100 >= desired {
			fmt.Printf("Desired coverage %.1f%% reached\n", desired)
		} else {
			fmt.Printf("Desired coverage %.1f%% not reached\n", desired)
		}
	}

	if len(m.PerFile) > 0 {
		files := make([]string, 0, len(m.PerFile))
		for file := range m.PerFile {
			files = append(files, file)
		}
		sort.Strings(files)
		fmt.Println("\nPer-file coverage:")
		for _, file := range files {
			fmt.Printf("  %6.1f%%  %s\n", m.PerFile[file]*100, file)
		}
	}
	return nil
}
