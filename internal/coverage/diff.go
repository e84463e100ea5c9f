package coverage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/executor"
)

// commandRunner is an interface for executing commands
type commandRunner interface {
	Execute(command string, args []string, options executor.ExecOptions) (*executor.ExecResult, error)
}

// DiffScope restricts coverage measurement to lines changed against a
// comparison branch. It prefers the external diff-cover generator and
// falls back to parsing git diff output when the tool is not
// installed.
type DiffScope struct {
	branch  string
	workDir string
	runner  commandRunner
}

// NewDiffScope creates a diff scope for the given comparison branch.
func NewDiffScope(branch, workDir string, runner commandRunner) *DiffScope {
	return &DiffScope{branch: branch, workDir: workDir, runner: runner}
}

// GenerateReport runs diff-cover against the base report and returns
// the path of the JSON report it wrote. The caller removes the file.
func (s *DiffScope) GenerateReport(reportPath string) (string, error) {
	out, err := os.CreateTemp("", "covergate-diff-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create diff report file: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()

	args := []string{reportPath, "--compare-branch=" + s.branch, "--json-report", outPath}
	debug.LogCommand("diff-cover", args, s.workDir)
	result, err := s.runner.Execute("diff-cover", args, executor.ExecOptions{
		WorkingDir: s.workDir,
		InheritEnv: true,
	})
	if err != nil {
		_ = os.Remove(outPath)
		return "", err
	}
	if result.Error != nil {
		_ = os.Remove(outPath)
		return "", result.Error
	}
	if result.ExitCode != 0 {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("diff-cover failed with exit code %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return outPath, nil
}

// Unavailable reports whether err means the diff-cover tool could not
// start at all, as opposed to failing on this input.
func (s *DiffScope) Unavailable(err error) bool {
	return executor.IsStartFailure(err)
}

// ChangedLines computes the new-side line numbers changed relative to
// the comparison branch from git diff output.
func (s *DiffScope) ChangedLines() (map[string][]int, error) {
	result, err := s.runner.Execute("git", []string{"diff", "--unified=0", s.branch}, executor.ExecOptions{
		WorkingDir: s.workDir,
		InheritEnv: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run git diff: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to run git diff: %w", result.Error)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("git diff against %s failed: %s", s.branch, strings.TrimSpace(result.Stderr))
	}
	return parseChangedLines(result.Stdout)
}

// parseChangedLines extracts per-file added and modified line numbers
// from unified diff text.
func parseChangedLines(diffText string) (map[string][]int, error) {
	if strings.TrimSpace(diffText) == "" {
		return map[string][]int{}, nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse git diff output: %w", err)
	}

	changed := make(map[string][]int, len(fileDiffs))
	for _, fd := range fileDiffs {
		name := strings.TrimPrefix(fd.NewName, "b/")
		if name == "" || name == "/dev/null" {
			continue
		}
		name = filepath.ToSlash(name)
		for _, hunk := range fd.Hunks {
			for line := hunk.NewStartLine; line < hunk.NewStartLine+hunk.NewLines; line++ {
				changed[name] = append(changed[name], int(line))
			}
		}
	}
	return changed, nil
}

// RestrictToChanged filters a report down to changed lines only,
// recomputing per-file fractions over the restricted sets. Files
// without changed lines drop out of the report entirely.
func RestrictToChanged(report Report, changed map[string][]int) Report {
	restricted := make(Report)
	for key, fc := range report {
		lines := changedLinesFor(key, changed)
		if lines == nil {
			continue
		}
		keep := make(map[int]bool, len(lines))
		for _, line := range lines {
			keep[line] = true
		}
		var covered, missed []int
		for _, line := range fc.Covered {
			if keep[line] {
				covered = append(covered, line)
			}
		}
		for _, line := range fc.Missed {
			if keep[line] {
				missed = append(missed, line)
			}
		}
		restricted[key] = FileCoverage{
			Covered:  covered,
			Missed:   missed,
			Fraction: fraction(len(covered), len(missed)),
		}
	}
	return restricted
}

func changedLinesFor(key string, changed map[string][]int) []int {
	if lines, ok := changed[key]; ok {
		return lines
	}
	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if suffixMatch(key, name) {
			return changed[name]
		}
	}
	return nil
}
