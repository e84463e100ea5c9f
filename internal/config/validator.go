// Package config provides configuration validation utilities
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kballard/go-shellquote"

	"github.com/bebsworthy/covergate/internal/coverage"
	"github.com/bebsworthy/covergate/internal/security"
	"github.com/bebsworthy/covergate/pkg/config"
)

const osWindows = "windows"

// Validator provides enhanced validation for configurations
type Validator struct {
	// CheckCommands indicates whether to verify command programs exist in PATH
	CheckCommands bool

	// ProjectRoot scopes working directories and report paths when set
	ProjectRoot string

	// SecurityValidator for comprehensive security checks
	securityValidator *security.SecurityValidator
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		CheckCommands:     true,
		securityValidator: security.NewSecurityValidator(),
	}
}

// NewValidatorWithSecurity creates a validator governed by a security
// configuration (allow list, timeout cap, regex limits, banned paths)
func NewValidatorWithSecurity(secCfg *security.Config) (*Validator, error) {
	v := NewValidator()
	if err := secCfg.ApplyToValidator(v.securityValidator); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate performs comprehensive validation on a configuration
func (v *Validator) Validate(cfg *config.Config) error {
	// Basic validation is already done by config.Validate()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Command != nil {
		if err := v.validateCommand(cfg.Command); err != nil {
			return fmt.Errorf("command: %w", err)
		}
	}

	if cfg.Coverage != nil {
		if err := v.validateCoverage(cfg.Coverage); err != nil {
			return fmt.Errorf("coverage: %w", err)
		}
	}

	if cfg.OutputFilter != nil {
		if err := v.validateFilterPatterns(cfg.OutputFilter); err != nil {
			return err
		}
	}

	for i, target := range cfg.Targets {
		if err := v.validateTarget(target); err != nil {
			return fmt.Errorf("target %d (%s): %w", i, target.SourceFile, err)
		}
	}

	// Validate path configurations
	for i, pathCfg := range cfg.Paths {
		if err := v.validatePathConfig(pathCfg); err != nil {
			return fmt.Errorf("path config %d (%s): %w", i, pathCfg.Path, err)
		}
	}

	return nil
}

// ValidateWithWarnings validates a configuration and returns non-fatal
// advisories alongside the result. Warnings never block a run.
func (v *Validator) ValidateWithWarnings(cfg *config.Config) ([]string, error) {
	if err := v.Validate(cfg); err != nil {
		return nil, err
	}

	var warnings []string

	if cfg.Validation == nil || cfg.Validation.DesiredCoverage == 0 {
		warnings = append(warnings, "no desired coverage set: candidates are accepted on any improvement")
	}
	if cfg.Validation == nil || cfg.Validation.MaxCandidates == 0 {
		warnings = append(warnings, "no candidate budget set: a run only stops when the source is exhausted")
	}
	if cfg.Command != nil && cfg.Command.TimeoutSec == 0 {
		warnings = append(warnings, "no command timeout set: the security default applies")
	}
	if cfg.Command != nil && cfg.Command.Retries > 5 {
		warnings = append(warnings, fmt.Sprintf("retries=%d slows every rejected candidate by that many test runs", cfg.Command.Retries))
	}
	if cfg.OutputFilter == nil {
		warnings = append(warnings, "no output filter configured: attempt records keep full command output")
	}
	if cfg.Coverage != nil && cfg.Coverage.Kind == coverage.KindJaCoCoCSV {
		warnings = append(warnings, "jacoco-csv reports carry line counts only, so per-line coverage data is unavailable")
	}

	return warnings, nil
}

// ValidateCommand validates a single command configuration
func (v *Validator) ValidateCommand(cmd *config.CommandConfig) error {
	return v.validateCommand(cmd)
}

// validateCommand performs validation on a command configuration
func (v *Validator) validateCommand(cmd *config.CommandConfig) error {
	// Use security validator for comprehensive command validation
	if err := v.securityValidator.ValidateCommandString(cmd.Command); err != nil {
		return fmt.Errorf("security validation failed: %w", err)
	}

	// Check if the command program exists in PATH
	if v.CheckCommands {
		if err := v.checkCommandExists(cmd.Command); err != nil {
			return err
		}
	}

	// The working directory must stay inside the project
	if cmd.Dir != "" {
		if err := v.validateScopedPath(cmd.Dir); err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
	}

	// Validate timeout using security validator
	if cmd.TimeoutSec > 0 {
		timeout := time.Duration(cmd.TimeoutSec) * time.Second
		if err := v.securityValidator.ValidateTimeout(timeout); err != nil {
			return fmt.Errorf("timeout validation failed: %w", err)
		}
	}

	return nil
}

// validateCoverage performs validation on a coverage configuration
func (v *Validator) validateCoverage(cov *config.CoverageConfig) error {
	// The kind must name a registered report dialect
	if _, err := coverage.ForKind(cov.Kind); err != nil {
		return err
	}

	// Count-based reports have no line sets to aggregate or diff
	if cov.Kind == coverage.KindJaCoCoCSV && (cov.Aggregate || cov.Diff) {
		return fmt.Errorf("report kind %s carries line counts only and cannot serve aggregate or diff mode", cov.Kind)
	}

	if err := v.validateScopedPath(cov.ReportPath); err != nil {
		return fmt.Errorf("report path: %w", err)
	}

	return nil
}

// validateTarget performs validation on a source/test target pair
func (v *Validator) validateTarget(target *config.TargetConfig) error {
	if err := v.securityValidator.ValidatePath(target.SourceFile); err != nil {
		return fmt.Errorf("source file: %w", err)
	}

	if err := v.securityValidator.ValidatePath(target.TestFile); err != nil {
		return fmt.Errorf("test file: %w", err)
	}

	if target.ReportPath != "" {
		if err := v.validateScopedPath(target.ReportPath); err != nil {
			return fmt.Errorf("report path: %w", err)
		}
	}

	return nil
}

// validatePathConfig validates a path configuration
func (v *Validator) validatePathConfig(pathCfg *config.PathConfig) error {
	// Validate path pattern
	if err := v.validatePathPattern(pathCfg.Path); err != nil {
		return fmt.Errorf("invalid path pattern: %w", err)
	}

	if pathCfg.Command != nil {
		if err := v.validateCommand(pathCfg.Command); err != nil {
			return fmt.Errorf("command: %w", err)
		}
	}

	if pathCfg.Coverage != nil {
		if err := v.validateCoverage(pathCfg.Coverage); err != nil {
			return fmt.Errorf("coverage: %w", err)
		}
	}

	return nil
}

// validateFilterPatterns validates all regex patterns in an output filter
func (v *Validator) validateFilterPatterns(filter *config.FilterConfig) error {
	// Validate error patterns
	for i, pattern := range filter.ErrorPatterns {
		if err := v.validateRegexPattern(pattern); err != nil {
			return fmt.Errorf("error pattern %d: %w", i, err)
		}
	}

	// Validate include patterns
	for i, pattern := range filter.IncludePatterns {
		if err := v.validateRegexPattern(pattern); err != nil {
			return fmt.Errorf("include pattern %d: %w", i, err)
		}
	}

	return nil
}

// validateRegexPattern validates a regex pattern thoroughly
func (v *Validator) validateRegexPattern(pattern *config.RegexPattern) error {
	if pattern == nil {
		return nil
	}

	// Basic validation is done by pattern.Validate()
	if err := pattern.Validate(); err != nil {
		return err
	}

	// Use security validator for comprehensive regex validation
	if err := v.securityValidator.ValidateRegexPattern(pattern.Pattern); err != nil {
		return fmt.Errorf("security validation failed: %w", err)
	}

	// Try to compile and test the pattern
	re, err := pattern.Compile()
	if err != nil {
		return fmt.Errorf("failed to compile regex: %w", err)
	}

	// Check for patterns that might match too much
	if v.isTooGenericPattern(re, pattern.Pattern) {
		return fmt.Errorf("pattern %q is too generic and might match too much output", pattern.Pattern)
	}

	return nil
}

// isTooGenericPattern checks if a pattern might match too broadly
func (v *Validator) isTooGenericPattern(re *regexp.Regexp, pattern string) bool {
	// List of patterns that are too generic
	tooGeneric := []string{
		"^.*$",
		"^.+$",
		".*",
		".+",
		"\\w+",
		"\\s+",
	}

	cleanPattern := strings.TrimSpace(pattern)
	for _, generic := range tooGeneric {
		if cleanPattern == generic {
			return true
		}
	}

	// Test the pattern against typical test runner output to see if it
	// matches everything
	testStrings := []string{
		"normal output line",
		"Error: something went wrong",
		"--- FAIL: TestAccountBalance",
		"   at file.js:10:5",
		"✓ Test passed",
		"",
	}

	matchCount := 0
	for _, test := range testStrings {
		if re.MatchString(test) {
			matchCount++
		}
	}

	// If pattern matches most test strings, it's probably too generic
	return matchCount >= len(testStrings)-1
}

// validatePathPattern validates a path glob pattern
func (v *Validator) validatePathPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("path pattern cannot be empty")
	}

	// Use security validator for comprehensive path validation
	// Note: path patterns are relative, so we validate them as patterns, not full paths
	if err := v.securityValidator.ValidatePath(pattern); err != nil {
		// Path patterns have slightly different rules than full paths
		// Check for the specific errors we care about for patterns
		if strings.Contains(err.Error(), "directory traversal") ||
			strings.Contains(err.Error(), "null byte") {
			return fmt.Errorf("security validation failed: %w", err)
		}
		// Ignore "outside project directory" errors for patterns as they're relative
	}

	// Check for absolute paths (security risk)
	if filepath.IsAbs(pattern) {
		return fmt.Errorf("absolute paths are not allowed in patterns")
	}

	// Also check for Windows-style absolute paths on non-Windows systems
	if runtime.GOOS != osWindows && len(pattern) >= 3 &&
		pattern[1] == ':' && (pattern[2] == '\\' || pattern[2] == '/') {
		return fmt.Errorf("absolute paths are not allowed in patterns")
	}

	// Validate glob syntax
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	return nil
}

// validateScopedPath checks a path against the project root when one is
// configured, falling back to pattern-level checks otherwise
func (v *Validator) validateScopedPath(path string) error {
	if v.ProjectRoot != "" {
		return v.securityValidator.ValidateScopedPath(v.ProjectRoot, path)
	}
	return v.securityValidator.ValidatePath(path)
}

// checkCommandExists verifies that the command's program exists in PATH
func (v *Validator) checkCommandExists(command string) error {
	program, err := commandProgram(command)
	if err != nil || program == "" {
		// Unparseable strings were already rejected by the security review
		return nil
	}

	// Don't check for shell built-ins
	shellBuiltins := []string{"echo", "cd", "pwd", "exit", "export", "alias"}
	for _, builtin := range shellBuiltins {
		if program == builtin {
			return nil
		}
	}

	// Special handling for commands with paths
	if strings.Contains(program, "/") || strings.Contains(program, "\\") {
		// Check if it's a relative path that might exist
		if _, err := os.Stat(program); err == nil {
			return nil
		}
		return fmt.Errorf("command %q not found at specified path", program)
	}

	// Use exec.LookPath to find the command
	path, err := exec.LookPath(program)
	if err != nil {
		// Provide helpful error message
		if runtime.GOOS == osWindows {
			return fmt.Errorf("command %q not found in PATH (did you mean %s.exe?)", program, program)
		}
		return fmt.Errorf("command %q not found in PATH", program)
	}

	// Verify the found path is executable
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat command %q: %w", program, err)
	}

	if runtime.GOOS != osWindows && info.Mode()&0111 == 0 {
		return fmt.Errorf("command %q is not executable", program)
	}

	return nil
}

// commandProgram extracts the program name from a shell command string,
// skipping leading environment assignments
func commandProgram(command string) (string, error) {
	tokens, err := shellquote.Split(command)
	if err != nil {
		return "", err
	}

	for _, token := range tokens {
		if strings.Contains(token, "=") && !strings.ContainsAny(token, "/\\") {
			// Leading VAR=value assignment
			continue
		}
		return token, nil
	}

	return "", nil
}

// SuggestFixes provides suggestions for common configuration errors
func (v *Validator) SuggestFixes(err error) []string {
	errStr := err.Error()
	suggestions := []string{}

	// Command not found suggestions
	if strings.Contains(errStr, "not found in PATH") {
		suggestions = append(suggestions,
			"Make sure the command is installed and available in your PATH",
			"Try running 'which <command>' (Unix) or 'where <command>' (Windows) to verify",
		)

		// Specific suggestions for common commands
		switch {
		case strings.Contains(errStr, "npx") || strings.Contains(errStr, "npm"):
			suggestions = append(suggestions, "Install Node.js from https://nodejs.org/")
		case strings.Contains(errStr, "go"):
			suggestions = append(suggestions, "Install Go from https://golang.org/")
		case strings.Contains(errStr, "cargo"):
			suggestions = append(suggestions, "Install Rust from https://rustup.rs/")
		case strings.Contains(errStr, "pytest") || strings.Contains(errStr, "python"):
			suggestions = append(suggestions, "Install Python from https://python.org/")
		case strings.Contains(errStr, "diff-cover"):
			suggestions = append(suggestions, "Install diff-cover with 'pip install diff-cover'")
		}
	}

	// Unsupported report kind
	if strings.Contains(errStr, "unsupported coverage report kind") {
		suggestions = append(suggestions,
			fmt.Sprintf("Use one of the supported report kinds: %s", strings.Join(coverage.Kinds(), ", ")),
		)
	}

	// Regex pattern errors
	if strings.Contains(errStr, "regex") || strings.Contains(errStr, "pattern") {
		suggestions = append(suggestions,
			"Check your regex pattern syntax",
			"Test your pattern at https://regex101.com/",
			"Escape special characters like '.', '*', '+', '?', '[', ']', '(', ')', '{', '}'",
		)
	}

	// Timeout errors
	if strings.Contains(errStr, "timeout") {
		suggestions = append(suggestions,
			"Use a timeout between 1 and 3600 seconds",
			"Consider if your test command really needs a long timeout",
		)
	}

	// Path pattern errors
	if strings.Contains(errStr, "path pattern") {
		suggestions = append(suggestions,
			"Use relative paths only (no leading /)",
			"Use ** for recursive matching (e.g. 'services/**')",
			"Avoid using .. in path patterns",
		)
	}

	return suggestions
}
