// Package config provides the core configuration types and validation logic for covergate.
package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Config represents the main configuration structure for covergate
type Config struct {
	Version      string            `json:"version"`
	ProjectType  string            `json:"projectType,omitempty"`
	Command      *CommandConfig    `json:"command"`
	Coverage     *CoverageConfig   `json:"coverage"`
	Validation   *ValidationConfig `json:"validation,omitempty"`
	OutputFilter *FilterConfig     `json:"outputFilter,omitempty"`
	HistoryPath  string            `json:"historyPath,omitempty"`
	Targets      []*TargetConfig   `json:"targets,omitempty"`
	Paths        []*PathConfig     `json:"paths,omitempty"`
}

// CommandConfig defines how the test suite is executed. Command is an opaque
// shell string handed to the system shell in Dir.
type CommandConfig struct {
	Command    string `json:"command"`
	Dir        string `json:"dir,omitempty"`
	TimeoutSec int    `json:"timeoutSec,omitempty"`
	Retries    int    `json:"retries,omitempty"`
}

// CoverageConfig defines where the coverage report lands and how to read it
type CoverageConfig struct {
	ReportPath string `json:"reportPath"`
	Kind       string `json:"kind"`
	Aggregate  bool   `json:"aggregate,omitempty"`
	Diff       bool   `json:"diff,omitempty"`
	Branch     string `json:"branch,omitempty"`
}

// ValidationConfig bounds a validation run
type ValidationConfig struct {
	DesiredCoverage float64          `json:"desiredCoverage,omitempty"` // percent, run stops early when reached
	MaxCandidates   int              `json:"maxCandidates,omitempty"`
	Strict          bool             `json:"strict,omitempty"` // exit non-zero when the target is missed
	Tolerance       *ToleranceConfig `json:"tolerance,omitempty"`
}

// ToleranceConfig tunes the acceptance band applied when comparing a
// candidate's coverage against the baseline. All fields are fractions in [0,1].
type ToleranceConfig struct {
	HighConfidence float64 `json:"highConfidence,omitempty"`
	Boost          float64 `json:"boost,omitempty"`
	Ceiling        float64 `json:"ceiling,omitempty"`
}

// TargetConfig names one source/test pair under validation
type TargetConfig struct {
	SourceFile string `json:"sourceFile"`
	TestFile   string `json:"testFile"`
	ReportPath string `json:"reportPath,omitempty"`
}

// PathConfig defines path-specific configuration for monorepo support
type PathConfig struct {
	Path     string          `json:"path"`
	Extends  string          `json:"extends,omitempty"`
	Command  *CommandConfig  `json:"command,omitempty"`
	Coverage *CoverageConfig `json:"coverage,omitempty"`
}

// FilterConfig defines failure output filtering rules
type FilterConfig struct {
	ErrorPatterns   []*RegexPattern `json:"errorPatterns"`
	ContextLines    int             `json:"contextLines,omitempty"`
	MaxOutput       int             `json:"maxOutput,omitempty"`
	IncludePatterns []*RegexPattern `json:"includePatterns,omitempty"`
}

// RegexPattern represents a regex pattern with optional flags
type RegexPattern struct {
	Pattern string `json:"pattern"`
	Flags   string `json:"flags,omitempty"`
}

// Validate performs validation on the Config
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if c.Command == nil && len(c.Paths) == 0 {
		return fmt.Errorf("a test command or at least one path configuration is required")
	}

	if c.Command != nil {
		if err := c.Command.Validate(); err != nil {
			return fmt.Errorf("command: %w", err)
		}
		if c.Coverage == nil {
			return fmt.Errorf("coverage configuration is required when a command is set")
		}
	}

	if c.Coverage != nil {
		if err := c.Coverage.Validate(); err != nil {
			return fmt.Errorf("coverage: %w", err)
		}
	}

	if c.Validation != nil {
		if err := c.Validation.Validate(); err != nil {
			return fmt.Errorf("validation: %w", err)
		}
	}

	if c.OutputFilter != nil {
		if err := c.OutputFilter.Validate(); err != nil {
			return fmt.Errorf("output filter: %w", err)
		}
	}

	for i, target := range c.Targets {
		if err := target.Validate(); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}

	for i, path := range c.Paths {
		if err := path.Validate(); err != nil {
			return fmt.Errorf("path config %d: %w", i, err)
		}
	}

	return nil
}

// Validate performs validation on the CommandConfig
func (c *CommandConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command is required")
	}

	if c.TimeoutSec < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if c.Retries < 0 {
		return fmt.Errorf("retries must be non-negative")
	}

	return nil
}

// Validate performs validation on the CoverageConfig
func (c *CoverageConfig) Validate() error {
	if c.ReportPath == "" {
		return fmt.Errorf("report path is required")
	}

	if c.Kind == "" {
		return fmt.Errorf("report kind is required")
	}

	if c.Aggregate && c.Diff {
		return fmt.Errorf("aggregate and diff modes are mutually exclusive")
	}

	if c.Branch != "" && !c.Diff {
		return fmt.Errorf("branch is only meaningful in diff mode")
	}

	return nil
}

// Validate performs validation on the ValidationConfig
func (v *ValidationConfig) Validate() error {
	if v.DesiredCoverage < 0 || v.DesiredCoverage > 100 {
		return fmt.Errorf("desired coverage must be between 0 and 100")
	}

	if v.MaxCandidates < 0 {
		return fmt.Errorf("max candidates must be non-negative")
	}

	if v.Tolerance != nil {
		if err := v.Tolerance.Validate(); err != nil {
			return fmt.Errorf("tolerance: %w", err)
		}
	}

	return nil
}

// Validate performs validation on the ToleranceConfig
func (t *ToleranceConfig) Validate() error {
	if t.HighConfidence < 0 || t.HighConfidence > 1 {
		return fmt.Errorf("high confidence threshold must be a fraction between 0 and 1")
	}

	if t.Boost < 0 || t.Boost > 1 {
		return fmt.Errorf("boost must be a fraction between 0 and 1")
	}

	if t.Ceiling < 0 || t.Ceiling > 1 {
		return fmt.Errorf("ceiling must be a fraction between 0 and 1")
	}

	return nil
}

// Validate performs validation on the TargetConfig
func (t *TargetConfig) Validate() error {
	if t.SourceFile == "" {
		return fmt.Errorf("source file is required")
	}

	if t.TestFile == "" {
		return fmt.Errorf("test file is required")
	}

	if t.SourceFile == t.TestFile {
		return fmt.Errorf("source and test file must differ")
	}

	return nil
}

// Validate performs validation on the PathConfig
func (p *PathConfig) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}

	if p.Command != nil {
		if err := p.Command.Validate(); err != nil {
			return fmt.Errorf("command: %w", err)
		}
	}

	if p.Coverage != nil {
		if err := p.Coverage.Validate(); err != nil {
			return fmt.Errorf("coverage: %w", err)
		}
	}

	return nil
}

// Validate performs validation on the FilterConfig
func (f *FilterConfig) Validate() error {
	if len(f.ErrorPatterns) == 0 {
		return fmt.Errorf("at least one error pattern is required")
	}

	for i, pattern := range f.ErrorPatterns {
		if err := pattern.Validate(); err != nil {
			return fmt.Errorf("error pattern %d: %w", i, err)
		}
	}

	for i, pattern := range f.IncludePatterns {
		if err := pattern.Validate(); err != nil {
			return fmt.Errorf("include pattern %d: %w", i, err)
		}
	}

	if f.ContextLines < 0 {
		return fmt.Errorf("context lines must be non-negative")
	}

	if f.MaxOutput < 0 {
		return fmt.Errorf("max output must be non-negative")
	}

	return nil
}

// Validate performs validation on the RegexPattern
func (r *RegexPattern) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}

	// Validate the regex pattern
	if err := r.validateRegex(); err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}

	// Validate flags
	if r.Flags != "" {
		validFlags := "imsU"
		for _, flag := range r.Flags {
			if !strings.ContainsRune(validFlags, flag) {
				return fmt.Errorf("invalid regex flag: %c", flag)
			}
		}
	}

	return nil
}

// validateRegex checks if the regex pattern is valid
func (r *RegexPattern) validateRegex() error {
	pattern := r.Pattern

	// Add flags to pattern if specified
	if r.Flags != "" {
		pattern = "(?" + r.Flags + ")" + pattern
	}

	_, err := regexp.Compile(pattern)
	return err
}

// Compile returns a compiled regular expression
func (r *RegexPattern) Compile() (*regexp.Regexp, error) {
	pattern := r.Pattern

	// Add flags to pattern if specified
	if r.Flags != "" {
		pattern = "(?" + r.Flags + ")" + pattern
	}

	return regexp.Compile(pattern)
}

// LoadConfig loads a configuration from JSON data
func LoadConfig(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig serializes a configuration to JSON
func SaveConfig(config *Config) ([]byte, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return data, nil
}

// Clone creates a deep copy of the CommandConfig
func (c *CommandConfig) Clone() *CommandConfig {
	if c == nil {
		return nil
	}

	return &CommandConfig{
		Command:    c.Command,
		Dir:        c.Dir,
		TimeoutSec: c.TimeoutSec,
		Retries:    c.Retries,
	}
}

// Clone creates a deep copy of the CoverageConfig
func (c *CoverageConfig) Clone() *CoverageConfig {
	if c == nil {
		return nil
	}

	return &CoverageConfig{
		ReportPath: c.ReportPath,
		Kind:       c.Kind,
		Aggregate:  c.Aggregate,
		Diff:       c.Diff,
		Branch:     c.Branch,
	}
}

// Clone creates a deep copy of the ValidationConfig
func (v *ValidationConfig) Clone() *ValidationConfig {
	if v == nil {
		return nil
	}

	clone := &ValidationConfig{
		DesiredCoverage: v.DesiredCoverage,
		MaxCandidates:   v.MaxCandidates,
		Strict:          v.Strict,
	}

	if v.Tolerance != nil {
		clone.Tolerance = &ToleranceConfig{
			HighConfidence: v.Tolerance.HighConfidence,
			Boost:          v.Tolerance.Boost,
			Ceiling:        v.Tolerance.Ceiling,
		}
	}

	return clone
}

// Clone creates a deep copy of the FilterConfig
func (f *FilterConfig) Clone() *FilterConfig {
	if f == nil {
		return nil
	}

	clone := &FilterConfig{
		ContextLines: f.ContextLines,
		MaxOutput:    f.MaxOutput,
	}

	if f.ErrorPatterns != nil {
		clone.ErrorPatterns = make([]*RegexPattern, len(f.ErrorPatterns))
		for i, p := range f.ErrorPatterns {
			if p != nil {
				clone.ErrorPatterns[i] = &RegexPattern{
					Pattern: p.Pattern,
					Flags:   p.Flags,
				}
			}
		}
	}

	if f.IncludePatterns != nil {
		clone.IncludePatterns = make([]*RegexPattern, len(f.IncludePatterns))
		for i, p := range f.IncludePatterns {
			if p != nil {
				clone.IncludePatterns[i] = &RegexPattern{
					Pattern: p.Pattern,
					Flags:   p.Flags,
				}
			}
		}
	}

	return clone
}
