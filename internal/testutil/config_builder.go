// Package testutil provides common test utilities and helpers for the covergate test suite.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bebsworthy/covergate/pkg/config"
)

// ConfigBuilder provides a fluent interface for building test configurations.
type ConfigBuilder struct {
	config *config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with default test configuration.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: &config.Config{
			Version: "1.0",
		},
	}
}

// WithVersion sets the configuration version.
func (b *ConfigBuilder) WithVersion(version string) *ConfigBuilder {
	b.config.Version = version
	return b
}

// WithProjectType sets the detected project type.
func (b *ConfigBuilder) WithProjectType(projectType string) *ConfigBuilder {
	b.config.ProjectType = projectType
	return b
}

// WithCommand sets the test command configuration.
func (b *ConfigBuilder) WithCommand(cmd *config.CommandConfig) *ConfigBuilder {
	b.config.Command = cmd
	return b
}

// WithTestCommand sets a shell command string with common defaults.
func (b *ConfigBuilder) WithTestCommand(command string) *ConfigBuilder {
	return b.WithCommand(&config.CommandConfig{
		Command:    command,
		TimeoutSec: 30,
	})
}

// WithCoverage sets the coverage report configuration.
func (b *ConfigBuilder) WithCoverage(cov *config.CoverageConfig) *ConfigBuilder {
	b.config.Coverage = cov
	return b
}

// WithCoverageReport sets the report kind and path with no extra modes.
func (b *ConfigBuilder) WithCoverageReport(kind, reportPath string) *ConfigBuilder {
	return b.WithCoverage(&config.CoverageConfig{
		Kind:       kind,
		ReportPath: reportPath,
	})
}

// WithValidation sets the validation configuration.
func (b *ConfigBuilder) WithValidation(v *config.ValidationConfig) *ConfigBuilder {
	b.config.Validation = v
	return b
}

// WithDesiredCoverage sets the desired coverage percentage.
func (b *ConfigBuilder) WithDesiredCoverage(percent float64) *ConfigBuilder {
	if b.config.Validation == nil {
		b.config.Validation = &config.ValidationConfig{}
	}
	b.config.Validation.DesiredCoverage = percent
	return b
}

// WithTarget adds a source/test pair.
func (b *ConfigBuilder) WithTarget(target *config.TargetConfig) *ConfigBuilder {
	b.config.Targets = append(b.config.Targets, target)
	return b
}

// WithTargetFiles adds a source/test pair by file names.
func (b *ConfigBuilder) WithTargetFiles(sourceFile, testFile string) *ConfigBuilder {
	return b.WithTarget(&config.TargetConfig{
		SourceFile: sourceFile,
		TestFile:   testFile,
	})
}

// WithPath adds a path-specific configuration for monorepo layouts.
func (b *ConfigBuilder) WithPath(pathConfig *config.PathConfig) *ConfigBuilder {
	b.config.Paths = append(b.config.Paths, pathConfig)
	return b
}

// WithPathCommand adds a path-specific test command.
func (b *ConfigBuilder) WithPathCommand(pattern, command string) *ConfigBuilder {
	return b.WithPath(&config.PathConfig{
		Path:    pattern,
		Command: &config.CommandConfig{Command: command, TimeoutSec: 30},
	})
}

// WithOutputFilter sets the failure output filter.
func (b *ConfigBuilder) WithOutputFilter(filter *config.FilterConfig) *ConfigBuilder {
	b.config.OutputFilter = filter
	return b
}

// WithErrorPattern adds one error pattern to the output filter.
func (b *ConfigBuilder) WithErrorPattern(pattern, flags string) *ConfigBuilder {
	if b.config.OutputFilter == nil {
		b.config.OutputFilter = &config.FilterConfig{}
	}
	b.config.OutputFilter.ErrorPatterns = append(b.config.OutputFilter.ErrorPatterns,
		&config.RegexPattern{Pattern: pattern, Flags: flags})
	return b
}

// WithHistoryPath sets the attempt history database location.
func (b *ConfigBuilder) WithHistoryPath(path string) *ConfigBuilder {
	b.config.HistoryPath = path
	return b
}

// Build returns the constructed configuration.
func (b *ConfigBuilder) Build() *config.Config {
	return b.config
}

// WriteToFile writes the configuration to a JSON file.
func (b *ConfigBuilder) WriteToFile(path string) error {
	data, err := json.MarshalIndent(b.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// DefaultTestConfig returns a basic test configuration with a safe command
// and a cobertura report.
func DefaultTestConfig() *config.Config {
	return NewConfigBuilder().
		WithTestCommand(SafeTestCommand("running tests")).
		WithCoverageReport("cobertura", "coverage.xml").
		Build()
}

// CreateTestConfigFile creates a config file in dir and returns its path.
func CreateTestConfigFile(dir string, cfg *config.Config) (string, error) {
	if cfg == nil {
		cfg = DefaultTestConfig()
	}

	configPath := filepath.Join(dir, ".covergate.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return "", err
	}

	return configPath, nil
}
