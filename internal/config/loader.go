// Package config provides configuration loading and management for covergate.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/pkg/config"
)

const (
	// ConfigFileName is the default configuration file name
	ConfigFileName = ".covergate.json"

	// ConfigEnvVar is the environment variable to specify custom config path
	ConfigEnvVar = "COVERGATE_CONFIG"
)

// Loader handles loading and merging configuration files
type Loader struct {
	// SearchPaths contains the paths to search for configuration files
	SearchPaths []string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		SearchPaths: getDefaultSearchPaths(),
	}
}

// Load attempts to load configuration from various sources
func (l *Loader) Load() (*config.Config, error) {
	debug.LogSection("Configuration Loading")

	// First check if environment variable is set
	if envPath := os.Getenv(ConfigEnvVar); envPath != "" {
		debug.Log("Loading config from environment variable %s: %s", ConfigEnvVar, envPath)
		cfg, err := l.loadFromPath(envPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", ConfigEnvVar, err)
		}
		return cfg, nil
	}

	// Search in default paths
	debug.Log("Searching for config in default paths: %v", l.SearchPaths)
	for _, searchPath := range l.SearchPaths {
		configPath := filepath.Join(searchPath, ConfigFileName)
		debug.Log("Checking path: %s", configPath)
		if _, err := os.Stat(configPath); err == nil {
			debug.Log("Found config at: %s", configPath)
			cfg, err := l.loadFromPath(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			return cfg, nil
		}
	}

	return nil, fmt.Errorf("no configuration file found in search paths: %v", l.SearchPaths)
}

// LoadFromPath loads configuration from a specific file path
func (l *Loader) LoadFromPath(path string) (*config.Config, error) {
	return l.loadFromPath(path)
}

// LoadForMonorepo loads configuration with path-based merging for monorepo support
func (l *Loader) LoadForMonorepo(workingDir string) (*config.Config, error) {
	// Load the root configuration first
	rootConfig, err := l.Load()
	if err != nil {
		return nil, err
	}

	// If no path configurations, return root config
	if len(rootConfig.Paths) == 0 {
		return rootConfig, nil
	}

	// Find the most specific path configuration that matches the working directory
	relPath, err := filepath.Rel(l.SearchPaths[0], workingDir)
	if err != nil {
		// If we can't determine relative path, use root config
		return rootConfig, nil
	}

	// Normalize the path for matching
	relPath = filepath.ToSlash(relPath)

	// Find the most specific matching path configuration
	var bestMatch *config.PathConfig
	bestMatchLen := -1

	for _, pathConfig := range rootConfig.Paths {
		if matched, matchLen := matchesPath(relPath, pathConfig.Path); matched && matchLen > bestMatchLen {
			bestMatch = pathConfig
			bestMatchLen = matchLen
		}
	}

	// If no match found, return root config
	if bestMatch == nil {
		return rootConfig, nil
	}

	// Merge the path-specific configuration with the root configuration
	mergedConfig := l.mergeConfigs(rootConfig, bestMatch)
	return mergedConfig, nil
}

// loadFromPath loads and validates configuration from a file
func (l *Loader) loadFromPath(path string) (*config.Config, error) {
	debug.Log("Loading config from file: %s", path)

	// #nosec G304 - path is validated by caller (LoadFromPath checks file existence)
	file, err := os.Open(path)
	if err != nil {
		debug.LogError(err, "opening config file")
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // Best effort cleanup

	data, err := io.ReadAll(file)
	if err != nil {
		debug.LogError(err, "reading config file")
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	debug.Log("Config file size: %d bytes", len(data))
	cfg, err := config.LoadConfig(data)
	if err != nil {
		debug.LogError(err, "parsing config")
		return nil, err
	}

	versioner := NewSchemaVersioner()
	if err := versioner.ValidateVersion(cfg.Version); err != nil {
		return nil, fmt.Errorf("unsupported config version: %w", err)
	}
	cfg, err = versioner.MigrateConfig(cfg)
	if err != nil {
		return nil, err
	}

	debug.Log("Loaded config: version=%s, type=%s, paths=%d, targets=%d",
		cfg.Version, cfg.ProjectType, len(cfg.Paths), len(cfg.Targets))

	return cfg, nil
}

// mergeConfigs merges path-specific configuration with root configuration
func (l *Loader) mergeConfigs(root *config.Config, pathConfig *config.PathConfig) *config.Config {
	// Create a new config based on root
	merged := &config.Config{
		Version:      root.Version,
		ProjectType:  root.ProjectType,
		Command:      root.Command.Clone(),
		Coverage:     root.Coverage.Clone(),
		Validation:   root.Validation.Clone(),
		OutputFilter: root.OutputFilter.Clone(),
		HistoryPath:  root.HistoryPath,
		Targets:      root.Targets,
		Paths:        root.Paths, // Keep paths for nested monorepo support
	}

	// Apply overrides from the extends chain, most general first
	for _, overlay := range extendsChain(root, pathConfig) {
		if overlay.Command != nil {
			merged.Command = overlay.Command.Clone()
		}
		if overlay.Coverage != nil {
			merged.Coverage = overlay.Coverage.Clone()
		}
	}

	return merged
}

// extendsChain resolves the extends references of a path configuration and
// returns the chain ordered from the most general ancestor to pathConfig
// itself. Cycles and dangling references terminate the chain.
func extendsChain(root *config.Config, pathConfig *config.PathConfig) []*config.PathConfig {
	var chain []*config.PathConfig
	seen := make(map[string]bool)

	for current := pathConfig; current != nil && !seen[current.Path]; {
		seen[current.Path] = true
		chain = append(chain, current)
		if current.Extends == "" {
			break
		}
		current = findPathConfig(root, current.Extends)
	}

	// Reverse so the most general configuration applies first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain
}

// findPathConfig looks up a path configuration by its path value
func findPathConfig(root *config.Config, path string) *config.PathConfig {
	for _, pc := range root.Paths {
		if pc.Path == path {
			return pc
		}
	}
	return nil
}

// matchesPath checks if a relative path matches a path pattern and reports
// how specific the match is. Longer matches win when several patterns apply.
func matchesPath(relPath, pattern string) (bool, int) {
	if relPath == pattern {
		return true, len(pattern)
	}

	// Directory prefix: "services/api/" matches everything below it
	if strings.HasSuffix(pattern, "/") {
		prefix := pattern[:len(pattern)-1]
		if relPath == prefix || strings.HasPrefix(relPath, pattern) {
			return true, len(pattern)
		}
	}

	// Recursive suffix: "services/api/**" matches the directory and below
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
			return true, len(prefix)
		}
	}

	// General glob patterns
	if strings.ContainsAny(pattern, "*?[{") {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true, literalPrefixLen(pattern)
		}
	}

	return false, 0
}

// literalPrefixLen measures the leading run of a pattern with no glob
// metacharacters. A longer literal prefix indicates a more specific pattern.
func literalPrefixLen(pattern string) int {
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		return i
	}
	return len(pattern)
}

// getDefaultSearchPaths returns the default paths to search for configuration
func getDefaultSearchPaths() []string {
	paths := []string{}

	// Current working directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)

		// Walk up the directory tree to find root of project
		dir := cwd
		for {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}

			// Check for common project root indicators
			if _, err := os.Stat(filepath.Join(parent, ".git")); err == nil {
				paths = append(paths, parent)
				break
			}
			if _, err := os.Stat(filepath.Join(parent, "go.mod")); err == nil {
				paths = append(paths, parent)
				break
			}
			if _, err := os.Stat(filepath.Join(parent, "package.json")); err == nil {
				paths = append(paths, parent)
				break
			}

			dir = parent
		}
	}

	// Home directory
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	// System-wide configuration (for future use)
	// paths = append(paths, "/etc/covergate")

	return paths
}

// ValidateConfigFile validates a configuration file without loading it fully
func ValidateConfigFile(path string) error {
	// #nosec G304 - path is provided by user for validation purposes
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }() //nolint:errcheck // Best effort cleanup

	var cfg config.Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg.Validate()
}
