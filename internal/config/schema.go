// Package config provides schema versioning for covergate configurations
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bebsworthy/covergate/internal/debug"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// CurrentSchemaVersion is the current configuration schema version
const CurrentSchemaVersion = "1.0"

// MigrationFunc migrates a configuration from one version to another
type MigrationFunc func(cfg *pkgconfig.Config) (*pkgconfig.Config, error)

type migrationStep struct {
	to string
	fn MigrationFunc
}

// SchemaVersioner upgrades configurations written against older schema
// versions. Versions form a single line, so each version has at most one
// outgoing migration.
type SchemaVersioner struct {
	steps map[string]migrationStep
}

// NewSchemaVersioner creates a versioner with all known migrations.
func NewSchemaVersioner() *SchemaVersioner {
	sv := &SchemaVersioner{steps: make(map[string]migrationStep)}

	sv.RegisterMigration("0.9", "1.0", migrateV0_9ToV1_0)

	return sv
}

// RegisterMigration registers the migration leaving fromVersion.
func (sv *SchemaVersioner) RegisterMigration(fromVersion, toVersion string, fn MigrationFunc) {
	sv.steps[fromVersion] = migrationStep{to: toVersion, fn: fn}
}

// ValidateVersion checks that a configuration version parses and is not
// newer than this binary supports.
func (sv *SchemaVersioner) ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("configuration version is required")
	}

	major, minor, err := parseVersion(version)
	if err != nil {
		return fmt.Errorf("invalid version format: %w", err)
	}

	currentMajor, currentMinor, _ := parseVersion(CurrentSchemaVersion)
	if major > currentMajor || (major == currentMajor && minor > currentMinor) {
		return fmt.Errorf("configuration version %s is newer than supported version %s", version, CurrentSchemaVersion)
	}

	return nil
}

// MigrateConfig walks the configuration forward one version at a time
// until it reaches the current schema version. Versions with no registered
// migration are plain renumberings.
func (sv *SchemaVersioner) MigrateConfig(cfg *pkgconfig.Config) (*pkgconfig.Config, error) {
	debug.LogSection("Schema Migration")
	debug.Log("Current config version: %s", cfg.Version)
	debug.Log("Target version: %s", CurrentSchemaVersion)

	if err := sv.ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}

	result := cfg
	for result.Version != CurrentSchemaVersion {
		step, ok := sv.steps[result.Version]
		if !ok {
			major, minor, err := parseVersion(result.Version)
			if err != nil {
				return nil, fmt.Errorf("invalid version format: %w", err)
			}
			major, minor = nextVersion(major, minor)
			debug.Log("No migration needed from %s to %d.%d", result.Version, major, minor)
			result.Version = fmt.Sprintf("%d.%d", major, minor)
			continue
		}

		debug.Log("Applying migration from %s to %s", result.Version, step.to)
		migrated, err := step.fn(result)
		if err != nil {
			return nil, fmt.Errorf("migration from %s to %s failed: %w", result.Version, step.to, err)
		}
		migrated.Version = step.to
		result = migrated
	}

	debug.Log("Migration complete. New version: %s", result.Version)
	return result, nil
}

// nextVersion advances along the linear version sequence.
func nextVersion(major, minor int) (int, int) {
	if minor < 9 {
		return major, minor + 1
	}
	return major + 1, 0
}

// parseVersion splits an X.Y version into its numeric components.
func parseVersion(version string) (int, int, error) {
	majorStr, minorStr, ok := strings.Cut(version, ".")
	if !ok || strings.Contains(minorStr, ".") {
		return 0, 0, fmt.Errorf("version must be in format X.Y")
	}

	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid major version: %w", err)
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minor version: %w", err)
	}

	return major, minor, nil
}

// migrateV0_9ToV1_0 upgrades 0.9 configurations, which expressed the
// desired coverage target as a fraction. Version 1.0 uses percent.
func migrateV0_9ToV1_0(cfg *pkgconfig.Config) (*pkgconfig.Config, error) {
	if cfg.Validation != nil && cfg.Validation.DesiredCoverage > 0 && cfg.Validation.DesiredCoverage <= 1 {
		cfg.Validation.DesiredCoverage *= 100
	}

	cfg.Version = "1.0"
	return cfg, nil
}
