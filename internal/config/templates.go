// Package config provides configuration templates management for covergate
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bebsworthy/covergate/internal/debug"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// TemplateManager handles configuration template import/export
type TemplateManager struct {
	// Directory to store/load templates
	templateDir string
}

// NewTemplateManager creates a new template manager
func NewTemplateManager() *TemplateManager {
	// Default to ~/.covergate/templates
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &TemplateManager{
		templateDir: filepath.Join(home, ".covergate", "templates"),
	}
}

// SetTemplateDir sets a custom template directory
func (tm *TemplateManager) SetTemplateDir(dir string) {
	tm.templateDir = dir
}

// ExportTemplate exports a configuration as a reusable template
func (tm *TemplateManager) ExportTemplate(cfg *pkgconfig.Config, name, description string) error {
	debug.LogSection("Export Template")
	debug.Log("Exporting template: %s", name)

	// Validate name
	if name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\:*?\"<>|") {
		return fmt.Errorf("template name contains invalid characters")
	}

	// Create template metadata
	template := &ConfigTemplate{
		Name:        name,
		Description: description,
		Version:     "1.0",
		Config:      cfg,
		Metadata: TemplateMetadata{
			CreatedAt:    time.Now().Format(time.RFC3339),
			CovergateMin: "0.1.0", // Minimum covergate version
		},
	}

	// Ensure template directory exists
	if err := os.MkdirAll(tm.templateDir, 0750); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	// Save template
	templatePath := filepath.Join(tm.templateDir, name+".json")
	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	if err := os.WriteFile(templatePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}

	debug.Log("Template exported to: %s", templatePath)
	return nil
}

// ImportTemplate imports a configuration template
func (tm *TemplateManager) ImportTemplate(nameOrPath string) (*pkgconfig.Config, error) {
	debug.LogSection("Import Template")
	debug.Log("Importing template: %s", nameOrPath)

	// Determine if it's a path or template name
	var templatePath string
	if strings.Contains(nameOrPath, string(os.PathSeparator)) || strings.HasSuffix(nameOrPath, ".json") {
		// It's a path
		templatePath = nameOrPath
	} else {
		// It's a template name, look in template directory
		templatePath = filepath.Join(tm.templateDir, nameOrPath+".json")
	}

	// Read template file
	// #nosec G304 - templatePath is constructed from controlled inputs
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template not found: %s", nameOrPath)
		}
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	// Parse template
	var template ConfigTemplate
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	debug.Log("Imported template: %s (version: %s)", template.Name, template.Version)

	// Validate config
	if template.Config == nil {
		return nil, fmt.Errorf("template contains no configuration")
	}

	return template.Config, nil
}

// ListTemplates lists available templates
func (tm *TemplateManager) ListTemplates() ([]TemplateInfo, error) {
	debug.LogSection("List Templates")

	// Check if template directory exists
	if _, err := os.Stat(tm.templateDir); os.IsNotExist(err) {
		debug.Log("Template directory does not exist: %s", tm.templateDir)
		return []TemplateInfo{}, nil
	}

	// Read directory
	entries, err := os.ReadDir(tm.templateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	var templates []TemplateInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// Read template file to get info
		templatePath := filepath.Join(tm.templateDir, entry.Name())
		// #nosec G304 - templatePath is constructed from directory listing
		data, err := os.ReadFile(templatePath)
		if err != nil {
			debug.LogError(err, "reading template file")
			continue
		}

		var template ConfigTemplate
		if err := json.Unmarshal(data, &template); err != nil {
			debug.LogError(err, "parsing template file")
			continue
		}

		templates = append(templates, TemplateInfo{
			Name:        template.Name,
			Description: template.Description,
			Path:        templatePath,
			CreatedAt:   template.Metadata.CreatedAt,
		})
	}

	debug.Log("Found %d templates", len(templates))
	return templates, nil
}

// MergeConfigs merges two configurations, with the source overriding the target
func (tm *TemplateManager) MergeConfigs(target, source *pkgconfig.Config) *pkgconfig.Config {
	debug.LogSection("Merge Configurations")

	// Create a new config based on target
	merged := &pkgconfig.Config{
		Version:      source.Version, // Use source version
		ProjectType:  source.ProjectType,
		Command:      target.Command.Clone(),
		Coverage:     target.Coverage.Clone(),
		Validation:   target.Validation.Clone(),
		OutputFilter: target.OutputFilter.Clone(),
		HistoryPath:  target.HistoryPath,
	}

	// If source project type is empty, use target
	if merged.ProjectType == "" && target.ProjectType != "" {
		merged.ProjectType = target.ProjectType
	}

	// Override sections present in the source
	if source.Command != nil {
		debug.Log("Merging command: %s", source.Command.Command)
		merged.Command = source.Command.Clone()
	}
	if source.Coverage != nil {
		merged.Coverage = source.Coverage.Clone()
	}
	if source.Validation != nil {
		merged.Validation = source.Validation.Clone()
	}
	if source.OutputFilter != nil {
		merged.OutputFilter = source.OutputFilter.Clone()
	}
	if source.HistoryPath != "" {
		merged.HistoryPath = source.HistoryPath
	}

	// Merge targets (source targets take precedence, keyed by source file)
	for _, t := range source.Targets {
		merged.Targets = append(merged.Targets, cloneTargetConfig(t))
	}
	for _, targetEntry := range target.Targets {
		conflict := false
		for _, sourceEntry := range source.Targets {
			if targetEntry.SourceFile == sourceEntry.SourceFile {
				conflict = true
				break
			}
		}
		if !conflict {
			merged.Targets = append(merged.Targets, cloneTargetConfig(targetEntry))
		}
	}

	// Merge paths (source paths take precedence)
	// First add source paths
	for _, path := range source.Paths {
		merged.Paths = append(merged.Paths, clonePathConfig(path))
	}

	// Then add target paths that don't conflict
	for _, targetPath := range target.Paths {
		conflict := false
		for _, sourcePath := range source.Paths {
			if targetPath.Path == sourcePath.Path {
				conflict = true
				break
			}
		}
		if !conflict {
			merged.Paths = append(merged.Paths, clonePathConfig(targetPath))
		}
	}

	debug.Log("Merged config: %d targets, %d paths", len(merged.Targets), len(merged.Paths))
	return merged
}

// ValidateTemplate validates a template before export
func (tm *TemplateManager) ValidateTemplate(cfg *pkgconfig.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Version == "" {
		return fmt.Errorf("configuration version is required")
	}

	if cfg.Command == nil && len(cfg.Paths) == 0 {
		return fmt.Errorf("configuration must define a command or per-path commands")
	}

	// Use the standard validator
	validator := NewValidator()
	return validator.Validate(cfg)
}

// ConfigTemplate represents a configuration template with metadata
type ConfigTemplate struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     string            `json:"version"`
	Config      *pkgconfig.Config `json:"config"`
	Metadata    TemplateMetadata  `json:"metadata"`
}

// TemplateMetadata contains template metadata
type TemplateMetadata struct {
	CreatedAt    string `json:"created_at"`
	CovergateMin string `json:"covergate_min"` // Minimum covergate version
}

// TemplateInfo provides basic information about a template
type TemplateInfo struct {
	Name        string
	Description string
	Path        string
	CreatedAt   string
}

// cloneTargetConfig creates a deep copy of TargetConfig
func cloneTargetConfig(t *pkgconfig.TargetConfig) *pkgconfig.TargetConfig {
	if t == nil {
		return nil
	}

	return &pkgconfig.TargetConfig{
		SourceFile: t.SourceFile,
		TestFile:   t.TestFile,
		ReportPath: t.ReportPath,
	}
}

// clonePathConfig creates a deep copy of PathConfig
func clonePathConfig(p *pkgconfig.PathConfig) *pkgconfig.PathConfig {
	if p == nil {
		return nil
	}

	return &pkgconfig.PathConfig{
		Path:     p.Path,
		Extends:  p.Extends,
		Command:  p.Command.Clone(),
		Coverage: p.Coverage.Clone(),
	}
}
