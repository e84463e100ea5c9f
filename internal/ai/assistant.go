// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"context"
	"strings"

	intconfig "github.com/bebsworthy/covergate/internal/config"
	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/detector"
	"github.com/bebsworthy/covergate/pkg/config"
)

// assistantImpl implements the Assistant interface
type assistantImpl struct {
	client    *Client
	validator *intconfig.Validator
	detector  *detector.ProjectDetector
}

// NewAssistant creates a new AI assistant for configuration generation
func NewAssistant(executor commandExecutor) Assistant {
	return &assistantImpl{
		client:    NewClient(executor),
		validator: intconfig.NewValidator(),
		detector:  detector.New(),
	}
}

// GenerateConfig generates a complete validated configuration using AI
func (a *assistantImpl) GenerateConfig(ctx context.Context, options AIOptions) (*config.Config, error) {
	suggestion, err := a.SuggestConfig(ctx, options)
	if err != nil {
		return nil, err
	}

	cfg := suggestion.ToConfig()
	if err := a.validator.Validate(cfg); err != nil {
		debug.Log("AI-generated configuration failed validation: %v", err)
		return nil, NewErrorWithRecovery(
			ErrTypeValidationFailed,
			"Generated configuration failed validation",
			err,
			GetRecoverySuggestions(ErrTypeValidationFailed),
		)
	}

	debug.Log("AI config generation completed successfully")
	return cfg, nil
}

// SuggestConfig asks the AI tool for a raw configuration suggestion
func (a *assistantImpl) SuggestConfig(ctx context.Context, options AIOptions) (*ConfigSuggestion, error) {
	debug.Log("Starting AI config suggestion for: %s", options.WorkingDir)

	prompt := configPrompt(options.WorkingDir, a.projectHint(options.WorkingDir))
	debug.Log("Generated AI prompt with length: %d", len(prompt))

	response, err := a.client.Ask(ctx, prompt, options)
	if err != nil {
		return nil, err
	}

	var payload configResponse
	if err := decodeYAMLResponse(response, &payload); err != nil {
		debug.Log("Failed to parse AI config response: %v", err)
		return nil, NewErrorWithRecovery(
			ErrTypeResponseInvalid,
			msgResponseInvalid,
			err,
			GetRecoverySuggestions(ErrTypeResponseInvalid),
		)
	}
	if payload.Command == "" {
		return nil, NewAIError(ErrTypeResponseInvalid, "AI response did not include a test command", nil)
	}

	suggestion := &ConfigSuggestion{
		ProjectType: payload.ProjectType,
		Command:     payload.Command,
		Dir:         payload.Dir,
		TimeoutSec:  payload.TimeoutSec,
		ReportPath:  payload.ReportPath,
		Kind:        strings.ToLower(strings.TrimSpace(payload.Kind)),
		Explanation: payload.Explanation,
	}
	debug.Log("AI config suggestion: %s (report: %s, kind: %s)",
		suggestion.Command, suggestion.ReportPath, suggestion.Kind)
	return suggestion, nil
}

// projectHint names the project types detected from marker files, or ""
func (a *assistantImpl) projectHint(dir string) string {
	if dir == "" {
		dir = "."
	}
	types, err := a.detector.Detect(dir)
	if err != nil || len(types) == 0 {
		return ""
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.Name)
	}
	return strings.Join(names, "/")
}

// ToConfig converts a suggestion into a configuration ready for review
func (s *ConfigSuggestion) ToConfig() *config.Config {
	cfg := &config.Config{
		Version:     "1.0",
		ProjectType: s.ProjectType,
		Command: &config.CommandConfig{
			Command:    s.Command,
			Dir:        s.Dir,
			TimeoutSec: s.TimeoutSec,
		},
		Coverage: &config.CoverageConfig{
			ReportPath: s.ReportPath,
			Kind:       s.Kind,
		},
	}
	if cfg.Command.Dir == "." {
		cfg.Command.Dir = ""
	}
	return cfg
}
