// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/bebsworthy/covergate/pkg/config"
)

const (
	claudeTool = "claude"
	geminiTool = "gemini"
)

// InteractiveUI provides UI helpers for AI-assisted configuration
type InteractiveUI struct{}

// NewInteractiveUI creates a new interactive UI helper
func NewInteractiveUI() *InteractiveUI {
	return &InteractiveUI{}
}

// SelectTool prompts the user to select an AI tool from available options
func (ui *InteractiveUI) SelectTool(availableTools []Tool) (string, error) {
	if len(availableTools) == 0 {
		return "", fmt.Errorf("no AI tools available")
	}

	// If only one tool is available, use it automatically
	if len(availableTools) == 1 {
		fmt.Printf("Using %s for AI assistance.\n", availableTools[0].Name)
		return availableTools[0].Name, nil
	}

	// Build options list with tool information
	options := make([]string, len(availableTools))
	for i, tool := range availableTools {
		if tool.Version != "" {
			options[i] = fmt.Sprintf("%s (%s)", tool.Name, tool.Version)
		} else {
			options[i] = tool.Name
		}
	}

	// Prompt for tool selection
	var selected string
	prompt := &survey.Select{
		Message: "Select an AI tool for configuration assistance:",
		Options: options,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	// Extract tool name from selection
	for _, tool := range availableTools {
		if strings.HasPrefix(selected, tool.Name) {
			return tool.Name, nil
		}
	}

	return "", fmt.Errorf("invalid tool selection")
}

// ReviewSuggestion displays an AI configuration suggestion for review
func (ui *InteractiveUI) ReviewSuggestion(suggestion *ConfigSuggestion) {
	fmt.Println("\n=== Suggested Configuration ===")
	if suggestion.ProjectType != "" {
		fmt.Printf("Project Type: %s\n", suggestion.ProjectType)
	}
	fmt.Printf("Test Command: %s\n", suggestion.Command)
	if suggestion.Dir != "" && suggestion.Dir != "." {
		fmt.Printf("Run In:       %s\n", suggestion.Dir)
	}
	if suggestion.TimeoutSec > 0 {
		fmt.Printf("Timeout:      %ds\n", suggestion.TimeoutSec)
	}
	fmt.Printf("Report Path:  %s\n", suggestion.ReportPath)
	fmt.Printf("Report Kind:  %s\n", suggestion.Kind)
	if suggestion.Explanation != "" {
		fmt.Printf("\n%s\n", suggestion.Explanation)
	}
	fmt.Println("===============================")
}

// ReviewConfiguration displays a configuration summary for review
func (ui *InteractiveUI) ReviewConfiguration(cfg *config.Config) error {
	fmt.Println("\n=== Configuration Summary ===")

	if cfg.ProjectType != "" {
		fmt.Printf("Project Type: %s\n", cfg.ProjectType)
	}
	if cfg.Command != nil {
		fmt.Printf("Test Command: %s\n", cfg.Command.Command)
		if cfg.Command.Dir != "" {
			fmt.Printf("Run In:       %s\n", cfg.Command.Dir)
		}
		if cfg.Command.TimeoutSec > 0 {
			fmt.Printf("Timeout:      %ds\n", cfg.Command.TimeoutSec)
		}
	}
	if cfg.Coverage != nil {
		fmt.Printf("Report Path:  %s\n", cfg.Coverage.ReportPath)
		fmt.Printf("Report Kind:  %s\n", cfg.Coverage.Kind)
	}

	// Per-path overrides, if configured
	for _, path := range cfg.Paths {
		fmt.Printf("\nPath: %s\n", path.Path)
		if path.Command != nil {
			fmt.Printf("  Command: %s\n", path.Command.Command)
		}
		if path.Coverage != nil {
			fmt.Printf("  Report:  %s (%s)\n", path.Coverage.ReportPath, path.Coverage.Kind)
		}
	}

	fmt.Println("=============================")
	return nil
}

// ConfirmTestRun asks for user approval before running the test command
func (ui *InteractiveUI) ConfirmTestRun(command string) (bool, error) {
	fmt.Printf("\nTest command:\n  %s\n", command)

	confirm := false
	prompt := &survey.Confirm{
		Message: "Run this command to test it?",
		Default: true,
	}

	if err := survey.AskOne(prompt, &confirm); err != nil {
		return false, err
	}

	return confirm, nil
}

// ConfirmConfiguration asks for final approval before saving configuration
func (ui *InteractiveUI) ConfirmConfiguration() (bool, error) {
	confirm := false
	prompt := &survey.Confirm{
		Message: "Save this configuration?",
		Default: true,
	}

	if err := survey.AskOne(prompt, &confirm); err != nil {
		return false, err
	}

	return confirm, nil
}

// ShowAIError displays an AI-related error with helpful context
func (ui *InteractiveUI) ShowAIError(err error, toolName string) {
	fmt.Printf("\n⚠️  AI assistance error with %s: %v\n", toolName, err)

	// Provide specific guidance based on error type
	switch {
	case strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not available"):
		fmt.Println("\nTo install the AI tool:")
		ui.ShowInstallInstructions(toolName)
	case strings.Contains(err.Error(), "timeout"):
		fmt.Println("\nThe AI tool is taking longer than expected. You can:")
		fmt.Println("  - Wait longer for the response")
		fmt.Println("  - Cancel and try again")
		fmt.Println("  - Continue with manual configuration")
	case strings.Contains(err.Error(), "canceled"):
		fmt.Println("\nAI assistance canceled. Continuing with manual configuration...")
	}
}

// ShowInstallInstructions displays platform-specific installation instructions
func (ui *InteractiveUI) ShowInstallInstructions(toolName string) {
	switch toolName {
	case claudeTool:
		fmt.Println("  macOS/Linux: curl -fsSL https://cli.claude.ai/install.sh | sh")
		fmt.Println("  Windows: Visit https://cli.claude.ai for installation instructions")
	case geminiTool:
		fmt.Println("  All platforms: pip install google-generativeai")
		fmt.Println("  Or visit: https://ai.google.dev/gemini-api/docs/quickstart")
	default:
		fmt.Printf("  Please refer to the %s documentation for installation instructions.\n", toolName)
	}
}
