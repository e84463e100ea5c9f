package wizard

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/bebsworthy/covergate/internal/ai"
	"github.com/bebsworthy/covergate/internal/executor"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// AIIntegration adds AI-assisted configuration to the wizard. It drives
// the local AI CLI tools through the ai package and keeps the user in the
// loop at every step: review, optional test run, final confirmation.
type AIIntegration struct {
	assistant ai.Assistant
	ui        *ai.InteractiveUI
	tester    *ai.CommandTester
}

// NewAIIntegration creates a new AI integration for the wizard
func NewAIIntegration(exec *executor.CommandExecutor) *AIIntegration {
	return &AIIntegration{
		assistant: ai.NewAssistant(exec),
		ui:        ai.NewInteractiveUI(),
		tester:    ai.NewCommandTester(exec),
	}
}

// GenerateConfig runs the full AI configuration flow: generate, review,
// optionally test the command, confirm. A nil config with nil error means
// the user declined the result.
func (a *AIIntegration) GenerateConfig(ctx context.Context, options ai.AIOptions, testCommand bool) (*pkgconfig.Config, error) {
	cfg, err := a.assistant.GenerateConfig(ctx, options)
	if err != nil {
		return nil, err
	}

	if err := a.ui.ReviewConfiguration(cfg); err != nil {
		return nil, err
	}

	if testCommand && cfg.Command != nil {
		result, err := a.tester.TestCommand(ctx, cfg.Command)
		if err != nil {
			return nil, err
		}
		if result.Modified && result.FinalCommand != nil {
			cfg.Command = result.FinalCommand
		}
		keep, err := resolveTestOutcome(result)
		if err != nil {
			return nil, err
		}
		if !keep {
			fmt.Println("Discarding the generated configuration.")
			return nil, nil
		}
	}

	confirmed, err := a.ui.ConfirmConfiguration()
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, nil
	}

	return cfg, nil
}

// SuggestCommand offers an AI-proposed test command inside the manual
// wizard flow. A nil command with nil error means the user skipped AI
// assistance or rejected the suggestion; the wizard falls back to prompts.
func (a *AIIntegration) SuggestCommand(ctx context.Context) (*pkgconfig.CommandConfig, *pkgconfig.CoverageConfig, error) {
	useAI := false
	prompt := &survey.Confirm{
		Message: "Would you like AI assistance to configure the test command?",
		Default: false,
	}
	if err := survey.AskOne(prompt, &useAI); err != nil {
		return nil, nil, err
	}
	if !useAI {
		return nil, nil, nil
	}

	fmt.Println("\nAsking the AI tool for a test command suggestion...")
	suggestion, err := a.assistant.SuggestConfig(ctx, ai.AIOptions{Interactive: true})
	if err != nil {
		fmt.Printf("AI suggestion failed: %v\n", err)
		fmt.Println("Continuing with manual configuration...")
		return nil, nil, nil
	}

	a.ui.ReviewSuggestion(suggestion)

	useSuggestion := false
	confirmPrompt := &survey.Confirm{
		Message: "Use this suggested command?",
		Default: true,
	}
	if err := survey.AskOne(confirmPrompt, &useSuggestion); err != nil {
		return nil, nil, err
	}
	if !useSuggestion {
		return nil, nil, nil
	}

	command := &pkgconfig.CommandConfig{
		Command:    suggestion.Command,
		Dir:        suggestion.Dir,
		TimeoutSec: suggestion.TimeoutSec,
	}
	if command.Dir == "." {
		command.Dir = ""
	}

	var coverageCfg *pkgconfig.CoverageConfig
	if suggestion.ReportPath != "" {
		coverageCfg = &pkgconfig.CoverageConfig{
			ReportPath: suggestion.ReportPath,
			Kind:       suggestion.Kind,
		}
	}

	testIt := false
	testPrompt := &survey.Confirm{
		Message: "Test this command before saving?",
		Default: true,
	}
	if err := survey.AskOne(testPrompt, &testIt); err != nil {
		return nil, nil, err
	}
	if testIt {
		result, err := a.tester.TestCommand(ctx, command)
		if err != nil {
			return nil, nil, err
		}
		if result.Modified && result.FinalCommand != nil {
			command = result.FinalCommand
		}
		keep, err := resolveTestOutcome(result)
		if err != nil {
			return nil, nil, err
		}
		if !keep {
			return nil, nil, nil
		}
	}

	return command, coverageCfg, nil
}

// resolveTestOutcome decides whether a tested command should be kept.
// Successful, user-modified, and skipped runs are kept; a plain failure
// asks the user.
func resolveTestOutcome(result *ai.TestResult) (bool, error) {
	if result.Success || result.Modified {
		return true, nil
	}
	if result.Error == nil && result.ExitCode == 0 {
		// the user skipped the run
		return true, nil
	}

	keep := false
	prompt := &survey.Confirm{
		Message: "The command failed. Keep it in the configuration anyway?",
		Default: false,
	}
	if err := survey.AskOne(prompt, &keep); err != nil {
		return false, err
	}
	return keep, nil
}
