// Package main provides the config command for covergate
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/bebsworthy/covergate/internal/ai"
	"github.com/bebsworthy/covergate/internal/config"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/internal/wizard"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// Config command flags
var (
	validateFlag  bool
	outputPath    string
	forceFlag     bool
	configUseAI   bool
	configAITool  string
	configTimeout time.Duration
	configNoTest  bool
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or validate covergate configuration",
	Long: `Create a new covergate configuration through an interactive wizard, let
an AI CLI tool draft one from your project layout, or validate an
existing configuration file.

The wizard detects your project type, proposes a test command and a
coverage report location, optionally runs the command to verify it, and
asks for the source/test pairs to validate. With --ai an installed AI
CLI tool (claude, gemini) analyzes the project and proposes the whole
configuration for your review; everything still falls back to the
manual wizard.`,
	Example: `  # Create a new configuration interactively
  covergate config

  # Let an AI tool draft the configuration
  covergate config --ai

  # Use a specific AI tool without the test run
  covergate config --ai --ai-tool claude --no-test

  # Validate the current configuration
  covergate config --validate

  # Validate a specific config file
  covergate --config ./my-config.json config --validate

  # Write the configuration somewhere else
  covergate config --output ./configs/covergate.json`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&validateFlag, "validate", false, "Validate existing configuration")
	configCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path for configuration file")
	configCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite existing configuration without prompting")
	configCmd.Flags().BoolVar(&configUseAI, "ai", false, "Generate the configuration with an AI CLI tool")
	configCmd.Flags().StringVar(&configAITool, "ai-tool", "", "AI tool to use (claude, gemini)")
	configCmd.Flags().DurationVar(&configTimeout, "timeout", 5*time.Minute, "Timeout for AI analysis")
	configCmd.Flags().BoolVar(&configNoTest, "no-test", false, "Skip running the proposed test command")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if validateFlag {
		return runValidateConfig()
	}
	if configUseAI {
		return runAIConfig(cmd.Context())
	}
	return runConfigWizard()
}

// runValidateConfig validates the current configuration
func runValidateConfig() error {
	fmt.Println("Validating covergate configuration...")

	// Load configuration
	loader := config.NewLoader()
	var cfg *pkgconfig.Config
	var err error

	if configPath != "" {
		cfg, err = loader.LoadFromPath(configPath)
	} else {
		cfg, err = loader.Load()
	}

	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	validator := config.NewValidator()
	if err := validator.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "\n❌ Configuration validation failed:\n")
		fmt.Fprintf(os.Stderr, "   %v\n", err)

		// Suggest fixes
		suggestions := validator.SuggestFixes(err)
		if len(suggestions) > 0 {
			fmt.Fprintf(os.Stderr, "\n💡 Suggestions:\n")
			for _, suggestion := range suggestions {
				fmt.Fprintf(os.Stderr, "   • %s\n", suggestion)
			}
		}

		return fmt.Errorf("configuration is invalid")
	}

	fmt.Println("\n✅ Configuration is valid!")

	// Display configuration summary
	fmt.Printf("\n📋 Configuration Summary:\n")
	printConfigSummary(cfg)
	return nil
}

// printConfigSummary prints what a configuration wires together
func printConfigSummary(cfg *pkgconfig.Config) {
	fmt.Printf("   Version: %s\n", cfg.Version)
	if cfg.ProjectType != "" {
		fmt.Printf("   Project Type: %s\n", cfg.ProjectType)
	}
	if cfg.Command != nil {
		fmt.Printf("   Test Command: %s\n", cfg.Command.Command)
	}
	if cfg.Coverage != nil {
		fmt.Printf("   Coverage Report: %s (%s)\n", cfg.Coverage.ReportPath, cfg.Coverage.Kind)
	}
	if cfg.Validation != nil && cfg.Validation.DesiredCoverage > 0 {
		fmt.Printf("   Desired Coverage: %.1f%%\n", cfg.Validation.DesiredCoverage)
	}
	if len(cfg.Targets) > 0 {
		fmt.Printf("   Targets: %d configured\n", len(cfg.Targets))
	}
	if len(cfg.Paths) > 0 {
		fmt.Printf("   Monorepo Paths: %d configured\n", len(cfg.Paths))
	}
}

// runConfigWizard drives the interactive configuration wizard. An AI
// integration rides along so the wizard can offer AI assistance first
// and degrade to the manual flow.
func runConfigWizard() error {
	w, err := wizard.NewConfigWizard()
	if err != nil {
		return fmt.Errorf("failed to create configuration wizard: %w", err)
	}
	integration := wizard.NewAIIntegration(executor.NewCommandExecutor(configTimeout))
	return w.WithAI(integration).Run(outputPath, forceFlag)
}

// runAIConfig lets an AI CLI tool draft the whole configuration
func runAIConfig(ctx context.Context) error {
	fmt.Println("🤖 AI-Powered Configuration")
	fmt.Println("An installed AI CLI tool will analyze your project and propose a")
	fmt.Println("covergate configuration for your review.")
	fmt.Println()

	savePath := outputPath
	if savePath == "" {
		savePath = config.ConfigFileName
	}
	if !forceFlag {
		if proceed, err := confirmOverwrite(savePath); err != nil {
			return err
		} else if !proceed {
			fmt.Println("Configuration canceled.")
			return nil
		}
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	integration := wizard.NewAIIntegration(executor.NewCommandExecutor(configTimeout))
	cfg, err := integration.GenerateConfig(ctx, ai.AIOptions{
		Tool:        configAITool,
		WorkingDir:  workDir,
		Interactive: true,
		Timeout:     configTimeout,
	}, !configNoTest)
	if err != nil {
		return handleAIError(err)
	}
	if cfg == nil {
		fmt.Println("Configuration canceled.")
		return nil
	}

	if err := saveConfiguration(cfg, savePath); err != nil {
		return err
	}

	fmt.Printf("\n✅ Configuration saved to %s\n\n", savePath)
	fmt.Println("Next steps:")
	fmt.Println("   covergate baseline                    # check the coverage wiring")
	fmt.Println("   covergate run --candidates tests.yaml # validate candidates")
	return nil
}

// confirmOverwrite asks before replacing an existing configuration file
func confirmOverwrite(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return true, nil
	}

	var action string
	prompt := &survey.Select{
		Message: fmt.Sprintf("Configuration file %s already exists. What would you like to do?", path),
		Options: []string{
			"Overwrite with AI-generated configuration",
			"Cancel",
		},
	}
	if err := survey.AskOne(prompt, &action); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return action == "Overwrite with AI-generated configuration", nil
}

// handleAIError translates AI failures into actionable messages
func handleAIError(err error) error {
	var recovery *ai.ErrorWithRecovery
	if errors.As(err, &recovery) {
		fmt.Fprintf(os.Stderr, "\n❌ %s\n", recovery.Message)
		if len(recovery.RecoverySuggestions) > 0 {
			fmt.Fprintf(os.Stderr, "\n💡 Suggestions:\n")
			for _, s := range recovery.RecoverySuggestions {
				fmt.Fprintf(os.Stderr, "   • %s\n", s)
			}
		}
		fmt.Fprintf(os.Stderr, "\n📝 You can always configure manually using:\n   covergate config\n")
		return fmt.Errorf("AI configuration failed")
	}

	var aiErr *ai.AIError
	if errors.As(err, &aiErr) {
		fmt.Fprintf(os.Stderr, "\n❌ %s\n", aiErr.Message)
		fmt.Fprintf(os.Stderr, "\n📝 You can always configure manually using:\n   covergate config\n")
		return fmt.Errorf("AI configuration failed")
	}
	return fmt.Errorf("AI configuration failed: %w", err)
}

// saveConfiguration writes the configuration to disk
func saveConfiguration(cfg *pkgconfig.Config, path string) error {
	data, err := pkgconfig.SaveConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}
