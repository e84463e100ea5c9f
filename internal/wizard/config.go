// Package wizard provides the interactive configuration flow for covergate.
package wizard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	intconfig "github.com/bebsworthy/covergate/internal/config"
	"github.com/bebsworthy/covergate/internal/coverage"
	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/detector"
	pkgconfig "github.com/bebsworthy/covergate/pkg/config"
)

// ConfigWizard walks a user through creating .covergate.json: project
// detection, the test command and coverage report, validation bounds,
// and optional target pairs.
type ConfigWizard struct {
	projectDetector *detector.ProjectDetector
	defaults        *intconfig.DefaultConfigs
	ai              *AIIntegration
}

// NewConfigWizard creates a new configuration wizard
func NewConfigWizard() (*ConfigWizard, error) {
	defaults, err := intconfig.NewDefaultConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to load default configs: %w", err)
	}

	return &ConfigWizard{
		projectDetector: detector.New(),
		defaults:        defaults,
	}, nil
}

// WithAI enables AI-suggested commands inside the manual flow.
func (w *ConfigWizard) WithAI(integration *AIIntegration) *ConfigWizard {
	w.ai = integration
	return w
}

// Run runs the interactive configuration wizard
func (w *ConfigWizard) Run(outputPath string, force bool) error {
	debug.LogSection("Configuration Wizard")

	path, err := w.determineOutputPath(outputPath)
	if err != nil {
		return err
	}
	outputPath = path

	if !force {
		overwrite, err := w.checkExistingConfig(outputPath)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Configuration wizard canceled.")
			return nil
		}
	}

	w.printWelcome()

	detectedTypes, monorepoInfo, err := w.detectProject()
	if err != nil {
		return err
	}
	w.displayDetectionResults(detectedTypes, monorepoInfo)

	cfg, err := w.createConfiguration(detectedTypes)
	if err != nil {
		return err
	}

	if err := w.configureValidation(cfg); err != nil {
		return err
	}

	if err := w.configureTargets(cfg); err != nil {
		return err
	}

	cfg, err = w.handleMonorepoConfig(cfg, monorepoInfo)
	if err != nil {
		return err
	}

	if err := w.validateAndSave(cfg, outputPath); err != nil {
		return err
	}

	w.printSuccess(outputPath)
	return nil
}

// createFromDefault returns the embedded default configuration for a
// detected project type.
func (w *ConfigWizard) createFromDefault(projectType string) (*pkgconfig.Config, error) {
	return w.defaults.GetConfig(intconfig.ProjectType(strings.ToLower(projectType)))
}

// createManualConfiguration builds a configuration from prompts. Runner
// detection seeds the defaults so most users only confirm.
func (w *ConfigWizard) createManualConfiguration() (*pkgconfig.Config, error) {
	cfg := &pkgconfig.Config{
		Version:  "1.0",
		Command:  &pkgconfig.CommandConfig{},
		Coverage: &pkgconfig.CoverageConfig{},
	}

	if err := w.configureProjectType(cfg); err != nil {
		return nil, err
	}

	proposal, _ := w.runnerProposal(cfg.ProjectType)

	if w.ai != nil {
		command, coverageCfg, err := w.ai.SuggestCommand(context.Background())
		if err != nil {
			return nil, err
		}
		if command != nil {
			cfg.Command = command
			if coverageCfg != nil {
				cfg.Coverage = coverageCfg
			}
			return cfg, nil
		}
	}

	if err := w.configureCommand(cfg, proposal); err != nil {
		return nil, err
	}
	if err := w.configureCoverage(cfg, proposal); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runnerProposal finds the best test-runner proposal for the current
// directory, falling back to the ecosystem default for the project type.
func (w *ConfigWizard) runnerProposal(projectType string) (detector.TestRunner, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return detector.TestRunner{}, false
	}
	return w.runnerProposalIn(cwd, projectType)
}

func (w *ConfigWizard) runnerProposalIn(dir, projectType string) (detector.TestRunner, bool) {
	if runner, ok := w.projectDetector.BestTestRunner(dir); ok {
		return runner, true
	}
	if projectType != "" {
		return detector.RunnerForProjectType(projectType)
	}
	return detector.TestRunner{}, false
}

// configureCommand prompts for the test command, its directory and timeout.
func (w *ConfigWizard) configureCommand(cfg *pkgconfig.Config, proposal detector.TestRunner) error {
	fmt.Println("\n📝 Test command")
	fmt.Println("The command must run the whole suite and regenerate the coverage report.")

	command := ""
	commandPrompt := &survey.Input{
		Message: "Test command:",
		Default: proposal.Command,
	}
	if err := survey.AskOne(commandPrompt, &command, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	cfg.Command.Command = command

	dir := ""
	dirPrompt := &survey.Input{
		Message: "Directory to run it in (empty for the project root):",
	}
	if err := survey.AskOne(dirPrompt, &dir); err != nil {
		return err
	}
	cfg.Command.Dir = dir

	timeout := ""
	timeoutPrompt := &survey.Input{
		Message: "Timeout in seconds:",
		Default: "600",
	}
	if err := survey.AskOne(timeoutPrompt, &timeout); err != nil {
		return err
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(timeout)); err == nil && seconds > 0 {
		cfg.Command.TimeoutSec = seconds
	} else {
		cfg.Command.TimeoutSec = 600
	}

	return nil
}

// configureCoverage prompts for the report location and dialect.
func (w *ConfigWizard) configureCoverage(cfg *pkgconfig.Config, proposal detector.TestRunner) error {
	fmt.Println("\n📊 Coverage report")

	reportPath := ""
	pathPrompt := &survey.Input{
		Message: "Coverage report path (written by the test command):",
		Default: proposal.ReportPath,
	}
	if err := survey.AskOne(pathPrompt, &reportPath, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	cfg.Coverage.ReportPath = reportPath

	kind := ""
	kindPrompt := &survey.Select{
		Message: "Report kind:",
		Options: coverage.Kinds(),
	}
	if proposal.ReportKind != "" {
		kindPrompt.Default = proposal.ReportKind
	}
	if err := survey.AskOne(kindPrompt, &kind); err != nil {
		return err
	}
	cfg.Coverage.Kind = kind

	aggregate := false
	aggregatePrompt := &survey.Confirm{
		Message: "Measure the whole report instead of the target source file?",
		Default: false,
	}
	if err := survey.AskOne(aggregatePrompt, &aggregate); err != nil {
		return err
	}
	cfg.Coverage.Aggregate = aggregate

	return nil
}

// configureValidation prompts for the run bounds: desired coverage,
// candidate budget, strict gating.
func (w *ConfigWizard) configureValidation(cfg *pkgconfig.Config) error {
	setTarget := false
	targetPrompt := &survey.Confirm{
		Message: "Set a desired coverage target?",
		Default: false,
	}
	if err := survey.AskOne(targetPrompt, &setTarget); err != nil {
		return err
	}
	if !setTarget {
		return nil
	}

	validation := &pkgconfig.ValidationConfig{}

	target := ""
	percentPrompt := &survey.Input{
		Message: "Desired coverage percent (runs stop early once reached):",
		Default: "80",
	}
	if err := survey.AskOne(percentPrompt, &target, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	percent, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
	if err != nil || percent < 0 || percent > 100 {
		fmt.Println("  Not a percentage between 0 and 100; using 80.")
		percent = 80
	}
	validation.DesiredCoverage = percent

	budget := ""
	budgetPrompt := &survey.Input{
		Message: "Maximum candidates per run (0 for unlimited):",
		Default: "0",
	}
	if err := survey.AskOne(budgetPrompt, &budget); err != nil {
		return err
	}
	if limit, err := strconv.Atoi(strings.TrimSpace(budget)); err == nil && limit > 0 {
		validation.MaxCandidates = limit
	}

	strict := false
	strictPrompt := &survey.Confirm{
		Message: "Fail the run (exit code 2) when the target is missed?",
		Default: false,
	}
	if err := survey.AskOne(strictPrompt, &strict); err != nil {
		return err
	}
	validation.Strict = strict

	cfg.Validation = validation
	return nil
}

// configureTargets optionally records source/test pairs so runs can name
// a target instead of repeating flags.
func (w *ConfigWizard) configureTargets(cfg *pkgconfig.Config) error {
	for {
		addTarget := false
		prompt := &survey.Confirm{
			Message: "Add a source/test target pair?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &addTarget); err != nil {
			return err
		}
		if !addTarget {
			return nil
		}

		source := ""
		sourcePrompt := &survey.Input{
			Message: "Source file under validation:",
		}
		if err := survey.AskOne(sourcePrompt, &source, survey.WithValidator(survey.Required)); err != nil {
			return err
		}

		test := ""
		testPrompt := &survey.Input{
			Message: "Test file candidates are inserted into:",
		}
		if err := survey.AskOne(testPrompt, &test, survey.WithValidator(survey.Required)); err != nil {
			return err
		}

		cfg.Targets = append(cfg.Targets, &pkgconfig.TargetConfig{
			SourceFile: source,
			TestFile:   test,
		})
	}
}

// customizeConfiguration lets the user adjust a default configuration.
func (w *ConfigWizard) customizeConfiguration(cfg *pkgconfig.Config) (*pkgconfig.Config, error) {
	fmt.Println("\n🛠  Customizing configuration...")

	if cfg.Command == nil {
		cfg.Command = &pkgconfig.CommandConfig{}
	}
	if cfg.Coverage == nil {
		cfg.Coverage = &pkgconfig.CoverageConfig{}
	}

	command := cfg.Command.Command
	commandPrompt := &survey.Input{
		Message: "Test command:",
		Default: cfg.Command.Command,
	}
	if err := survey.AskOne(commandPrompt, &command); err != nil {
		return nil, err
	}
	if command != "" {
		cfg.Command.Command = command
	}

	reportPath := cfg.Coverage.ReportPath
	pathPrompt := &survey.Input{
		Message: "Coverage report path:",
		Default: cfg.Coverage.ReportPath,
	}
	if err := survey.AskOne(pathPrompt, &reportPath); err != nil {
		return nil, err
	}
	if reportPath != "" {
		cfg.Coverage.ReportPath = reportPath
	}

	kind := cfg.Coverage.Kind
	kindPrompt := &survey.Select{
		Message: "Report kind:",
		Options: coverage.Kinds(),
		Default: cfg.Coverage.Kind,
	}
	if err := survey.AskOne(kindPrompt, &kind); err != nil {
		return nil, err
	}
	cfg.Coverage.Kind = kind

	return cfg, nil
}

// configureMonorepoPaths records per-workspace command and report
// overrides for the workspaces the user opts into.
func (w *ConfigWizard) configureMonorepoPaths(cfg *pkgconfig.Config, info *detector.MonorepoInfo) (*pkgconfig.Config, error) {
	fmt.Println("\n🏢 Configuring monorepo paths...")

	for _, workspace := range info.Workspaces {
		if projects, exists := info.SubProjects[workspace]; exists && len(projects) > 0 {
			fmt.Printf("\nWorkspace: %s (detected: %s)\n", workspace, projects[0].Name)
		} else {
			fmt.Printf("\nWorkspace: %s\n", workspace)
		}

		configure := false
		configPrompt := &survey.Confirm{
			Message: "Configure a workspace-specific test command?",
			Default: false,
		}
		if err := survey.AskOne(configPrompt, &configure); err != nil {
			return nil, err
		}
		if !configure {
			continue
		}

		command := ""
		commandPrompt := &survey.Input{
			Message: fmt.Sprintf("Test command for %s:", workspace),
		}
		if err := survey.AskOne(commandPrompt, &command, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}

		pathConfig := &pkgconfig.PathConfig{
			Path: workspace + "/**",
			Command: &pkgconfig.CommandConfig{
				Command: command,
				Dir:     workspace,
			},
		}

		reportPath := ""
		reportPrompt := &survey.Input{
			Message: "Workspace coverage report path (empty to inherit):",
		}
		if err := survey.AskOne(reportPrompt, &reportPath); err != nil {
			return nil, err
		}
		if reportPath != "" {
			kind := ""
			rootKind := ""
			if cfg.Coverage != nil {
				rootKind = cfg.Coverage.Kind
			}
			kindPrompt := &survey.Select{
				Message: "Workspace report kind:",
				Options: coverage.Kinds(),
			}
			if rootKind != "" {
				kindPrompt.Default = rootKind
			}
			if err := survey.AskOne(kindPrompt, &kind); err != nil {
				return nil, err
			}
			pathConfig.Coverage = &pkgconfig.CoverageConfig{
				ReportPath: reportPath,
				Kind:       kind,
			}
		}

		cfg.Paths = append(cfg.Paths, pathConfig)
	}

	return cfg, nil
}

// determineOutputPath determines the output path for configuration
func (w *ConfigWizard) determineOutputPath(outputPath string) (string, error) {
	if outputPath != "" {
		return outputPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return filepath.Join(cwd, intconfig.ConfigFileName), nil
}

// checkExistingConfig checks if config exists and prompts for overwrite
func (w *ConfigWizard) checkExistingConfig(outputPath string) (bool, error) {
	if _, err := os.Stat(outputPath); err != nil {
		return true, nil
	}

	overwrite := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Configuration already exists at %s. Overwrite?", outputPath),
		Default: false,
	}
	if err := survey.AskOne(prompt, &overwrite); err != nil {
		return false, err
	}
	return overwrite, nil
}

// printWelcome prints welcome message
func (w *ConfigWizard) printWelcome() {
	fmt.Println("🚀 Welcome to the covergate configuration wizard!")
	fmt.Println("This wizard sets up coverage-gated test validation for your project.")
}

// detectProject detects project type and monorepo
func (w *ConfigWizard) detectProject() ([]detector.ProjectType, *detector.MonorepoInfo, error) {
	projectDir, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	detectedTypes, err := w.projectDetector.Detect(projectDir)
	if err != nil {
		debug.LogError(err, "detecting project type")
	}

	monorepoInfo, err := w.projectDetector.DetectMonorepo(projectDir)
	if err != nil {
		debug.LogError(err, "detecting monorepo")
	}

	return detectedTypes, monorepoInfo, nil
}

// displayDetectionResults displays project detection results
func (w *ConfigWizard) displayDetectionResults(detectedTypes []detector.ProjectType, monorepoInfo *detector.MonorepoInfo) {
	if len(detectedTypes) > 0 {
		fmt.Println("📦 Detected project types:")
		for _, dt := range detectedTypes {
			fmt.Printf("   • %s (confidence: %.0f%%)\n", dt.Name, dt.Confidence*100)
		}
		fmt.Println()
	}

	if monorepoInfo != nil && monorepoInfo.IsMonorepo {
		fmt.Printf("🏢 Monorepo detected: %s\n", monorepoInfo.Type)
		if len(monorepoInfo.Workspaces) > 0 {
			fmt.Println("   Workspaces found:")
			for _, ws := range monorepoInfo.Workspaces {
				fmt.Printf("   • %s\n", ws)
			}
		}
		fmt.Println()
	}
}

// createConfiguration creates configuration based on detected project types
func (w *ConfigWizard) createConfiguration(detectedTypes []detector.ProjectType) (*pkgconfig.Config, error) {
	if len(detectedTypes) == 0 {
		fmt.Println("📝 No project type detected. Let's create a custom configuration.")
		return w.createManualConfiguration()
	}

	useDefault := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Would you like to use the default configuration for %s?", detectedTypes[0].Name),
		Default: true,
	}
	if err := survey.AskOne(prompt, &useDefault); err != nil {
		return nil, err
	}

	if !useDefault {
		return w.createManualConfiguration()
	}

	cfg, err := w.createFromDefault(detectedTypes[0].Name)
	if err != nil {
		fmt.Printf("📝 No default for %s. Let's configure manually.\n", detectedTypes[0].Name)
		return w.createManualConfiguration()
	}
	cfg.ProjectType = strings.ToLower(detectedTypes[0].Name)

	customize := false
	customPrompt := &survey.Confirm{
		Message: "Would you like to customize the configuration?",
		Default: false,
	}
	if err := survey.AskOne(customPrompt, &customize); err != nil {
		return nil, err
	}

	if customize {
		return w.customizeConfiguration(cfg)
	}

	return cfg, nil
}

// handleMonorepoConfig handles monorepo configuration
func (w *ConfigWizard) handleMonorepoConfig(cfg *pkgconfig.Config, monorepoInfo *detector.MonorepoInfo) (*pkgconfig.Config, error) {
	if monorepoInfo == nil || !monorepoInfo.IsMonorepo || len(monorepoInfo.Workspaces) == 0 {
		return cfg, nil
	}

	configureMonorepo := false
	prompt := &survey.Confirm{
		Message: "Would you like to configure per-workspace overrides?",
		Default: true,
	}
	if err := survey.AskOne(prompt, &configureMonorepo); err != nil {
		return nil, err
	}

	if configureMonorepo {
		return w.configureMonorepoPaths(cfg, monorepoInfo)
	}

	return cfg, nil
}

// validateAndSave validates and saves configuration
func (w *ConfigWizard) validateAndSave(cfg *pkgconfig.Config, outputPath string) error {
	validator := intconfig.NewValidator()
	warnings, err := validator.ValidateWithWarnings(cfg)
	for _, warning := range warnings {
		fmt.Printf("⚠️  %s\n", warning)
	}
	if err != nil {
		fmt.Printf("\n⚠️  Configuration validation warning: %v\n", err)
		for _, suggestion := range validator.SuggestFixes(err) {
			fmt.Printf("   • %s\n", suggestion)
		}

		saveAnyway := false
		prompt := &survey.Confirm{
			Message: "Do you want to save anyway?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &saveAnyway); err != nil {
			return err
		}
		if !saveAnyway {
			return fmt.Errorf("configuration validation failed")
		}
	}

	data, err := pkgconfig.SaveConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// printSuccess prints success message
func (w *ConfigWizard) printSuccess(outputPath string) {
	fmt.Printf("\n✅ Configuration saved to: %s\n", outputPath)
	fmt.Println("\n🎉 Setup complete! Try it out:")
	fmt.Println("   • covergate baseline                      # measure current coverage")
	fmt.Println("   • covergate run --candidates tests.yaml   # validate proposed tests")
}

// configureProjectType prompts for and sets the project type
func (w *ConfigWizard) configureProjectType(cfg *pkgconfig.Config) error {
	projectType := ""
	prompt := &survey.Input{
		Message: "Project type (optional, e.g., nodejs, go, python):",
	}
	if err := survey.AskOne(prompt, &projectType); err != nil {
		return err
	}
	if projectType != "" {
		cfg.ProjectType = strings.ToLower(projectType)
	}
	return nil
}
