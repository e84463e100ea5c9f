// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/pkg/config"
)

// CommandTester validates a suggested test command by running it once with
// user approval. The configured command is an opaque shell line, so it runs
// through the system shell rather than argv splitting.
type CommandTester struct {
	executor commandExecutor
}

// NewCommandTester creates a new command tester
func NewCommandTester(exec commandExecutor) *CommandTester {
	return &CommandTester{
		executor: exec,
	}
}

// TestCommand runs the configured test command once, with user approval,
// and offers to modify it when it fails.
func (t *CommandTester) TestCommand(ctx context.Context, cmd *config.CommandConfig) (*TestResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fmt.Printf("\n🧪 Testing command: %s\n", cmd.Command)
	if cmd.Dir != "" {
		fmt.Printf("   (in %s)\n", cmd.Dir)
	}

	// Ask for user confirmation before running
	runCommand := false
	confirmPrompt := &survey.Confirm{
		Message: "Run this command?",
		Default: true,
	}
	if err := survey.AskOne(confirmPrompt, &runCommand); err != nil {
		return nil, fmt.Errorf("failed to get user confirmation: %w", err)
	}

	if !runCommand {
		// User chose to skip the test run
		return &TestResult{
			Success:      false,
			Output:       "Command skipped by user",
			Error:        nil,
			Modified:     false,
			FinalCommand: cmd,
		}, nil
	}

	result := t.executeCommand(cmd)
	t.showOutput(result)

	if result.Success {
		fmt.Printf("✅ Command executed successfully (exit code: 0)\n")
		return result, nil
	}

	// Command failed, show error
	fmt.Printf("❌ Command failed (exit code: %d)\n", result.ExitCode)
	if result.Error != nil {
		fmt.Printf("   Error: %v\n", result.Error)
	}

	// Ask if user wants to modify the command
	modifyCommand := false
	modifyPrompt := &survey.Confirm{
		Message: "Would you like to modify this command?",
		Default: true,
	}
	if err := survey.AskOne(modifyPrompt, &modifyCommand); err != nil {
		return result, nil
	}

	if !modifyCommand {
		return result, nil
	}

	modifiedResult, err := t.modifyAndRetest(cmd)
	if err != nil {
		return result, fmt.Errorf("failed to modify command: %w", err)
	}

	return modifiedResult, nil
}

// executeCommand runs the command line through the shell and captures the
// result. Kept separate from the interactive flow so it can be tested.
func (t *CommandTester) executeCommand(cmd *config.CommandConfig) *TestResult {
	timeout := 30 * time.Second
	if cmd.TimeoutSec > 0 {
		timeout = time.Duration(cmd.TimeoutSec) * time.Second
	}

	options := executor.ExecOptions{
		WorkingDir: cmd.Dir,
		Timeout:    timeout,
		InheritEnv: true,
	}

	execResult, err := t.executor.RunScript(cmd.Command, options)

	// Determine success based on exit code
	success := err == nil && execResult != nil && execResult.ExitCode == 0

	// Build output string
	var output strings.Builder
	exitCode := -1
	if execResult != nil {
		exitCode = execResult.ExitCode
		if execResult.Stdout != "" {
			output.WriteString(execResult.Stdout)
		}
		if execResult.Stderr != "" {
			if output.Len() > 0 {
				output.WriteString("\n")
			}
			output.WriteString(execResult.Stderr)
		}
	}

	return &TestResult{
		Success:      success,
		ExitCode:     exitCode,
		Output:       output.String(),
		Error:        err,
		Modified:     false,
		FinalCommand: cmd,
	}
}

// showOutput prints the captured output, truncated to keep the terminal usable
func (t *CommandTester) showOutput(result *TestResult) {
	if result.Output == "" {
		return
	}
	fmt.Println("\n📄 Command output:")
	lines := strings.Split(result.Output, "\n")
	maxLines := 20
	if len(lines) > maxLines {
		for i := 0; i < maxLines; i++ {
			fmt.Println(lines[i])
		}
		fmt.Printf("... (%d more lines)\n", len(lines)-maxLines)
	} else {
		fmt.Print(result.Output)
	}
}

// modifyAndRetest allows the user to edit the command line and working
// directory, then optionally run the result.
func (t *CommandTester) modifyAndRetest(originalCmd *config.CommandConfig) (*TestResult, error) {
	// Create a copy of the command to modify
	modifiedCmd := *originalCmd

	newCommand := modifiedCmd.Command
	commandPrompt := &survey.Input{
		Message: "Enter new command:",
		Default: newCommand,
	}
	if err := survey.AskOne(commandPrompt, &newCommand); err != nil {
		return nil, err
	}
	modifiedCmd.Command = newCommand

	newDir := modifiedCmd.Dir
	dirPrompt := &survey.Input{
		Message: "Working directory (empty for project root):",
		Default: newDir,
	}
	if err := survey.AskOne(dirPrompt, &newDir); err != nil {
		return nil, err
	}
	modifiedCmd.Dir = newDir

	// Ask if user wants to test the modified command
	testModified := false
	testPrompt := &survey.Confirm{
		Message: "Test the modified command?",
		Default: true,
	}
	if err := survey.AskOne(testPrompt, &testModified); err != nil {
		return nil, err
	}

	if !testModified {
		// Return the modified command without testing
		return &TestResult{
			Success:      false,
			Output:       "Modified command not tested",
			Error:        nil,
			Modified:     true,
			FinalCommand: &modifiedCmd,
		}, nil
	}

	fmt.Printf("\n🔄 Retesting with modified command...\n")
	result := t.executeCommand(&modifiedCmd)
	result.Modified = true

	if result.Success {
		fmt.Printf("✅ Modified command executed successfully!\n")
	} else {
		fmt.Printf("❌ Modified command still failed (exit code: %d)\n", result.ExitCode)

		// Ask if user wants to try again
		tryAgain := false
		tryAgainPrompt := &survey.Confirm{
			Message: "Would you like to modify again?",
			Default: false,
		}
		if err := survey.AskOne(tryAgainPrompt, &tryAgain); err == nil && tryAgain {
			return t.modifyAndRetest(&modifiedCmd)
		}
	}

	return result, nil
}
