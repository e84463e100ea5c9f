// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators: test-file layout analysis, failure summarization, and
// configuration suggestion.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bebsworthy/covergate/pkg/config"
)

// AIOptions contains options for AI tool invocation
type AIOptions struct {
	// Tool specifies which AI tool to use ("claude" or "gemini")
	// Empty string prompts user selection
	Tool string

	// WorkingDir is the directory the tool is invoked in
	WorkingDir string

	// Interactive indicates whether to show progress and allow cancellation
	Interactive bool

	// Timeout is the maximum time for AI execution (0 = no limit)
	Timeout time.Duration
}

// Tool represents an available AI CLI tool
type Tool struct {
	// Name of the tool ("claude" or "gemini")
	Name string

	// Command is the actual command to execute
	Command string

	// Version is the tool version if available
	Version string

	// Available indicates whether tool is installed and accessible
	Available bool
}

// ConfigSuggestion is a project configuration proposed by an AI tool:
// the command that runs the test suite and where its coverage report lands.
type ConfigSuggestion struct {
	// ProjectType is the detected project type (nodejs, go, python, ...)
	ProjectType string

	// Command is the shell command that runs the suite with coverage
	Command string

	// Dir is the directory the command runs in, relative to the project root
	Dir string

	// TimeoutSec bounds one suite run
	TimeoutSec int

	// ReportPath is where the coverage report is written
	ReportPath string

	// Kind is the coverage report dialect (cobertura, lcov, ...)
	Kind string

	// Explanation describes why this configuration was suggested
	Explanation string
}

// Assistant generates covergate configuration using AI tools
type Assistant interface {
	// GenerateConfig analyzes the project and returns a complete
	// validated configuration
	GenerateConfig(ctx context.Context, options AIOptions) (*config.Config, error)

	// SuggestConfig returns the raw suggestion, for callers that review
	// before converting
	SuggestConfig(ctx context.Context, options AIOptions) (*ConfigSuggestion, error)
}

// ToolDetector detects available AI CLI tools
type ToolDetector interface {
	// DetectTools returns all available AI tools
	DetectTools() ([]Tool, error)

	// IsToolAvailable checks if a specific tool is available
	IsToolAvailable(toolName string) (bool, error)
}

// ProgressIndicator shows progress during long operations
type ProgressIndicator interface {
	// Start begins showing progress with a message
	Start(message string)

	// Update updates the progress message
	Update(message string)

	// Stop stops showing progress
	Stop()

	// WaitForCancellation returns a channel that signals user cancellation
	WaitForCancellation(ctx context.Context) <-chan bool
}

// TestResult contains the outcome of trying a suggested test command
type TestResult struct {
	// Success indicates the command ran with exit code 0
	Success bool

	// ExitCode is the command's exit code (-1 if it never ran)
	ExitCode int

	// Output captured from the command (stdout + stderr)
	Output string

	// Error if the command failed to start
	Error error

	// Modified indicates the user changed the command during testing
	Modified bool

	// FinalCommand is the command configuration after any modifications
	FinalCommand *config.CommandConfig
}

// AIError represents an error from AI operations
type AIError struct {
	// Type of error for programmatic handling
	Type AIErrorType

	// Message for the user
	Message string

	// Underlying error if any
	Cause error
}

// AIErrorType categorizes AI errors
type AIErrorType string

const (
	// ErrTypeNoTools indicates no AI tools are available
	ErrTypeNoTools AIErrorType = "no_tools"

	// ErrTypeToolNotFound indicates the specified tool was not found
	ErrTypeToolNotFound AIErrorType = "tool_not_found"

	// ErrTypeExecutionFailed indicates the AI tool failed to execute
	ErrTypeExecutionFailed AIErrorType = "execution_failed"

	// ErrTypeResponseInvalid indicates the AI response was invalid
	ErrTypeResponseInvalid AIErrorType = "response_invalid"

	// ErrTypeUserCanceled indicates the user canceled the operation
	ErrTypeUserCanceled AIErrorType = "user_canceled"

	// ErrTypeTimeout indicates the operation timed out
	ErrTypeTimeout AIErrorType = "timeout"

	// ErrTypeValidationFailed indicates the generated config failed validation
	ErrTypeValidationFailed AIErrorType = "validation_failed"
)

// Error implements the error interface
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AIError) Unwrap() error {
	return e.Cause
}

// NewAIError creates a new AI error
func NewAIError(errType AIErrorType, message string, cause error) *AIError {
	return &AIError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}
