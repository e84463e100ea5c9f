// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Common error messages with helpful next steps
const (
	msgNoToolsAvailable = `No AI tools detected. To use AI assistance, please install one of the following:

Claude CLI:
  • macOS/Linux: brew install claude
  • Visit: https://claude.ai/cli for other platforms

Gemini CLI:
  • All platforms: npm install -g @google/generative-ai-cli
  • Visit: https://ai.google.dev/gemini-api/docs/cli

After installation, run the command again.`

	msgResponseInvalid = `The AI tool returned an invalid or unparseable response.

This can happen when:
• The AI service is overloaded
• The project structure is too complex
• Network issues corrupted the response

Next steps:
1. Try running the command again
2. Use a different AI tool with --ai-tool
3. Use 'covergate config' for guided manual configuration
4. Check the debug log for more details: covergate --debug config --ai`
)

// ErrorWithRecovery provides detailed error information with recovery suggestions
type ErrorWithRecovery struct {
	*AIError
	RecoverySuggestions []string
}

// NewErrorWithRecovery creates an error with recovery suggestions
func NewErrorWithRecovery(errType AIErrorType, message string, cause error, suggestions []string) *ErrorWithRecovery {
	return &ErrorWithRecovery{
		AIError:             NewAIError(errType, message, cause),
		RecoverySuggestions: suggestions,
	}
}

// GetRecoverySuggestions returns recovery suggestions for an error type
func GetRecoverySuggestions(errType AIErrorType) []string {
	switch errType {
	case ErrTypeNoTools:
		return []string{
			"Install Claude CLI: brew install claude (macOS)",
			"Install Gemini CLI: npm install -g @google/generative-ai-cli",
			"Use 'covergate config' for manual configuration",
		}
	case ErrTypeToolNotFound:
		return []string{
			"Check available tools with 'covergate config --ai' without --ai-tool",
			"Install the missing tool",
			"Use a different AI tool",
		}
	case ErrTypeExecutionFailed:
		return []string{
			"Check your internet connection",
			"Verify AI tool credentials",
			"Try a different AI tool",
			"Use manual configuration as fallback",
		}
	case ErrTypeResponseInvalid:
		return []string{
			"Retry the command",
			"Try a different AI tool",
			"Use manual configuration",
			"Enable debug mode for more details",
		}
	case ErrTypeTimeout:
		return []string{
			"Retry with a longer timeout",
			"Create a basic config manually",
		}
	case ErrTypeValidationFailed:
		return []string{
			"Modify the command during review",
			"Check if required tools are installed",
			"Configure the command manually",
		}
	default:
		return []string{
			"Try the operation again",
			"Use 'covergate config' for manual configuration",
			"Check the documentation for more help",
		}
	}
}

// FormatErrorWithSuggestions formats an error with recovery suggestions
func FormatErrorWithSuggestions(err error) string {
	var builder strings.Builder

	builder.WriteString("Error: ")
	builder.WriteString(err.Error())
	builder.WriteString("\n")

	var errWithRecovery *ErrorWithRecovery
	var aiErr *AIError
	switch {
	case errors.As(err, &errWithRecovery):
		writeSuggestions(&builder, errWithRecovery.RecoverySuggestions)
	case errors.As(err, &aiErr):
		writeSuggestions(&builder, GetRecoverySuggestions(aiErr.Type))
	}

	return builder.String()
}

func writeSuggestions(builder *strings.Builder, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	builder.WriteString("\nSuggested actions:\n")
	for i, suggestion := range suggestions {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion))
	}
}

// IsRetryableError determines if an error is worth retrying
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var aiErr *AIError
	if errors.As(err, &aiErr) {
		switch aiErr.Type {
		case ErrTypeExecutionFailed, ErrTypeTimeout, ErrTypeResponseInvalid:
			return true
		case ErrTypeUserCanceled, ErrTypeNoTools, ErrTypeToolNotFound:
			return false
		case ErrTypeValidationFailed:
			// The model may produce a valid config on a second pass
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"network",
		"connection",
		"temporary",
		"unavailable",
		"rate limit",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
