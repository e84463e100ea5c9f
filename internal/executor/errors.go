// Package executor provides process execution for covergate validation runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Error types for command execution
var (
	// ErrCommandNotFound indicates the command was not found in PATH
	ErrCommandNotFound = errors.New("command not found")

	// ErrPermissionDenied indicates the command cannot be executed due to permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTimeout indicates the command timed out
	ErrTimeout = errors.New("command timed out")

	// ErrInvalidWorkingDirectory indicates the working directory is invalid
	ErrInvalidWorkingDirectory = errors.New("invalid working directory")
)

// ErrorType represents the type of execution error
type ErrorType int

const (
	// ErrorTypeUnknown indicates an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeCommandNotFound indicates the command was not found
	ErrorTypeCommandNotFound
	// ErrorTypePermissionDenied indicates permission was denied
	ErrorTypePermissionDenied
	// ErrorTypeTimeout indicates the command timed out
	ErrorTypeTimeout
	// ErrorTypeWorkingDirectory indicates working directory error
	ErrorTypeWorkingDirectory
	// ErrorTypeExecution indicates general execution error
	ErrorTypeExecution
)

// sentinelByType links each classified type to its exported sentinel so
// callers can use errors.Is instead of inspecting Type directly.
var sentinelByType = map[ErrorType]error{
	ErrorTypeCommandNotFound:  ErrCommandNotFound,
	ErrorTypePermissionDenied: ErrPermissionDenied,
	ErrorTypeTimeout:          ErrTimeout,
	ErrorTypeWorkingDirectory: ErrInvalidWorkingDirectory,
}

// ExecError represents a detailed execution error
type ExecError struct {
	Type    ErrorType
	Command string
	Args    []string
	Err     error
	Details string
}

// Error implements the error interface
func (e *ExecError) Error() string {
	cmd := e.Command
	if len(e.Args) > 0 {
		cmd = fmt.Sprintf("%s %s", e.Command, strings.Join(e.Args, " "))
	}

	switch e.Type {
	case ErrorTypeCommandNotFound:
		return fmt.Sprintf("command not found: %s", e.Command)
	case ErrorTypePermissionDenied:
		return fmt.Sprintf("permission denied: %s", cmd)
	case ErrorTypeTimeout:
		return fmt.Sprintf("command timed out: %s", cmd)
	case ErrorTypeWorkingDirectory:
		return fmt.Sprintf("working directory error: %s", e.Details)
	case ErrorTypeExecution:
		return fmt.Sprintf("execution error for %s: %v", cmd, e.Err)
	default:
		return fmt.Sprintf("unknown error for %s: %v", cmd, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *ExecError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ExecError) Is(target error) bool {
	sentinel, ok := sentinelByType[e.Type]
	return ok && sentinel == target
}

// IsStartFailure reports whether the error means the process never ran.
// The validation loop records these as infrastructure failures rather than
// test failures.
func IsStartFailure(err error) bool {
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		return false
	}
	switch execErr.Type {
	case ErrorTypeCommandNotFound, ErrorTypePermissionDenied, ErrorTypeWorkingDirectory:
		return true
	}
	return false
}

// ClassifyError analyzes an error and returns a typed ExecError
func ClassifyError(err error, command string, args []string) *ExecError {
	if err == nil {
		return nil
	}

	execErr := &ExecError{
		Type:    ErrorTypeUnknown,
		Command: command,
		Args:    args,
		Err:     err,
	}

	// Check for timeout
	if errors.Is(err, context.DeadlineExceeded) {
		execErr.Type = ErrorTypeTimeout
		return execErr
	}

	// Check for exec.Error which indicates command not found or permission issues
	if errType := classifyStartError(err); errType != ErrorTypeUnknown {
		execErr.Type = errType
		return execErr
	}

	// Check for exit error (command ran but returned non-zero)
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		// A plain non-zero exit, not an infrastructure failure
		execErr.Type = ErrorTypeExecution
		return execErr
	}

	// Fall back to message matching
	execErr.Type = classifyMessage(err.Error())
	if execErr.Type == ErrorTypeWorkingDirectory {
		execErr.Details = err.Error()
	}

	return execErr
}

// HandleTimeoutCleanup performs cleanup after a timeout occurs
func HandleTimeoutCleanup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	// Try to kill the process
	if err := cmd.Process.Kill(); err != nil {
		// Process might have already exited
		if !strings.Contains(err.Error(), "process already finished") {
			return fmt.Errorf("failed to kill timed out process: %w", err)
		}
	}

	// Wait for the process to actually exit so it does not linger as a zombie
	_, _ = cmd.Process.Wait() //nolint:errcheck // Best effort wait to prevent zombies

	return nil
}

// startFailureHints maps substrings of exec.Error messages to the type
// they indicate. Checked in order.
var startFailureHints = []struct {
	hint    string
	failure ErrorType
}{
	{"executable file not found", ErrorTypeCommandNotFound},
	{"command not found", ErrorTypeCommandNotFound},
	{"no such file or directory", ErrorTypeCommandNotFound},
	{"permission denied", ErrorTypePermissionDenied},
	{"operation not permitted", ErrorTypePermissionDenied},
}

// classifyStartError classifies exec.Error values raised before the process ran
func classifyStartError(err error) ErrorType {
	var execError *exec.Error
	if !errors.As(err, &execError) {
		return ErrorTypeUnknown
	}

	errStr := strings.ToLower(execError.Error())
	for _, h := range startFailureHints {
		if strings.Contains(errStr, h.hint) {
			return h.failure
		}
	}
	return ErrorTypeUnknown
}

// messageHints classify errors that carry no typed cause. Permission
// checks run first since those messages often also contain "not found".
var messageHints = []struct {
	hint    string
	failure ErrorType
}{
	{"permission denied", ErrorTypePermissionDenied},
	{"not found", ErrorTypeCommandNotFound},
	{"timeout", ErrorTypeTimeout},
	{"deadline exceeded", ErrorTypeTimeout},
	{"working directory", ErrorTypeWorkingDirectory},
	{"chdir", ErrorTypeWorkingDirectory},
}

// classifyMessage classifies errors by their message content
func classifyMessage(errorMessage string) ErrorType {
	errStr := strings.ToLower(errorMessage)
	for _, h := range messageHints {
		if strings.Contains(errStr, h.hint) {
			return h.failure
		}
	}
	return ErrorTypeExecution
}
