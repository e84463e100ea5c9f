// Package executor provides process execution for covergate validation runs.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bebsworthy/covergate/internal/security"
)

// ExecOptions defines options for command execution
type ExecOptions struct {
	// Working directory for the command
	WorkingDir string
	// Environment variables (in KEY=VALUE format)
	Environment []string
	// Timeout for command execution
	Timeout time.Duration
	// Whether to inherit parent process environment
	InheritEnv bool
}

// ExecResult contains the result of command execution
type ExecResult struct {
	// Standard output from the command
	Stdout string
	// Standard error from the command
	Stderr string
	// Exit code of the command
	ExitCode int
	// Whether the command timed out
	TimedOut bool
	// Wall-clock instant just before the process started. Coverage report
	// freshness is judged against this value.
	StartedAt time.Time
	// Wall-clock time the command took
	Elapsed time.Duration
	// Error if command failed to start
	Error error
}

// CommandExecutor executes external commands safely
type CommandExecutor struct {
	// Default timeout for commands if not specified
	defaultTimeout time.Duration
}

// NewCommandExecutor creates a new command executor
func NewCommandExecutor(defaultTimeout time.Duration) *CommandExecutor {
	if defaultTimeout <= 0 {
		defaultTimeout = 2 * time.Minute
	}
	return &CommandExecutor{
		defaultTimeout: defaultTimeout,
	}
}

// RunScript runs an opaque shell command line through the system shell
// (sh -c, or cmd /C on Windows). Configured test commands keep their
// pipes, quoting and redirections intact.
func (e *CommandExecutor) RunScript(script string, options ExecOptions) (*ExecResult, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("script cannot be empty")
	}

	shell, flag := systemShell()
	return e.ExecuteWithStreaming(shell, []string{flag, script}, options, nil, nil)
}

// Execute runs a command with the given options
func (e *CommandExecutor) Execute(command string, args []string, options ExecOptions) (*ExecResult, error) {
	return e.ExecuteWithStreaming(command, args, options, nil, nil)
}

// ExecuteWithStreaming runs a command and streams output to the provided
// writers while still capturing it in the result. Nil writers disable
// streaming for that channel.
func (e *CommandExecutor) ExecuteWithStreaming(command string, args []string, options ExecOptions, stdoutWriter, stderrWriter io.Writer) (*ExecResult, error) {
	// Validate command
	if command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	// Set default timeout if not specified
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Create command
	cmd := exec.CommandContext(ctx, command, args...)

	// Set working directory
	if options.WorkingDir != "" {
		absPath, err := filepath.Abs(options.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("invalid working directory: %w", err)
		}
		// Check if directory exists
		if _, err := os.Stat(absPath); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("invalid working directory: %s does not exist", absPath)
			}
			return nil, fmt.Errorf("invalid working directory: %w", err)
		}
		cmd.Dir = absPath
	}

	// Set environment
	env := e.prepareEnvironment(options)
	if len(env) > 0 {
		cmd.Env = env
	}

	// Capture output, optionally streaming as well
	var stdoutBuf, stderrBuf bytes.Buffer
	if stdoutWriter != nil {
		cmd.Stdout = io.MultiWriter(stdoutWriter, &stdoutBuf)
	} else {
		cmd.Stdout = &stdoutBuf
	}
	if stderrWriter != nil {
		cmd.Stderr = io.MultiWriter(stderrWriter, &stderrBuf)
	} else {
		cmd.Stderr = &stderrBuf
	}

	// Start the command
	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		// Classify the error
		execErr := ClassifyError(err, command, args)
		return &ExecResult{
			ExitCode:  -1,
			StartedAt: startedAt,
			Error:     execErr,
		}, nil
	}

	// Wait for command to complete
	waitErr := cmd.Wait()
	elapsed := time.Since(startedAt)

	// Check if context was cancelled (timeout)
	timedOut := false
	if ctx.Err() == context.DeadlineExceeded {
		timedOut = true
		// Ensure process is cleaned up after timeout
		_ = HandleTimeoutCleanup(cmd)
	}

	// Get exit code
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			// Command failed to run properly
			return &ExecResult{
				Stdout:    stdoutBuf.String(),
				Stderr:    stderrBuf.String(),
				ExitCode:  -1,
				TimedOut:  timedOut,
				StartedAt: startedAt,
				Elapsed:   elapsed,
				Error:     waitErr,
			}, nil
		}
	}

	return &ExecResult{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		ExitCode:  exitCode,
		TimedOut:  timedOut,
		StartedAt: startedAt,
		Elapsed:   elapsed,
	}, nil
}

// prepareEnvironment builds the subprocess environment. Inherited variables
// are scrubbed of credentials and injection vectors before explicit
// overrides from configuration are applied on top.
func (e *CommandExecutor) prepareEnvironment(options ExecOptions) []string {
	var inherited []string
	if options.InheritEnv {
		inherited = security.SanitizeEnvironment(os.Environ(), true)
	}

	envMap := make(map[string]string, len(inherited)+len(options.Environment))
	for _, entry := range inherited {
		if key, value, ok := strings.Cut(entry, "="); ok {
			envMap[key] = value
		}
	}
	for _, entry := range options.Environment {
		if key, value, ok := strings.Cut(entry, "="); ok {
			envMap[key] = value
		}
	}

	env := make([]string, 0, len(envMap))
	for key, value := range envMap {
		env = append(env, key+"="+value)
	}
	return env
}

// systemShell returns the shell binary and its command flag for this platform
func systemShell() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}

// StreamingWriter is a thread-safe writer that can be used for streaming output
type StreamingWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewStreamingWriter creates a new streaming writer
func NewStreamingWriter(w io.Writer) *StreamingWriter {
	return &StreamingWriter{writer: w}
}

// Write implements io.Writer interface
func (sw *StreamingWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.writer.Write(p)
}
