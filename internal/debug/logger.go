// Package debug provides debug logging functionality for covergate.
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger accumulates debug output for one process run.
type Logger struct {
	enabled bool
	writer  io.Writer
	start   time.Time
}

var globalLogger = &Logger{writer: os.Stderr}

// Enable turns on debug logging and anchors the elapsed-time prefix.
func Enable() {
	globalLogger.enabled = true
	globalLogger.start = time.Now()
}

// IsEnabled reports whether debug logging is on.
func IsEnabled() bool {
	return globalLogger.enabled
}

// SetWriter redirects debug output, mainly for tests.
func SetWriter(w io.Writer) {
	globalLogger.writer = w
}

// Log writes one formatted debug line with an elapsed-time prefix.
func Log(format string, args ...interface{}) {
	globalLogger.logf(format, args...)
}

func (l *Logger) logf(format string, args ...interface{}) {
	if !l.enabled {
		return
	}

	message := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	_, _ = fmt.Fprintf(l.writer, "[DEBUG %s] %s", formatDuration(time.Since(l.start)), message)
}

// LogSection writes a section header for better organization
func LogSection(title string) {
	Log("=== %s ===", title)
}

// LogCommand logs command execution details
func LogCommand(command string, args []string, workingDir string) {
	LogSection("Command Execution")
	Log("Command: %s", command)
	if len(args) > 0 {
		Log("Arguments: %v", args)
	}
	if workingDir != "" {
		Log("Working Directory: %s", workingDir)
	}
}

// LogTiming logs timing information
func LogTiming(operation string, duration time.Duration) {
	Log("Timing: %s took %s", operation, formatDuration(duration))
}

// LogTransition logs a validation session state change
func LogTransition(session, from, to string) {
	Log("Session %s: %s -> %s", session, from, to)
}

// LogCoverage logs a coverage comparison against the session baseline
func LogCoverage(baseline, measured float64, outcome string) {
	Log("Coverage: baseline %.4f, measured %.4f - %s", baseline, measured, outcome)
}

// LogPatternMatch logs pattern matching details
func LogPatternMatch(pattern, input string, matched bool) {
	status := "no match"
	if matched {
		status = "matched"
	}
	Log("Pattern: %q against %q - %s", pattern, truncate(input, 80), status)
}

// LogFilterProcess logs the filtering process
func LogFilterProcess(totalLines, matchedLines, outputLines int) {
	Log("Filter: %d total lines -> %d matched -> %d output", totalLines, matchedLines, outputLines)
}

// LogError logs error details
func LogError(err error, context string) {
	Log("Error in %s: %v", context, err)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
