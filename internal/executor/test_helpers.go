//go:build unit

package executor

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
)

const (
	osWindows = "windows"

	echoCommand = "echo"
	cmdCommand  = "cmd"
	shCommand   = "sh"

	cmdArgC = "/C"
	shArgC  = "-c"
)

// platformCommand provides platform-specific command helpers in both argv
// and shell-script form
type platformCommand struct{}

var pc = platformCommand{}

func (platformCommand) echo(message string) (string, []string) {
	if runtime.GOOS == osWindows {
		return cmdCommand, []string{cmdArgC, echoCommand, message}
	}
	return echoCommand, []string{message}
}

func (platformCommand) exit(code int) (string, []string) {
	if runtime.GOOS == osWindows {
		return cmdCommand, []string{cmdArgC, "exit", fmt.Sprintf("%d", code)}
	}
	return shCommand, []string{shArgC, fmt.Sprintf("exit %d", code)}
}

func (platformCommand) sleep(seconds int) (string, []string) {
	if runtime.GOOS == osWindows {
		return cmdCommand, []string{cmdArgC, "timeout", "/t", fmt.Sprintf("%d", seconds), "/nobreak"}
	}
	return "sleep", []string{fmt.Sprintf("%d", seconds)}
}

func (platformCommand) echoScript(message string) string {
	return fmt.Sprintf("echo %s", message)
}

func (platformCommand) exitScript(code int) string {
	return fmt.Sprintf("exit %d", code)
}

func (platformCommand) sleepScript(seconds int) string {
	if runtime.GOOS == osWindows {
		return fmt.Sprintf("timeout /t %d /nobreak", seconds)
	}
	return fmt.Sprintf("sleep %d", seconds)
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == osWindows
}

// assertExecResult verifies common execution result properties
func assertExecResult(t *testing.T, result *ExecResult, expectedExitCode int, expectedStdout, expectedStderr string) {
	t.Helper()

	if result.ExitCode != expectedExitCode {
		t.Errorf("expected exit code %d, got %d", expectedExitCode, result.ExitCode)
	}

	if expectedStdout != "" && !strings.Contains(result.Stdout, expectedStdout) {
		t.Errorf("expected stdout to contain %q, got %q", expectedStdout, result.Stdout)
	}

	if expectedStderr != "" && !strings.Contains(result.Stderr, expectedStderr) {
		t.Errorf("expected stderr to contain %q, got %q", expectedStderr, result.Stderr)
	}
}
