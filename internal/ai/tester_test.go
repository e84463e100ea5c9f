//go:build unit

package ai

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebsworthy/covergate/internal/executor"
	"github.com/bebsworthy/covergate/pkg/config"
)

// scriptExecutor records RunScript invocations.
type scriptExecutor struct {
	result  *executor.ExecResult
	err     error
	scripts []string
	options []executor.ExecOptions
}

func (s *scriptExecutor) Execute(string, []string, executor.ExecOptions) (*executor.ExecResult, error) {
	return nil, errors.New("unexpected Execute")
}

func (s *scriptExecutor) RunScript(script string, options executor.ExecOptions) (*executor.ExecResult, error) {
	s.scripts = append(s.scripts, script)
	s.options = append(s.options, options)
	return s.result, s.err
}

func TestExecuteCommandSuccess(t *testing.T) {
	exec := &scriptExecutor{result: &executor.ExecResult{ExitCode: 0, Stdout: "4 passed"}}
	tester := NewCommandTester(exec)

	cmd := &config.CommandConfig{Command: "pytest --cov=. | tee run.log"}
	result := tester.executeCommand(cmd)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "4 passed", result.Output)
	assert.Same(t, cmd, result.FinalCommand)

	// The command line reaches the shell intact, pipes included.
	require.Len(t, exec.scripts, 1)
	assert.Equal(t, "pytest --cov=. | tee run.log", exec.scripts[0])
}

func TestExecuteCommandFailure(t *testing.T) {
	exec := &scriptExecutor{result: &executor.ExecResult{
		ExitCode: 1,
		Stdout:   "1 failed",
		Stderr:   "AssertionError",
	}}
	tester := NewCommandTester(exec)

	result := tester.executeCommand(&config.CommandConfig{Command: "pytest"})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, "1 failed\nAssertionError", result.Output)
	assert.NoError(t, result.Error)
}

func TestExecuteCommandStartFailure(t *testing.T) {
	exec := &scriptExecutor{err: errors.New("no such shell")}
	tester := NewCommandTester(exec)

	result := tester.executeCommand(&config.CommandConfig{Command: "pytest"})

	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.Error(t, result.Error)
}

func TestExecuteCommandOptions(t *testing.T) {
	exec := &scriptExecutor{result: &executor.ExecResult{ExitCode: 0}}
	tester := NewCommandTester(exec)

	tester.executeCommand(&config.CommandConfig{
		Command:    "mvn test",
		Dir:        "services/api",
		TimeoutSec: 300,
	})

	require.Len(t, exec.options, 1)
	assert.Equal(t, "services/api", exec.options[0].WorkingDir)
	assert.Equal(t, 300*time.Second, exec.options[0].Timeout)
	assert.True(t, exec.options[0].InheritEnv)
}

func TestExecuteCommandDefaultTimeout(t *testing.T) {
	exec := &scriptExecutor{result: &executor.ExecResult{ExitCode: 0}}
	tester := NewCommandTester(exec)

	tester.executeCommand(&config.CommandConfig{Command: "npm test"})

	require.Len(t, exec.options, 1)
	assert.Equal(t, 30*time.Second, exec.options[0].Timeout)
}
