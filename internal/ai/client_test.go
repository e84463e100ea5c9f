//go:build unit

package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebsworthy/covergate/internal/executor"
)

type stubDetector struct {
	tools []Tool
	err   error
}

func (d *stubDetector) DetectTools() ([]Tool, error) {
	return d.tools, d.err
}

func (d *stubDetector) IsToolAvailable(name string) (bool, error) {
	for _, tool := range d.tools {
		if tool.Name == name && tool.Available {
			return true, nil
		}
	}
	return false, d.err
}

// promptExecutor answers every invocation with one scripted result.
type promptExecutor struct {
	mu     sync.Mutex
	result *executor.ExecResult
	err    error
	delay  time.Duration
	calls  [][]string
}

func (p *promptExecutor) Execute(command string, args []string, _ executor.ExecOptions) (*executor.ExecResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]string{command}, args...))
	p.mu.Unlock()
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.result, p.err
}

func (p *promptExecutor) RunScript(string, executor.ExecOptions) (*executor.ExecResult, error) {
	return nil, errors.New("unexpected RunScript")
}

func (p *promptExecutor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestClient(det ToolDetector, exec commandExecutor) *Client {
	return &Client{
		detector:      det,
		executor:      exec,
		progress:      NewProgressIndicator(),
		responseCache: make(map[string]*cachedResponse),
	}
}

func claudeOnly() *stubDetector {
	return &stubDetector{tools: []Tool{
		{Name: "claude", Command: "claude", Version: "1.2.3", Available: true},
		{Name: "gemini", Command: "gemini", Available: false},
	}}
}

func TestAskUsesOnlyAvailableTool(t *testing.T) {
	exec := &promptExecutor{result: &executor.ExecResult{ExitCode: 0, Stdout: "answer"}}
	client := newTestClient(claudeOnly(), exec)

	response, err := client.Ask(context.Background(), "what is the layout?", AIOptions{})
	require.NoError(t, err)
	assert.Equal(t, "answer", response)

	// Claude receives the prompt as a direct argument.
	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{"claude", "what is the layout?"}, exec.calls[0])
}

func TestAskGeminiUsesPromptFlag(t *testing.T) {
	det := &stubDetector{tools: []Tool{
		{Name: "gemini", Command: "gemini", Available: true},
	}}
	exec := &promptExecutor{result: &executor.ExecResult{ExitCode: 0, Stdout: "ok"}}
	client := newTestClient(det, exec)

	_, err := client.Ask(context.Background(), "hello", AIOptions{})
	require.NoError(t, err)

	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{"gemini", "--prompt", "hello"}, exec.calls[0])
}

func TestAskCachesIdenticalPrompts(t *testing.T) {
	exec := &promptExecutor{result: &executor.ExecResult{ExitCode: 0, Stdout: "cached answer"}}
	client := newTestClient(claudeOnly(), exec)

	first, err := client.Ask(context.Background(), "same prompt", AIOptions{})
	require.NoError(t, err)
	second, err := client.Ask(context.Background(), "same prompt", AIOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, exec.callCount(), "second ask should hit the cache")
}

func TestInvalidateForcesReexecution(t *testing.T) {
	exec := &promptExecutor{result: &executor.ExecResult{ExitCode: 0, Stdout: "v1"}}
	client := newTestClient(claudeOnly(), exec)

	_, err := client.Ask(context.Background(), "flaky prompt", AIOptions{})
	require.NoError(t, err)

	client.Invalidate("flaky prompt")

	exec.mu.Lock()
	exec.result = &executor.ExecResult{ExitCode: 0, Stdout: "v2"}
	exec.mu.Unlock()

	response, err := client.Ask(context.Background(), "flaky prompt", AIOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v2", response)
	assert.Equal(t, 2, exec.callCount())
}

func TestAskNoToolsAvailable(t *testing.T) {
	det := &stubDetector{tools: []Tool{
		{Name: "claude", Available: false},
		{Name: "gemini", Available: false},
	}}
	client := newTestClient(det, &promptExecutor{})

	_, err := client.Ask(context.Background(), "anything", AIOptions{})
	require.Error(t, err)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeNoTools, aiErr.Type)
}

func TestAskNamedToolNotFound(t *testing.T) {
	client := newTestClient(claudeOnly(), &promptExecutor{})

	_, err := client.Ask(context.Background(), "anything", AIOptions{Tool: "gemini"})
	require.Error(t, err)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeToolNotFound, aiErr.Type)
}

func TestAskNonZeroExit(t *testing.T) {
	exec := &promptExecutor{result: &executor.ExecResult{ExitCode: 2, Stderr: "rate limited"}}
	client := newTestClient(claudeOnly(), exec)

	_, err := client.Ask(context.Background(), "anything", AIOptions{})
	require.Error(t, err)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeExecutionFailed, aiErr.Type)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAskExecutorError(t *testing.T) {
	exec := &promptExecutor{err: errors.New("fork failed")}
	client := newTestClient(claudeOnly(), exec)

	_, err := client.Ask(context.Background(), "anything", AIOptions{})
	require.Error(t, err)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeExecutionFailed, aiErr.Type)
}

func TestAskTimeout(t *testing.T) {
	exec := &promptExecutor{
		result: &executor.ExecResult{ExitCode: 0, Stdout: "too late"},
		delay:  300 * time.Millisecond,
	}
	client := newTestClient(claudeOnly(), exec)

	_, err := client.Ask(context.Background(), "slow prompt", AIOptions{Timeout: 20 * time.Millisecond})
	require.Error(t, err)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeTimeout, aiErr.Type)
}

func TestAskCanceled(t *testing.T) {
	exec := &promptExecutor{
		result: &executor.ExecResult{ExitCode: 0, Stdout: "too late"},
		delay:  300 * time.Millisecond,
	}
	client := newTestClient(claudeOnly(), exec)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Ask(ctx, "slow prompt", AIOptions{})
	require.Error(t, err)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeUserCanceled, aiErr.Type)
}

func TestAskDetectionFailure(t *testing.T) {
	det := &stubDetector{err: errors.New("probe failed")}
	client := newTestClient(det, &promptExecutor{})

	_, err := client.Ask(context.Background(), "anything", AIOptions{})
	require.Error(t, err)

	var withRecovery *ErrorWithRecovery
	require.True(t, errors.As(err, &withRecovery))
	assert.Equal(t, ErrTypeExecutionFailed, withRecovery.Type)
	assert.NotEmpty(t, withRecovery.RecoverySuggestions)
}
