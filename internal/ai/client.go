// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/executor"
)

// Client runs prompts through a detected AI CLI tool. It caches tool
// selection for the session and recent responses by prompt hash, so the
// layout analyzer's retry budget does not hammer the same tool with the
// same question.
type Client struct {
	detector          ToolDetector
	executor          commandExecutor
	progress          ProgressIndicator
	selectedTool      string
	toolSelectionTime time.Time
	responseCache     map[string]*cachedResponse
	cacheMutex        sync.RWMutex
}

// cachedResponse holds a cached AI response
type cachedResponse struct {
	response  string
	timestamp time.Time
	ttl       time.Duration
}

// responseCacheTTL bounds how long an identical prompt reuses its answer.
const responseCacheTTL = 10 * time.Minute

// NewClient creates a client backed by the given command executor.
func NewClient(exec commandExecutor) *Client {
	return &Client{
		detector:      NewToolDetector(exec),
		executor:      exec,
		progress:      NewProgressIndicator(),
		responseCache: make(map[string]*cachedResponse),
	}
}

// Ask sends a prompt to the selected AI tool and returns its raw output.
func (c *Client) Ask(ctx context.Context, prompt string, options AIOptions) (string, error) {
	tool, err := c.selectTool(options)
	if err != nil {
		return "", err
	}
	return c.executeTool(ctx, tool, prompt, options)
}

// selectTool selects an AI tool based on options and availability
func (c *Client) selectTool(options AIOptions) (Tool, error) {
	// Reuse a recent selection
	if c.selectedTool != "" && time.Since(c.toolSelectionTime) < 5*time.Minute {
		if options.Tool == "" || options.Tool == c.selectedTool {
			if tool, ok := c.findAvailable(c.selectedTool); ok {
				return tool, nil
			}
		}
	}

	tools, err := c.detector.DetectTools()
	if err != nil {
		return Tool{}, NewErrorWithRecovery(
			ErrTypeExecutionFailed,
			"Failed to detect AI tools",
			err,
			[]string{
				"Check if AI CLI tools are in your PATH",
				"Try running 'claude --version' or 'gemini --version' manually",
				"Use 'covergate config' for manual configuration",
			},
		)
	}

	availableTools := GetAvailableTools(tools)
	if len(availableTools) == 0 {
		return Tool{}, NewAIError(ErrTypeNoTools, msgNoToolsAvailable, nil)
	}

	// If a tool is specified, find it
	if options.Tool != "" {
		for _, tool := range availableTools {
			if tool.Name == options.Tool {
				debug.Log("Using specified AI tool: %s", tool.Name)
				c.cacheToolSelection(tool.Name)
				return tool, nil
			}
		}
		return Tool{}, NewAIError(ErrTypeToolNotFound, fmt.Sprintf("Specified tool %q not found", options.Tool), nil)
	}

	// If only one tool is available, use it
	if len(availableTools) == 1 {
		tool := availableTools[0]
		debug.Log("Using only available AI tool: %s", tool.Name)
		c.cacheToolSelection(tool.Name)
		return tool, nil
	}

	// Interactive tool selection
	if options.Interactive {
		selectedToolName, err := NewInteractiveUI().SelectTool(availableTools)
		if err != nil {
			return Tool{}, NewAIError(ErrTypeUserCanceled, "Tool selection canceled", err)
		}
		c.cacheToolSelection(selectedToolName)
		for _, tool := range availableTools {
			if tool.Name == selectedToolName {
				return tool, nil
			}
		}
		return Tool{}, NewAIError(ErrTypeToolNotFound, "Selected tool not found", nil)
	}

	// Non-interactive: use first available tool
	tool := availableTools[0]
	debug.Log("Using first available AI tool (non-interactive): %s", tool.Name)
	c.cacheToolSelection(tool.Name)
	return tool, nil
}

// findAvailable re-checks that a previously selected tool is still usable.
func (c *Client) findAvailable(name string) (Tool, bool) {
	tools, err := c.detector.DetectTools()
	if err != nil {
		return Tool{}, false
	}
	for _, tool := range tools {
		if tool.Name == name && tool.Available {
			return tool, true
		}
	}
	return Tool{}, false
}

// executeTool runs the AI tool with proper progress and cancellation handling
func (c *Client) executeTool(ctx context.Context, tool Tool, prompt string, options AIOptions) (string, error) {
	debug.Log("Executing AI tool %s in directory: %s", tool.Name, options.WorkingDir)

	cacheKey := c.cacheKey(tool.Name, prompt)
	if cached := c.getCachedResponse(cacheKey); cached != nil {
		debug.Log("Using cached AI response for key: %s", cacheKey[:8])
		return cached.response, nil
	}

	if options.Interactive {
		c.progress.Start(fmt.Sprintf("Consulting %s...", tool.Name))
		defer c.progress.Stop()
	}

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if options.Timeout > 0 {
		timeoutCtx, timeoutCancel := context.WithTimeout(execCtx, options.Timeout)
		defer timeoutCancel()
		execCtx = timeoutCtx
	}

	// ESC cancels when interactive
	if options.Interactive {
		go func() {
			select {
			case <-c.progress.WaitForCancellation(ctx):
				debug.Log("User requested cancellation")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	execOptions := executor.ExecOptions{
		WorkingDir: options.WorkingDir,
		InheritEnv: true,
		Timeout:    0, // timeout handled via context
	}

	args := buildToolArgs(tool.Name, prompt)

	resultChan := make(chan *executor.ExecResult, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := c.executor.Execute(tool.Command, args, execOptions)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- result
	}()

	select {
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.Canceled) {
			return "", NewAIError(ErrTypeUserCanceled, "AI analysis canceled by user", execCtx.Err())
		}
		return "", NewAIError(ErrTypeTimeout, "AI analysis timed out", execCtx.Err())

	case err := <-errChan:
		return "", NewAIError(ErrTypeExecutionFailed, fmt.Sprintf("Failed to execute %s", tool.Name), err)

	case result := <-resultChan:
		if result.Error != nil {
			return "", NewAIError(ErrTypeExecutionFailed, fmt.Sprintf("%s execution failed", tool.Name), result.Error)
		}
		if result.ExitCode != 0 {
			debug.Log("AI tool returned non-zero exit code %d: %s", result.ExitCode, result.Stderr)
			return "", NewAIError(ErrTypeExecutionFailed, fmt.Sprintf("%s failed with exit code %d: %s", tool.Name, result.ExitCode, result.Stderr), nil)
		}

		c.cacheResponse(cacheKey, result.Stdout, responseCacheTTL)
		return result.Stdout, nil
	}
}

// Invalidate drops the cached response for a prompt so the next Ask
// reaches the tool again. Callers that fail to parse a response use this
// before retrying; without it a retry would replay the same bad answer.
func (c *Client) Invalidate(prompt string) {
	if c.selectedTool == "" {
		return
	}
	key := c.cacheKey(c.selectedTool, prompt)
	c.cacheMutex.Lock()
	delete(c.responseCache, key)
	c.cacheMutex.Unlock()
}

// cacheToolSelection caches the selected tool for the session
func (c *Client) cacheToolSelection(toolName string) {
	c.selectedTool = toolName
	c.toolSelectionTime = time.Now()
}

// buildToolArgs builds command arguments for the AI tool
func buildToolArgs(toolName string, prompt string) []string {
	switch toolName {
	case "claude":
		// Claude CLI expects the prompt as a direct argument
		return []string{prompt}
	case "gemini":
		return []string{"--prompt", prompt}
	default:
		// Default to Claude-style
		return []string{prompt}
	}
}

// cacheKey creates a cache key from tool name and prompt
func (c *Client) cacheKey(toolName, prompt string) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// getCachedResponse retrieves a cached response if it's still valid
func (c *Client) getCachedResponse(key string) *cachedResponse {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()

	if cached, exists := c.responseCache[key]; exists {
		if time.Since(cached.timestamp) < cached.ttl {
			return cached
		}
	}
	return nil
}

// cacheResponse stores a response in the cache
func (c *Client) cacheResponse(key, response string, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.responseCache[key] = &cachedResponse{
		response:  response,
		timestamp: time.Now(),
		ttl:       ttl,
	}

	// Clean up old entries
	now := time.Now()
	for k, cached := range c.responseCache {
		if now.Sub(cached.timestamp) > cached.ttl {
			delete(c.responseCache, k)
		}
	}
}
