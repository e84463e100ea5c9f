// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bebsworthy/covergate/internal/session"
)

// Summarizer asks an AI tool to explain a failed test run. It implements
// session.FailureSummarizer. The session treats summarizer errors as a
// missing summary, so nothing here can fail an attempt.
type Summarizer struct {
	client  asker
	options AIOptions
}

// NewSummarizer creates an AI-backed failure summarizer.
func NewSummarizer(client *Client, options AIOptions) *Summarizer {
	return &Summarizer{client: client, options: options}
}

// SummarizeFailure returns a short explanation of why the run failed.
func (s *Summarizer) SummarizeFailure(ctx context.Context, failure session.FailureContext) (string, error) {
	sourceContent := readFileBestEffort(failure.SourceFile)
	testContent := failure.MergedFile
	if testContent == "" {
		testContent = readFileBestEffort(failure.TestFile)
	}

	prompt := failurePrompt(
		filepath.Base(failure.SourceFile), sourceContent,
		filepath.Base(failure.TestFile), testContent,
		failure.Command, failure.ExitCode,
		failure.Stdout, failure.Stderr,
	)

	response, err := s.client.Ask(ctx, prompt, s.options)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// readFileBestEffort returns the file content, or an empty string when
// it cannot be read; the prompt degrades to output-only analysis.
func readFileBestEffort(path string) string {
	if path == "" {
		return ""
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(content)
}
