// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bebsworthy/covergate/internal/analyze"
	"github.com/bebsworthy/covergate/internal/debug"
)

// asker sends one prompt to an AI tool. *Client satisfies this; tests
// substitute scripted responses.
type asker interface {
	Ask(ctx context.Context, prompt string, options AIOptions) (string, error)
	Invalidate(prompt string)
}

// LayoutAnalyzer asks an AI tool for the layout of a test file. It
// implements analyze.Analyzer. The file is re-read on every call so
// retries see current content; a response that cannot be parsed
// invalidates the client's cache before the error is returned, so the
// caller's retry budget reaches the tool again instead of replaying
// the same bad answer.
type LayoutAnalyzer struct {
	client  asker
	options AIOptions
}

// NewLayoutAnalyzer creates an AI-backed layout analyzer.
func NewLayoutAnalyzer(client *Client, options AIOptions) *LayoutAnalyzer {
	return &LayoutAnalyzer{client: client, options: options}
}

// AnalyzeIndentation reports the indentation width of test headers.
func (a *LayoutAnalyzer) AnalyzeIndentation(ctx context.Context, target analyze.Target) (int, error) {
	content, err := os.ReadFile(target.Path)
	if err != nil {
		return 0, fmt.Errorf("reading test file: %w", err)
	}

	prompt := indentationPrompt(target.Language, promptFileName(target), string(content))
	response, err := a.client.Ask(ctx, prompt, a.options)
	if err != nil {
		return 0, err
	}

	var payload layoutIndentation
	if err := decodeYAMLResponse(response, &payload); err != nil {
		debug.Log("Indentation analysis response did not parse: %v", err)
		a.client.Invalidate(prompt)
		return 0, err
	}
	if payload.TestHeadersIndentation == nil {
		a.client.Invalidate(prompt)
		return 0, fmt.Errorf("response did not include test_headers_indentation")
	}

	debug.Log("AI indentation analysis: indent=%d, framework=%s, tests=%d",
		*payload.TestHeadersIndentation, payload.TestingFramework, payload.NumberOfTests)
	return *payload.TestHeadersIndentation, nil
}

// AnalyzeInsertionPoints reports the lines after which new tests and new
// imports are inserted. A missing import line falls back to the top of
// the file; the test line is required.
func (a *LayoutAnalyzer) AnalyzeInsertionPoints(ctx context.Context, target analyze.Target) (analyze.InsertionPoints, error) {
	content, err := os.ReadFile(target.Path)
	if err != nil {
		return analyze.InsertionPoints{}, fmt.Errorf("reading test file: %w", err)
	}

	prompt := insertionPrompt(target.Language, promptFileName(target), string(content))
	response, err := a.client.Ask(ctx, prompt, a.options)
	if err != nil {
		return analyze.InsertionPoints{}, err
	}

	var payload layoutInsertion
	if err := decodeYAMLResponse(response, &payload); err != nil {
		debug.Log("Insertion point analysis response did not parse: %v", err)
		a.client.Invalidate(prompt)
		return analyze.InsertionPoints{}, err
	}
	if payload.TestsInsertAfter == nil {
		a.client.Invalidate(prompt)
		return analyze.InsertionPoints{}, fmt.Errorf("response did not include relevant_line_number_to_insert_tests_after")
	}

	points := analyze.InsertionPoints{
		TestInsertAfter: *payload.TestsInsertAfter,
		Framework:       payload.TestingFramework,
	}
	if payload.ImportsInsertAfter != nil {
		points.ImportInsertAfter = *payload.ImportsInsertAfter
	}

	debug.Log("AI insertion analysis: tests after line %d, imports after line %d, framework=%s",
		points.TestInsertAfter, points.ImportInsertAfter, points.Framework)
	return points, nil
}

// promptFileName names the test file in prompts: the project-relative
// path when known, the base name otherwise.
func promptFileName(target analyze.Target) string {
	if target.RelPath != "" {
		return target.RelPath
	}
	return filepath.Base(target.Path)
}
