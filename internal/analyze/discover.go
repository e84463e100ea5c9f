package analyze

import (
	"context"
	"errors"
	"fmt"

	"github.com/bebsworthy/covergate/internal/debug"
)

// discoveryAttempts is the per-field retry budget for layout analysis.
const discoveryAttempts = 2

// DiscoveryError reports a layout analysis that exhausted its attempt
// budget. It aborts session construction; candidates are never offered
// against a file whose layout is unknown.
type DiscoveryError struct {
	// Field names the layout field that could not be determined
	Field string

	// Attempts is how many analysis attempts were made
	Attempts int

	// Cause is the last analyzer error
	Cause error
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to determine %s after %d attempts: %v", e.Field, e.Attempts, e.Cause)
}

// Unwrap returns the underlying error
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// IsDiscoveryError reports whether err is a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var discoveryErr *DiscoveryError
	return errors.As(err, &discoveryErr)
}

// Discover runs the full layout analysis against a test file, retrying
// each field up to the attempt budget. Analyzer errors within the budget
// are logged and retried; exhausting the budget returns a DiscoveryError.
func Discover(ctx context.Context, analyzer Analyzer, target Target) (*TestLayout, error) {
	debug.LogSection("Layout Discovery")
	debug.Log("Analyzing test file: %s (language: %s)", target.Path, target.Language)

	var (
		indent int
		err    error
	)
	for attempt := 1; attempt <= discoveryAttempts; attempt++ {
		indent, err = analyzer.AnalyzeIndentation(ctx, target)
		if err == nil && indent < 0 {
			err = fmt.Errorf("analyzer returned negative indentation %d", indent)
		}
		if err == nil {
			break
		}
		debug.Log("Indentation analysis attempt %d/%d failed: %v", attempt, discoveryAttempts, err)
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, &DiscoveryError{Field: "test header indentation", Attempts: discoveryAttempts, Cause: err}
	}

	var points InsertionPoints
	for attempt := 1; attempt <= discoveryAttempts; attempt++ {
		points, err = analyzer.AnalyzeInsertionPoints(ctx, target)
		if err == nil && (points.TestInsertAfter < 0 || points.ImportInsertAfter < 0) {
			err = fmt.Errorf("analyzer returned negative insertion line (tests: %d, imports: %d)",
				points.TestInsertAfter, points.ImportInsertAfter)
		}
		if err == nil {
			break
		}
		debug.Log("Insertion point analysis attempt %d/%d failed: %v", attempt, discoveryAttempts, err)
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, &DiscoveryError{Field: "test insertion points", Attempts: discoveryAttempts, Cause: err}
	}

	layout := &TestLayout{
		HeaderIndent:      indent,
		TestInsertAfter:   points.TestInsertAfter,
		ImportInsertAfter: points.ImportInsertAfter,
		Framework:         points.Framework,
	}
	if layout.Framework == "" {
		layout.Framework = FrameworkUnknown
	}
	debug.Log("Layout: indent=%d, tests after line %d, imports after line %d, framework=%s",
		layout.HeaderIndent, layout.TestInsertAfter, layout.ImportInsertAfter, layout.Framework)
	return layout, nil
}
