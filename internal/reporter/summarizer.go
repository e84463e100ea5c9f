package reporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/bebsworthy/covergate/internal/filter"
	"github.com/bebsworthy/covergate/internal/session"
)

// summaryMaxLines caps the excerpt appended below the classification line.
const summaryMaxLines = 12

// TemplateSummarizer is the fallback session.FailureSummarizer used when
// no AI tool is configured. It classifies the exit code and appends an
// excerpt of the test output, preferring the filter's error-relevant
// lines when a filter is available. It never returns an error.
type TemplateSummarizer struct {
	filter *filter.OutputFilter
}

// NewTemplateSummarizer creates a template summarizer. The filter may be
// nil, in which case the raw output tail is used for the excerpt.
func NewTemplateSummarizer(f *filter.OutputFilter) *TemplateSummarizer {
	return &TemplateSummarizer{filter: f}
}

// SummarizeFailure implements session.FailureSummarizer.
func (t *TemplateSummarizer) SummarizeFailure(_ context.Context, failure session.FailureContext) (string, error) {
	lines := []string{classifyExit(failure)}

	excerpt := t.excerpt(failure.Stdout, failure.Stderr)
	if excerpt != "" {
		lines = append(lines, strings.Split(excerpt, "\n")...)
	}
	if len(lines) > summaryMaxLines {
		lines = lines[:summaryMaxLines]
	}

	return strings.Join(lines, "\n"), nil
}

// classifyExit turns the exit code into a one-line explanation. The
// shell convention codes 126 and 127 get named because they point at
// environment problems rather than the candidate test.
func classifyExit(failure session.FailureContext) string {
	switch failure.ExitCode {
	case -1:
		return fmt.Sprintf("The test command %q never started.", failure.Command)
	case 126:
		return fmt.Sprintf("The test command %q is not executable.", failure.Command)
	case 127:
		return fmt.Sprintf("The test runner for %q is missing from PATH.", failure.Command)
	default:
		return fmt.Sprintf("The test command %q exited with code %d.", failure.Command, failure.ExitCode)
	}
}

// excerpt picks the most useful slice of output to show under the
// classification line.
func (t *TemplateSummarizer) excerpt(stdout, stderr string) string {
	if t.filter != nil {
		if out := strings.TrimSpace(t.filter.Excerpt(stdout, stderr)); out != "" {
			return out
		}
	}
	// Without filter rules, the tail of stderr usually carries the
	// assertion or traceback; fall back to stdout for runners that
	// report failures there.
	if tail := tailLines(stderr, 5); tail != "" {
		return tail
	}
	return tailLines(stdout, 5)
}

// tailLines returns the last n non-empty lines of s.
func tailLines(s string, n int) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimRight(line, "\r"))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
