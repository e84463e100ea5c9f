// Package candidate supplies proposed tests to a validation session.
// Candidates arrive in the generator wire shape: a test body, optional
// import lines, and descriptive metadata.
package candidate

import (
	"context"
	"io"
	"strings"
)

// Candidate is one proposed test.
type Candidate struct {
	// TestCode is the test body to insert into the test file
	TestCode string `json:"test_code" yaml:"test_code"`

	// NewImportsCode holds any import lines the test needs, one per line
	NewImportsCode string `json:"new_imports_code,omitempty" yaml:"new_imports_code,omitempty"`

	// TestName names the test in reports and history
	TestName string `json:"test_name,omitempty" yaml:"test_name,omitempty"`

	// TestBehavior describes the behavior the test exercises
	TestBehavior string `json:"test_behavior,omitempty" yaml:"test_behavior,omitempty"`

	// TestTags categorizes the test ("happy path", "edge case", ...)
	TestTags string `json:"test_tags,omitempty" yaml:"test_tags,omitempty"`
}

// BodyLines returns the test body split into lines.
func (c *Candidate) BodyLines() []string {
	return splitLines(c.TestCode)
}

// ImportLines returns the import statements as individual lines. Blank
// lines are dropped, and a quote-wrapped block is unwrapped first; some
// generators emit the whole import section as one quoted string.
func (c *Candidate) ImportLines() []string {
	imports := strings.TrimSpace(c.NewImportsCode)
	if len(imports) > 0 && imports[0] == '"' && imports[len(imports)-1] == '"' {
		imports = strings.Trim(imports, `"`)
	}
	if imports == "" {
		return nil
	}
	var lines []string
	for _, line := range splitLines(imports) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// Source yields candidates until exhausted. Next returns io.EOF once no
// further candidate will arrive; any other error is a source failure.
type Source interface {
	// Next returns the next candidate
	Next(ctx context.Context) (*Candidate, error)

	// Close releases the source
	Close() error
}

// SliceSource serves a fixed set of candidates in order.
type SliceSource struct {
	candidates []Candidate
	next       int
}

// FromSlice creates a source over an in-memory candidate list.
func FromSlice(candidates []Candidate) *SliceSource {
	return &SliceSource{candidates: candidates}
}

// Next returns the next candidate from the slice
func (s *SliceSource) Next(ctx context.Context) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.candidates) {
		return nil, io.EOF
	}
	c := s.candidates[s.next]
	s.next++
	return &c, nil
}

// Close implements Source
func (s *SliceSource) Close() error {
	return nil
}
