// Package filter reduces test-run output to the lines that explain a failure.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/pkg/config"
)

// OutputFilter condenses command output according to configured rules
type OutputFilter struct {
	rules         *config.FilterConfig
	errorSet      *matcherSet
	includeSet    *matcherSet
	maxBufferSize int
}

// FilteredOutput represents the result of filtering command output
type FilteredOutput struct {
	Lines      []string
	HasErrors  bool
	Truncated  bool
	TotalLines int
}

// NewOutputFilter creates a new output filter with the given rules
func NewOutputFilter(rules *config.FilterConfig) (*OutputFilter, error) {
	if rules == nil {
		return nil, fmt.Errorf("filter rules cannot be nil")
	}

	cache, err := NewPatternCache()
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	errorSet, err := newMatcherSet(rules.ErrorPatterns, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to compile error patterns: %w", err)
	}

	includeSet, err := newMatcherSet(rules.IncludePatterns, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to compile include patterns: %w", err)
	}

	return &OutputFilter{
		rules:         rules,
		errorSet:      errorSet,
		includeSet:    includeSet,
		maxBufferSize: 10 * 1024 * 1024, // 10MB default
	}, nil
}

// Filter applies filtering rules to the given output
func (f *OutputFilter) Filter(output string) *FilteredOutput {
	reader := strings.NewReader(output)
	return f.FilterReader(reader)
}

// FilterReader applies filtering rules to output from a reader (supports streaming)
func (f *OutputFilter) FilterReader(reader io.Reader) *FilteredOutput {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, f.maxBufferSize), f.maxBufferSize)

	var (
		allLines     []string
		matchedLines []lineMatch
		totalLines   int
	)

	for scanner.Scan() {
		line := scanner.Text()
		allLines = append(allLines, line)
		totalLines++

		if pattern, ok := f.errorSet.match(line); ok {
			if debug.IsEnabled() {
				debug.LogPatternMatch(pattern, line, true)
			}
			matchedLines = append(matchedLines, lineMatch{
				lineNum: totalLines - 1, // 0-indexed
				line:    line,
				isError: true,
			})
		} else if pattern, ok := f.includeSet.match(line); ok {
			if debug.IsEnabled() {
				debug.LogPatternMatch(pattern, line, true)
			}
			matchedLines = append(matchedLines, lineMatch{
				lineNum: totalLines - 1,
				line:    line,
				isError: false,
			})
		}
	}

	// Extract matched lines with context
	extractedLines := f.extractLinesWithContext(allLines, matchedLines)

	// Apply truncation if needed
	truncated := false
	if f.rules.MaxOutput > 0 && len(extractedLines) > f.rules.MaxOutput {
		remappedMatches := f.remapMatches(allLines, extractedLines, matchedLines)
		extractedLines = f.truncatePreservingErrors(extractedLines, remappedMatches)
		truncated = true
	}

	return &FilteredOutput{
		Lines:      extractedLines,
		HasErrors:  hasErrors(matchedLines),
		Truncated:  truncated,
		TotalLines: totalLines,
	}
}

// FilterBoth filters both stdout and stderr, combining the results
func (f *OutputFilter) FilterBoth(stdout, stderr string) *FilteredOutput {
	stdoutResult := f.Filter(stdout)
	stderrResult := f.Filter(stderr)

	// Combine results, prioritizing stderr (typically contains errors)
	combined := &FilteredOutput{
		Lines:      make([]string, 0, len(stderrResult.Lines)+len(stdoutResult.Lines)),
		HasErrors:  stdoutResult.HasErrors || stderrResult.HasErrors,
		Truncated:  stdoutResult.Truncated || stderrResult.Truncated,
		TotalLines: stdoutResult.TotalLines + stderrResult.TotalLines,
	}

	if len(stderrResult.Lines) > 0 {
		combined.Lines = append(combined.Lines, "=== STDERR ===")
		combined.Lines = append(combined.Lines, stderrResult.Lines...)
	}

	if len(stdoutResult.Lines) > 0 {
		if len(stderrResult.Lines) > 0 {
			combined.Lines = append(combined.Lines, "")
			combined.Lines = append(combined.Lines, "=== STDOUT ===")
		}
		combined.Lines = append(combined.Lines, stdoutResult.Lines...)
	}

	// Re-apply truncation to the combined output
	if f.rules.MaxOutput > 0 && len(combined.Lines) > f.rules.MaxOutput {
		dropped := len(combined.Lines) - f.rules.MaxOutput
		combined.Lines = combined.Lines[:f.rules.MaxOutput]
		combined.Lines = append(combined.Lines, fmt.Sprintf("... truncated %d lines ...", dropped))
		combined.Truncated = true
	}

	return combined
}

// Excerpt returns the filtered view of a failed run's output as a single
// string, suitable for attempt records and failure summaries.
func (f *OutputFilter) Excerpt(stdout, stderr string) string {
	return strings.Join(f.FilterBoth(stdout, stderr).Lines, "\n")
}

// SetMaxBufferSize sets the maximum scanner buffer size for large outputs
func (f *OutputFilter) SetMaxBufferSize(size int) {
	f.maxBufferSize = size
}

type lineMatch struct {
	lineNum int
	line    string
	isError bool
}

func (f *OutputFilter) extractLinesWithContext(allLines []string, matches []lineMatch) []string {
	if len(matches) == 0 {
		// No matches, return all lines if MaxOutput not set or small enough
		if f.rules.MaxOutput <= 0 || len(allLines) <= f.rules.MaxOutput {
			return allLines
		}
		// Otherwise return a sample
		if len(allLines) <= 10 {
			return allLines
		}
		return allLines[:10]
	}

	includeSet := make(map[int]bool)

	for _, match := range matches {
		includeSet[match.lineNum] = true

		for i := 1; i <= f.rules.ContextLines && match.lineNum-i >= 0; i++ {
			includeSet[match.lineNum-i] = true
		}

		for i := 1; i <= f.rules.ContextLines && match.lineNum+i < len(allLines); i++ {
			includeSet[match.lineNum+i] = true
		}
	}

	// Extract lines in order, marking gaps
	var result []string
	lastIncluded := -1

	for i := 0; i < len(allLines); i++ {
		if includeSet[i] {
			if lastIncluded >= 0 && i-lastIncluded > 1 {
				result = append(result, "...")
			}
			result = append(result, allLines[i])
			lastIncluded = i
		}
	}

	return result
}

func (f *OutputFilter) remapMatches(allLines, extractedLines []string, originalMatches []lineMatch) []lineMatch {
	// Map line content to indices in extractedLines
	lineToIndex := make(map[string][]int)
	for i, line := range extractedLines {
		lineToIndex[line] = append(lineToIndex[line], i)
	}

	var remapped []lineMatch
	for _, match := range originalMatches {
		if match.lineNum >= len(allLines) {
			continue
		}
		line := allLines[match.lineNum]
		if indices, ok := lineToIndex[line]; ok && len(indices) > 0 {
			remapped = append(remapped, lineMatch{
				lineNum: indices[0],
				line:    line,
				isError: match.isError,
			})
			// Consume the index so duplicate lines map in order
			lineToIndex[line] = indices[1:]
		}
	}

	return remapped
}

// truncatePreservingErrors trims the output to MaxOutput lines, keeping
// error lines in preference to context when space runs out.
func (f *OutputFilter) truncatePreservingErrors(lines []string, matches []lineMatch) []string {
	if len(lines) <= f.rules.MaxOutput {
		return lines
	}

	errorIndices := make(map[int]bool)
	for _, match := range matches {
		if match.isError {
			errorIndices[match.lineNum] = true
		}
	}

	var result []string
	includedIndices := make(map[int]bool)
	errorCount := 0

	// First pass: include all error lines, reserving one slot for the
	// truncation marker
	for i, line := range lines {
		if errorIndices[i] && len(result) < f.rules.MaxOutput-1 {
			result = append(result, line)
			includedIndices[i] = true
			errorCount++
		}
	}

	// Second pass: fill remaining space with other lines
	remaining := f.rules.MaxOutput - len(result) - 1
	for i, line := range lines {
		if remaining <= 0 {
			break
		}
		if !includedIndices[i] {
			result = append(result, line)
			includedIndices[i] = true
			remaining--
		}
	}

	truncatedCount := len(lines) - len(result)
	if truncatedCount > 0 {
		result = append(result, fmt.Sprintf("... truncated %d lines (preserved %d error lines) ...", truncatedCount, errorCount))
	}

	return result
}

func hasErrors(matches []lineMatch) bool {
	for _, match := range matches {
		if match.isError {
			return true
		}
	}
	return false
}
