// Package patch provides the pure text-splice engine that inserts
// candidate test code and import lines into an existing test file.
package patch

import (
	"errors"
	"strings"
)

// ErrEmptyBody is returned when Merge is given a body with no
// non-blank lines. Callers treat this as a candidate error rather
// than attempting a no-op write.
var ErrEmptyBody = errors.New("candidate body is empty")

// Merge splices import lines and a test body into original and returns
// the merged lines plus the number of import lines actually inserted.
//
// Offsets are line counts: an offset of N inserts after the first N
// lines. importOffset < 0 means no import insertion point is known and
// imports are skipped entirely. testOffset < 0 is clamped to 0. The
// body insertion point shifts forward by the inserted import count so
// the body lands where the caller aimed it in the original text.
//
// The body is normalized before insertion: its own indent width is
// measured on the first non-blank line, and when requiredIndent exceeds
// it every body line gains the difference in spaces. Existing indent is
// never removed. The normalized body is wrapped in exactly one leading
// and one trailing blank line.
//
// Import lines already present in original (compared after trimming
// whitespace) are dropped, as are blank import lines. Inputs are not
// modified.
func Merge(original, imports, body []string, importOffset, testOffset, requiredIndent int) ([]string, int, error) {
	normalized := normalizeBody(body, requiredIndent)
	if normalized == nil {
		return nil, 0, ErrEmptyBody
	}

	inserted := 0
	merged := original
	if importOffset >= 0 {
		if newImports := dedupeImports(original, imports); len(newImports) > 0 {
			merged = splice(original, newImports, clampOffset(importOffset, len(original)))
			inserted = len(newImports)
		}
	}

	if testOffset < 0 {
		testOffset = 0
	}
	merged = splice(merged, normalized, clampOffset(testOffset+inserted, len(merged)))

	return merged, inserted, nil
}

// normalizeBody trims leading and trailing blank lines, applies the
// indent delta, and wraps the result in single blank lines. Returns
// nil when no non-blank line remains.
func normalizeBody(body []string, requiredIndent int) []string {
	start, end := 0, len(body)
	for start < end && strings.TrimSpace(body[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(body[end-1]) == "" {
		end--
	}
	if start == end {
		return nil
	}
	trimmed := body[start:end]

	delta := requiredIndent - indentWidth(trimmed[0])
	normalized := make([]string, 0, len(trimmed)+2)
	normalized = append(normalized, "")
	if delta > 0 {
		prefix := strings.Repeat(" ", delta)
		for _, line := range trimmed {
			normalized = append(normalized, prefix+line)
		}
	} else {
		normalized = append(normalized, trimmed...)
	}
	normalized = append(normalized, "")
	return normalized
}

// dedupeImports returns the import lines not already present in
// original, comparing by trimmed equality and skipping blanks.
func dedupeImports(original, imports []string) []string {
	if len(imports) == 0 {
		return nil
	}
	existing := make(map[string]struct{}, len(original))
	for _, line := range original {
		existing[strings.TrimSpace(line)] = struct{}{}
	}
	var kept []string
	for _, line := range imports {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, ok := existing[trimmed]; ok {
			continue
		}
		existing[trimmed] = struct{}{}
		kept = append(kept, line)
	}
	return kept
}

// splice returns a new slice with insert placed at index at.
func splice(lines, insert []string, at int) []string {
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)
	return out
}

// indentWidth counts leading spaces and tabs, tabs counting as one.
func indentWidth(line string) int {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return i
		}
	}
	return len(line)
}

func clampOffset(offset, max int) int {
	if offset > max {
		return max
	}
	if offset < 0 {
		return 0
	}
	return offset
}
