// Package coverage parses test coverage reports across the dialects
// the engine supports and reduces them to covered/missed line sets and
// a coverage fraction.
package coverage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for report processing. ErrUnsupportedReportKind is
// the only one callers treat as permanent; missing and stale reports
// are re-checked on the next attempt.
var (
	ErrUnsupportedReportKind = errors.New("unsupported coverage report kind")
	ErrReportMissing         = errors.New("coverage report was not generated")
	ErrReportStale           = errors.New("coverage report was not updated after the test command")
)

// Supported report kinds.
const (
	KindCobertura     = "cobertura"
	KindLCOV          = "lcov"
	KindJaCoCo        = "jacoco"
	KindJaCoCoCSV     = "jacoco-csv"
	KindGoCover       = "gocover"
	KindDiffCoverJSON = "diff-cover-json"
)

// FileCoverage holds the per-file line sets and coverage fraction.
// Count-based dialects (jacoco-csv) leave the line sets empty and
// carry only the fraction.
type FileCoverage struct {
	Covered  []int
	Missed   []int
	Fraction float64
}

// Report maps file identifiers, as named by the report, to their
// coverage. Keys use forward slashes regardless of platform.
type Report map[string]FileCoverage

// Dialect parses one coverage report format into a Report.
type Dialect interface {
	// Name returns the kind string the dialect registered under.
	Name() string
	// Parse reads the report at path. An unreadable or malformed
	// report is an error; an empty report is not.
	Parse(path string) (Report, error)
}

// ForKind returns the dialect registered for kind, or
// ErrUnsupportedReportKind.
func ForKind(kind string) (Dialect, error) {
	switch kind {
	case KindCobertura:
		return coberturaDialect{}, nil
	case KindLCOV:
		return lcovDialect{}, nil
	case KindJaCoCo:
		return jacocoDialect{}, nil
	case KindJaCoCoCSV:
		return jacocoCSVDialect{}, nil
	case KindGoCover:
		return goCoverDialect{}, nil
	case KindDiffCoverJSON:
		return diffCoverJSONDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedReportKind, kind)
	}
}

// Kinds lists the supported report kinds in stable order.
func Kinds() []string {
	return []string{
		KindCobertura,
		KindLCOV,
		KindJaCoCo,
		KindJaCoCoCSV,
		KindGoCover,
		KindDiffCoverJSON,
	}
}

// Lookup finds the report entry for a reference source file. Matching
// is tried in order: exact path, path suffix in either direction, then
// file stem (report keys like com/example/MyClass carry no extension).
// Ties resolve to the lexicographically smallest key.
func (r Report) Lookup(reference string) (FileCoverage, bool) {
	reference = filepath.ToSlash(reference)
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == reference {
			return r[key], true
		}
	}
	for _, key := range keys {
		if suffixMatch(key, reference) {
			return r[key], true
		}
	}
	stem := fileStem(reference)
	for _, key := range keys {
		if fileStem(key) == stem {
			return r[key], true
		}
	}
	return FileCoverage{}, false
}

// Aggregate sums covered and missed lines across every file in the
// report. The second return value maps each file to its own fraction.
// A report with no line data aggregates to zero.
func (r Report) Aggregate() (float64, map[string]float64) {
	perFile := make(map[string]float64, len(r))
	totalCovered, totalMissed := 0, 0
	for key, fc := range r {
		perFile[key] = fc.Fraction
		totalCovered += len(fc.Covered)
		totalMissed += len(fc.Missed)
	}
	return fraction(totalCovered, totalMissed), perFile
}

// fraction computes covered/(covered+missed), returning 0 for an
// empty denominator rather than dividing by zero.
func fraction(covered, missed int) float64 {
	total := covered + missed
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total)
}

func suffixMatch(key, reference string) bool {
	if strings.HasSuffix(key, "/"+reference) {
		return true
	}
	return strings.HasSuffix(reference, "/"+key)
}

func fileStem(path string) string {
	base := path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// sortedLines returns the keys of set in ascending order.
func sortedLines(set map[int]bool, covered bool) []int {
	var lines []int
	for line, isCovered := range set {
		if isCovered == covered {
			lines = append(lines, line)
		}
	}
	sort.Ints(lines)
	return lines
}
