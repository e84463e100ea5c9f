package coverage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// lcovDialect parses lcov tracefiles: SF: opens a source file record,
// DA:<line>,<hits> marks line execution, end_of_record closes it.
// Lines are trimmed first so indented tracefiles still parse.
type lcovDialect struct{}

func (lcovDialect) Name() string { return KindLCOV }

func (lcovDialect) Parse(path string) (Report, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read lcov report: %w", err)
	}
	defer func() { _ = file.Close() }()

	report := make(Report)
	var current string
	lines := make(map[int]bool)

	flush := func() {
		if current == "" {
			return
		}
		covered := sortedLines(lines, true)
		missed := sortedLines(lines, false)
		report[current] = FileCoverage{
			Covered:  covered,
			Missed:   missed,
			Fraction: fraction(len(covered), len(missed)),
		}
		current = ""
		lines = make(map[int]bool)
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "SF:"):
			flush()
			current = filepath.ToSlash(strings.TrimSpace(strings.TrimPrefix(line, "SF:")))
		case strings.HasPrefix(line, "DA:"):
			if current == "" {
				continue
			}
			parts := strings.SplitN(strings.TrimPrefix(line, "DA:"), ",", 3)
			if len(parts) < 2 {
				continue
			}
			num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				continue
			}
			hits, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				continue
			}
			if hits > 0 {
				lines[num] = true
			} else if _, seen := lines[num]; !seen {
				lines[num] = false
			}
		case line == "end_of_record":
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse lcov report: %w", err)
	}
	flush()

	return report, nil
}
