package coverage

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// goCoverDialect parses Go cover profiles as written by
// go test -coverprofile. Block format:
// name.go:startLine.startCol,endLine.endCol numStmt count
type goCoverDialect struct{}

var goCoverBlockPattern = regexp.MustCompile(`^(.+):(\d+)\.(\d+),(\d+)\.(\d+)\s+(\d+)\s+(\d+)$`)

func (goCoverDialect) Name() string { return KindGoCover }

func (goCoverDialect) Parse(path string) (Report, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read cover profile: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	if scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), "mode:") {
			return nil, fmt.Errorf("invalid cover profile: missing mode line")
		}
	}

	// Overlapping blocks are common; a line executed in any block
	// counts as covered.
	lineData := make(map[string]map[int]bool)
	for scanner.Scan() {
		matches := goCoverBlockPattern.FindStringSubmatch(scanner.Text())
		if matches == nil {
			continue
		}
		name := matches[1]
		startLine, err := strconv.Atoi(matches[2])
		if err != nil {
			continue
		}
		endLine, err := strconv.Atoi(matches[4])
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(matches[7])
		if err != nil {
			continue
		}

		if _, ok := lineData[name]; !ok {
			lineData[name] = make(map[int]bool)
		}
		for line := startLine; line <= endLine; line++ {
			if count > 0 {
				lineData[name][line] = true
			} else if _, seen := lineData[name][line]; !seen {
				lineData[name][line] = false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse cover profile: %w", err)
	}

	report := make(Report, len(lineData))
	for name, lines := range lineData {
		covered := sortedLines(lines, true)
		missed := sortedLines(lines, false)
		report[name] = FileCoverage{
			Covered:  covered,
			Missed:   missed,
			Fraction: fraction(len(covered), len(missed)),
		}
	}
	return report, nil
}
