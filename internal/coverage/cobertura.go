package coverage

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// coberturaDialect parses Cobertura XML reports. Coverage for a file
// split across several class elements is merged, with a line counting
// as covered if any occurrence has hits.
type coberturaDialect struct{}

type coberturaReport struct {
	XMLName xml.Name         `xml:"coverage"`
	Classes []coberturaClass `xml:"packages>package>classes>class"`
}

type coberturaClass struct {
	Filename string          `xml:"filename,attr"`
	Lines    []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number int `xml:"number,attr"`
	Hits   int `xml:"hits,attr"`
}

func (coberturaDialect) Name() string { return KindCobertura }

func (coberturaDialect) Parse(path string) (Report, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read cobertura report: %w", err)
	}

	var parsed coberturaReport
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse cobertura report: %w", err)
	}

	lineData := make(map[string]map[int]bool)
	for _, cls := range parsed.Classes {
		if cls.Filename == "" {
			continue
		}
		key := filepath.ToSlash(cls.Filename)
		if _, ok := lineData[key]; !ok {
			lineData[key] = make(map[int]bool)
		}
		for _, line := range cls.Lines {
			if line.Hits > 0 {
				lineData[key][line.Number] = true
			} else if _, seen := lineData[key][line.Number]; !seen {
				lineData[key][line.Number] = false
			}
		}
	}

	report := make(Report, len(lineData))
	for key, lines := range lineData {
		covered := sortedLines(lines, true)
		missed := sortedLines(lines, false)
		report[key] = FileCoverage{
			Covered:  covered,
			Missed:   missed,
			Fraction: fraction(len(covered), len(missed)),
		}
	}
	return report, nil
}
