package coverage

import (
	"bufio"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// jacocoDialect parses JaCoCo XML reports. Keys join the package name
// (already slash-separated in JaCoCo) with the sourcefile name. A line
// counts as covered when it has no missed instructions.
type jacocoDialect struct{}

type jacocoXMLReport struct {
	XMLName  xml.Name           `xml:"report"`
	Packages []jacocoXMLPackage `xml:"package"`
}

type jacocoXMLPackage struct {
	Name        string                `xml:"name,attr"`
	SourceFiles []jacocoXMLSourceFile `xml:"sourcefile"`
}

type jacocoXMLSourceFile struct {
	Name  string          `xml:"name,attr"`
	Lines []jacocoXMLLine `xml:"line"`
}

type jacocoXMLLine struct {
	Nr int `xml:"nr,attr"`
	Mi int `xml:"mi,attr"`
	Ci int `xml:"ci,attr"`
}

func (jacocoDialect) Name() string { return KindJaCoCo }

func (jacocoDialect) Parse(path string) (Report, error) {
	switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext {
	case "xml":
	case "csv":
		return nil, fmt.Errorf("JaCoCo CSV reports use the %s kind", KindJaCoCoCSV)
	default:
		return nil, fmt.Errorf("unsupported JaCoCo report format: %s", ext)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read jacoco report: %w", err)
	}

	var parsed jacocoXMLReport
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse jacoco report: %w", err)
	}

	report := make(Report)
	for _, pkg := range parsed.Packages {
		for _, sf := range pkg.SourceFiles {
			var covered, missed []int
			for _, line := range sf.Lines {
				if line.Mi == 0 {
					covered = append(covered, line.Nr)
				} else {
					missed = append(missed, line.Nr)
				}
			}
			key := filepath.ToSlash(pkg.Name) + "/" + sf.Name
			report[key] = FileCoverage{
				Covered:  covered,
				Missed:   missed,
				Fraction: fraction(len(covered), len(missed)),
			}
		}
	}
	return report, nil
}

// jacocoCSVDialect parses JaCoCo CSV summaries. The CSV carries line
// counts per class rather than line numbers, so entries have only a
// fraction. Keys take the form com/example/MyClass.
type jacocoCSVDialect struct{}

func (jacocoCSVDialect) Name() string { return KindJaCoCoCSV }

func (jacocoCSVDialect) Parse(path string) (Report, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read jacoco csv report: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse jacoco csv report: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"PACKAGE", "CLASS", "LINE_MISSED", "LINE_COVERED"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("jacoco csv report missing column %s", required)
		}
	}

	type counts struct{ covered, missed int }
	totals := make(map[string]counts)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse jacoco csv report: %w", err)
		}
		missed, err := strconv.Atoi(strings.TrimSpace(row[columns["LINE_MISSED"]]))
		if err != nil {
			return nil, fmt.Errorf("invalid LINE_MISSED value %q: %w", row[columns["LINE_MISSED"]], err)
		}
		covered, err := strconv.Atoi(strings.TrimSpace(row[columns["LINE_COVERED"]]))
		if err != nil {
			return nil, fmt.Errorf("invalid LINE_COVERED value %q: %w", row[columns["LINE_COVERED"]], err)
		}
		key := strings.ReplaceAll(row[columns["PACKAGE"]], ".", "/") + "/" + row[columns["CLASS"]]
		total := totals[key]
		total.covered += covered
		total.missed += missed
		totals[key] = total
	}

	report := make(Report, len(totals))
	for key, total := range totals {
		report[key] = FileCoverage{Fraction: fraction(total.covered, total.missed)}
	}
	return report, nil
}

// MatchReference resolves a JVM source file against CSV keys by its
// declared package and class name, falling back to generic matching
// when the source cannot be read.
func (jacocoCSVDialect) MatchReference(r Report, reference string) (FileCoverage, bool) {
	if pkg := declaredPackage(reference); pkg != "" {
		key := strings.ReplaceAll(pkg, ".", "/") + "/" + fileStem(reference)
		if fc, ok := r[key]; ok {
			return fc, true
		}
	}
	return r.Lookup(reference)
}

var packageDeclPattern = regexp.MustCompile(`^\s*package\s+([A-Za-z_][\w.]*)\s*;?\s*$`)

// declaredPackage scans a Java or Kotlin source file for its package
// declaration. Returns "" when the file cannot be read or declares no
// package.
func declaredPackage(sourcePath string) string {
	file, err := os.Open(sourcePath) // #nosec G304 -- path comes from config
	if err != nil {
		return ""
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := packageDeclPattern.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1]
		}
	}
	return ""
}
