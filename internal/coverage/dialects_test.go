//go:build unit

package coverage

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeReport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

const coberturaFixture = `<coverage>
  <packages>
    <package>
      <classes>
        <class filename="app.py">
          <lines>
            <line number="1" hits="1"/>
            <line number="2" hits="0"/>
          </lines>
        </class>
        <class filename="app.py">
          <lines>
            <line number="3" hits="1"/>
            <line number="4" hits="0"/>
          </lines>
        </class>
      </classes>
    </package>
  </packages>
</coverage>`

func TestCoberturaParse(t *testing.T) {
	path := writeReport(t, "coverage.xml", coberturaFixture)

	report, err := coberturaDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fc, ok := report["app.py"]
	if !ok {
		t.Fatalf("report missing app.py, keys: %v", reportKeys(report))
	}
	if !reflect.DeepEqual(fc.Covered, []int{1, 3}) {
		t.Errorf("Covered = %v, want [1 3]", fc.Covered)
	}
	if !reflect.DeepEqual(fc.Missed, []int{2, 4}) {
		t.Errorf("Missed = %v, want [2 4]", fc.Missed)
	}
	if fc.Fraction != 0.5 {
		t.Errorf("Fraction = %v, want 0.5", fc.Fraction)
	}
}

func TestCoberturaParse_Malformed(t *testing.T) {
	path := writeReport(t, "coverage.xml", "<coverage><packages>")

	if _, err := (coberturaDialect{}).Parse(path); err == nil {
		t.Error("expected error for malformed XML")
	}
}

func TestLCOVParse(t *testing.T) {
	// Indented on purpose: lcov writers differ and the parser trims.
	lcov := `
	SF:other.py
	DA:1,1
	DA:2,0
	end_of_record
	SF:app.py
	DA:1,1
	DA:2,0
	DA:3,1
	end_of_record
	SF:another.py
	DA:1,1
	end_of_record
	`
	path := writeReport(t, "coverage.lcov", lcov)

	report, err := lcovDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(report) != 3 {
		t.Fatalf("report has %d files, want 3: %v", len(report), reportKeys(report))
	}

	app := report["app.py"]
	if !reflect.DeepEqual(app.Covered, []int{1, 3}) {
		t.Errorf("app.py Covered = %v, want [1 3]", app.Covered)
	}
	if !reflect.DeepEqual(app.Missed, []int{2}) {
		t.Errorf("app.py Missed = %v, want [2]", app.Missed)
	}
	if want := 2.0 / 3.0; app.Fraction != want {
		t.Errorf("app.py Fraction = %v, want %v", app.Fraction, want)
	}

	if another := report["another.py"]; another.Fraction != 1 {
		t.Errorf("another.py Fraction = %v, want 1", another.Fraction)
	}
}

func TestLCOVParse_Empty(t *testing.T) {
	path := writeReport(t, "coverage.lcov", "")

	report, err := lcovDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("empty tracefile produced %d entries", len(report))
	}
}

func TestLCOVParse_MissingReport(t *testing.T) {
	if _, err := (lcovDialect{}).Parse(filepath.Join(t.TempDir(), "absent.lcov")); err == nil {
		t.Error("expected error for missing report")
	}
}

const jacocoXMLFixture = `<report>
  <package name="path/to">
    <sourcefile name="MyClass.java">
      <line nr="35" mi="0" ci="9" mb="0" cb="0"/>
      <line nr="36" mi="0" ci="1" mb="0" cb="0"/>
      <line nr="37" mi="0" ci="3" mb="0" cb="0"/>
      <line nr="38" mi="0" ci="9" mb="0" cb="0"/>
      <line nr="39" mi="1" ci="0" mb="0" cb="0"/>
      <line nr="40" mi="5" ci="0" mb="0" cb="0"/>
      <line nr="41" mi="9" ci="0" mb="0" cb="0"/>
    </sourcefile>
  </package>
</report>`

func TestJaCoCoXMLParse(t *testing.T) {
	path := writeReport(t, "coverage.xml", jacocoXMLFixture)

	report, err := jacocoDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fc, ok := report["path/to/MyClass.java"]
	if !ok {
		t.Fatalf("report missing path/to/MyClass.java, keys: %v", reportKeys(report))
	}
	if !reflect.DeepEqual(fc.Covered, []int{35, 36, 37, 38}) {
		t.Errorf("Covered = %v, want [35 36 37 38]", fc.Covered)
	}
	if !reflect.DeepEqual(fc.Missed, []int{39, 40, 41}) {
		t.Errorf("Missed = %v, want [39 40 41]", fc.Missed)
	}
}

func TestJaCoCoParse_WrongExtension(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantMsg string
	}{
		{name: "html report", file: "coverage.html", wantMsg: "unsupported JaCoCo report format: html"},
		{name: "csv hint", file: "coverage.csv", wantMsg: KindJaCoCoCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeReport(t, tt.file, "ignored")
			_, err := jacocoDialect{}.Parse(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestJaCoCoCSVParse(t *testing.T) {
	csv := "GROUP,PACKAGE,CLASS,INSTRUCTION_MISSED,INSTRUCTION_COVERED,LINE_MISSED,LINE_COVERED\n" +
		"demo,com.example,MyClass,53,387,5,10\n" +
		"demo,com.example,Other,0,0,0,0\n"
	path := writeReport(t, "coverage.csv", csv)

	report, err := jacocoCSVDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fc, ok := report["com/example/MyClass"]
	if !ok {
		t.Fatalf("report missing com/example/MyClass, keys: %v", reportKeys(report))
	}
	if want := 10.0 / 15.0; fc.Fraction != want {
		t.Errorf("Fraction = %v, want %v", fc.Fraction, want)
	}
	if len(fc.Covered) != 0 || len(fc.Missed) != 0 {
		t.Errorf("CSV entries should carry no line sets, got %v / %v", fc.Covered, fc.Missed)
	}

	if other := report["com/example/Other"]; other.Fraction != 0 {
		t.Errorf("zero-line class Fraction = %v, want 0", other.Fraction)
	}
}

func TestJaCoCoCSVParse_MissingColumn(t *testing.T) {
	csv := "PACKAGE,CLASS,LINE_MISSED\ncom.example,MyClass,5\n"
	path := writeReport(t, "coverage.csv", csv)

	_, err := jacocoCSVDialect{}.Parse(path)
	if err == nil || !strings.Contains(err.Error(), "LINE_COVERED") {
		t.Errorf("error = %v, want missing column LINE_COVERED", err)
	}
}

func TestJaCoCoCSV_MatchReference(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "MyClass.java")
	content := "package com.example;\n\npublic class MyClass {\n}\n"
	if err := os.WriteFile(source, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	// The stem fallback would pick com/aaa/MyClass (lexicographically
	// first), so only the declared-package match yields 0.8.
	report := Report{
		"com/aaa/MyClass":     {Fraction: 0.1},
		"com/example/MyClass": {Fraction: 0.8},
	}

	fc, ok := jacocoCSVDialect{}.MatchReference(report, source)
	if !ok {
		t.Fatal("MatchReference found nothing")
	}
	if fc.Fraction != 0.8 {
		t.Errorf("matched Fraction = %v, want 0.8 (declared package must win)", fc.Fraction)
	}
}

func TestJaCoCoCSV_MatchReferenceUnreadableSource(t *testing.T) {
	report := Report{"com/example/MyClass": {Fraction: 0.8}}

	fc, ok := jacocoCSVDialect{}.MatchReference(report, "no/such/MyClass.java")
	if !ok {
		t.Fatal("MatchReference should fall back to stem matching")
	}
	if fc.Fraction != 0.8 {
		t.Errorf("matched Fraction = %v, want 0.8", fc.Fraction)
	}
}

const goCoverFixture = `mode: set
github.com/acme/pkg/calc.go:10.2,12.16 2 1
github.com/acme/pkg/calc.go:14.2,15.10 1 0
github.com/acme/pkg/other.go:5.1,5.20 1 3
`

func TestGoCoverParse(t *testing.T) {
	path := writeReport(t, "coverage.out", goCoverFixture)

	report, err := goCoverDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	calc, ok := report["github.com/acme/pkg/calc.go"]
	if !ok {
		t.Fatalf("report missing calc.go, keys: %v", reportKeys(report))
	}
	if !reflect.DeepEqual(calc.Covered, []int{10, 11, 12}) {
		t.Errorf("Covered = %v, want [10 11 12]", calc.Covered)
	}
	if !reflect.DeepEqual(calc.Missed, []int{14, 15}) {
		t.Errorf("Missed = %v, want [14 15]", calc.Missed)
	}
	if want := 3.0 / 5.0; calc.Fraction != want {
		t.Errorf("Fraction = %v, want %v", calc.Fraction, want)
	}
}

func TestGoCoverParse_MissingModeLine(t *testing.T) {
	path := writeReport(t, "coverage.out", "github.com/acme/pkg/calc.go:10.2,12.16 2 1\n")

	if _, err := (goCoverDialect{}).Parse(path); err == nil {
		t.Error("expected error for profile without mode line")
	}
}

const diffCoverFixture = `{
  "src_stats": {
    "path/to/app.py": {
      "covered_lines": [1, 3, 5],
      "violation_lines": [2, 4, 6],
      "percent_covered": 50.0
    }
  }
}`

func TestDiffCoverJSONParse(t *testing.T) {
	path := writeReport(t, "diff.json", diffCoverFixture)

	report, err := diffCoverJSONDialect{}.Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fc, ok := report["path/to/app.py"]
	if !ok {
		t.Fatalf("report missing path/to/app.py, keys: %v", reportKeys(report))
	}
	if !reflect.DeepEqual(fc.Covered, []int{1, 3, 5}) {
		t.Errorf("Covered = %v, want [1 3 5]", fc.Covered)
	}
	if !reflect.DeepEqual(fc.Missed, []int{2, 4, 6}) {
		t.Errorf("Missed = %v, want [2 4 6]", fc.Missed)
	}
	if fc.Fraction != 0.5 {
		t.Errorf("Fraction = %v, want 0.5", fc.Fraction)
	}
}

func reportKeys(r Report) []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	return keys
}
