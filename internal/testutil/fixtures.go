package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CoberturaReport returns a minimal cobertura XML report covering one file.
// Line numbers in covered get one hit, line numbers in missed get none.
func CoberturaReport(filename string, covered, missed []int) string {
	var lines strings.Builder
	for _, n := range covered {
		fmt.Fprintf(&lines, `        <line number="%d" hits="1"/>`+"\n", n)
	}
	for _, n := range missed {
		fmt.Fprintf(&lines, `        <line number="%d" hits="0"/>`+"\n", n)
	}

	return fmt.Sprintf(`<?xml version="1.0"?>
<coverage>
  <packages>
    <package name="fixture">
      <classes>
        <class name="fixture" filename="%s">
          <lines>
%s          </lines>
        </class>
      </classes>
    </package>
  </packages>
</coverage>
`, filename, lines.String())
}

// WriteCoberturaReport writes a cobertura report to path and returns path.
func WriteCoberturaReport(t testing.TB, path, filename string, covered, missed []int) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("Failed to create report directory: %v", err)
	}
	report := CoberturaReport(filename, covered, missed)
	if err := os.WriteFile(path, []byte(report), 0600); err != nil {
		t.Fatalf("Failed to write report %s: %v", path, err)
	}
	return path
}

// WriteSourcePair writes a small python source file and a matching test file
// into dir and returns both paths. The test file ends with a trailing newline
// so candidate insertion appends cleanly.
func WriteSourcePair(t testing.TB, dir string) (sourceFile, testFile string) {
	t.Helper()

	sourceFile = filepath.Join(dir, "calc.py")
	source := "def add(a, b):\n    return a + b\n\n\ndef sub(a, b):\n    return a - b\n"
	if err := os.WriteFile(sourceFile, []byte(source), 0600); err != nil {
		t.Fatalf("Failed to write source fixture: %v", err)
	}

	testFile = filepath.Join(dir, "test_calc.py")
	test := "from calc import add\n\n\ndef test_add():\n    assert add(1, 2) == 3\n"
	if err := os.WriteFile(testFile, []byte(test), 0600); err != nil {
		t.Fatalf("Failed to write test fixture: %v", err)
	}

	return sourceFile, testFile
}
