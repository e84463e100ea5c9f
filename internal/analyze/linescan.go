package analyze

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// LineScanner is the built-in layout analyzer. It works on raw lines
// only, matching per-language patterns for test headers and import
// statements, and never calls out of process.
type LineScanner struct{}

// NewLineScanner creates the built-in line-oriented analyzer.
func NewLineScanner() *LineScanner {
	return &LineScanner{}
}

// headerPattern matches a line that opens a single test case and names
// the framework such a line implies.
type headerPattern struct {
	re        *regexp.Regexp
	framework string
}

// headerPatterns maps a language to its test header patterns.
var headerPatterns = map[string][]headerPattern{
	"python": {
		{regexp.MustCompile(`^\s*(async\s+)?def\s+test\w`), "pytest"},
	},
	"go": {
		{regexp.MustCompile(`^func\s+Test\w`), "testing"},
	},
	"javascript": {
		{regexp.MustCompile(`^\s*(it|test|describe)\s*\(`), "jest"},
	},
	"typescript": {
		{regexp.MustCompile(`^\s*(it|test|describe)\s*\(`), "jest"},
	},
	"java": {
		{regexp.MustCompile(`^\s*@(Test|ParameterizedTest)\b`), "junit"},
	},
	"kotlin": {
		{regexp.MustCompile(`^\s*@(Test|ParameterizedTest)\b`), "junit"},
	},
	"ruby": {
		{regexp.MustCompile(`^\s*def\s+test_\w`), "minitest"},
		{regexp.MustCompile(`^\s*(it|describe|context)\s+['"]`), "rspec"},
	},
	"rust": {
		{regexp.MustCompile(`^\s*#\[(tokio::)?test\]`), "cargo"},
	},
	"c": {
		{regexp.MustCompile(`^\s*TEST(_F|_P)?\s*\(`), "gtest"},
	},
	"cpp": {
		{regexp.MustCompile(`^\s*TEST(_F|_P)?\s*\(`), "gtest"},
		{regexp.MustCompile(`^\s*TEST_CASE\s*\(`), "catch2"},
	},
	"csharp": {
		{regexp.MustCompile(`^\s*\[(Test|TestMethod)\b`), "nunit"},
		{regexp.MustCompile(`^\s*\[(Fact|Theory)\b`), "xunit"},
	},
	"php": {
		{regexp.MustCompile(`^\s*(public\s+)?function\s+test\w`), "phpunit"},
	},
	"swift": {
		{regexp.MustCompile(`^\s*func\s+test\w`), "xctest"},
	},
	"scala": {
		{regexp.MustCompile(`^\s*(it|test)\s*\(`), "scalatest"},
	},
}

// frameworkPatterns refine the framework beyond what a header implies,
// e.g. a TestCase subclass marks unittest even though its methods look
// like pytest headers. Checked in table order before header patterns.
var frameworkPatterns = map[string][]headerPattern{
	"python": {
		{regexp.MustCompile(`class\s+\w+\(.*TestCase\)`), "unittest"},
		{regexp.MustCompile(`^(import\s+pytest|from\s+pytest)`), "pytest"},
	},
	"javascript": {
		{regexp.MustCompile(`require\(['"]mocha['"]\)|from\s+['"]mocha['"]`), "mocha"},
	},
	"typescript": {
		{regexp.MustCompile(`from\s+['"]mocha['"]`), "mocha"},
	},
	"ruby": {
		{regexp.MustCompile(`require\s+['"]rspec`), "rspec"},
		{regexp.MustCompile(`require\s+['"]minitest`), "minitest"},
	},
}

// importPatterns match column-zero import statements per language. The
// package clause counts for languages whose imports follow it, so a file
// with no imports still yields a legal insertion line.
var importPatterns = map[string][]*regexp.Regexp{
	"python":     {regexp.MustCompile(`^(import|from)\s+\w`)},
	"go":         {regexp.MustCompile(`^(import|package)\s`)},
	"javascript": {regexp.MustCompile(`^(import\s|const\s+\w.*=\s*require\()`)},
	"typescript": {regexp.MustCompile(`^(import\s|const\s+\w.*=\s*require\()`)},
	"java":       {regexp.MustCompile(`^(import|package)\s`)},
	"kotlin":     {regexp.MustCompile(`^(import|package)\s`)},
	"scala":      {regexp.MustCompile(`^(import|package)\s`)},
	"ruby":       {regexp.MustCompile(`^require`)},
	"rust":       {regexp.MustCompile(`^(use\s|extern\s+crate\s)`)},
	"c":          {regexp.MustCompile(`^#include`)},
	"cpp":        {regexp.MustCompile(`^#include`)},
	"csharp":     {regexp.MustCompile(`^(using|namespace)\s`)},
	"php":        {regexp.MustCompile(`^(use|require|namespace)\s`)},
	"swift":      {regexp.MustCompile(`^(import|@testable\s+import)\s`)},
}

// pythonTestClassPattern marks a class-based suite whose test methods sit
// one level inside the class body.
var pythonTestClassPattern = regexp.MustCompile(`^\s*class\s+\w+\(.*TestCase\)`)

// pythonMainGuardPattern marks the __main__ guard; code declared below it
// is not defined when the guard runs, so new tests go above it.
var pythonMainGuardPattern = regexp.MustCompile(`^if\s+__name__\s*==`)

// AnalyzeIndentation reports the indentation width of the first test
// header in the file. A class-based Python suite with no methods yet
// reports one standard level inside the class. A file with no headers
// reports zero.
func (s *LineScanner) AnalyzeIndentation(_ context.Context, target Target) (int, error) {
	lines, err := readFileLines(target.Path)
	if err != nil {
		return 0, err
	}

	patterns := headerPatternsFor(target.Language)
	for _, line := range lines {
		for _, p := range patterns {
			if p.re.MatchString(line) {
				return leadingWidth(line), nil
			}
		}
	}

	if target.Language == "python" {
		for _, line := range lines {
			if pythonTestClassPattern.MatchString(line) {
				return leadingWidth(line) + 4, nil
			}
		}
	}

	return 0, nil
}

// AnalyzeInsertionPoints reports the lines after which new tests and new
// imports are inserted, plus the framework the file appears to use.
func (s *LineScanner) AnalyzeInsertionPoints(_ context.Context, target Target) (InsertionPoints, error) {
	lines, err := readFileLines(target.Path)
	if err != nil {
		return InsertionPoints{}, err
	}

	points := InsertionPoints{
		TestInsertAfter:   lastNonBlankLine(lines),
		ImportInsertAfter: lastImportLine(lines, target.Language),
		Framework:         detectFramework(lines, target.Language),
	}

	if target.Language == "python" {
		if guard := firstMatchLine(lines, pythonMainGuardPattern); guard > 0 {
			points.TestInsertAfter = guard - 1
		}
	} else if closer := trailingCloserLine(lines, target.Language); closer > 0 {
		points.TestInsertAfter = closer - 1
	}

	return points, nil
}

// headerPatternsFor returns the header patterns for a language, or every
// known pattern in stable order when the language is unrecognized.
func headerPatternsFor(language string) []headerPattern {
	if patterns, ok := headerPatterns[language]; ok {
		return patterns
	}
	languages := make([]string, 0, len(headerPatterns))
	for lang := range headerPatterns {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	var all []headerPattern
	for _, lang := range languages {
		all = append(all, headerPatterns[lang]...)
	}
	return all
}

// importPatternsFor returns the import patterns for a language, or every
// known pattern in stable order when the language is unrecognized.
func importPatternsFor(language string) []*regexp.Regexp {
	if patterns, ok := importPatterns[language]; ok {
		return patterns
	}
	languages := make([]string, 0, len(importPatterns))
	for lang := range importPatterns {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	var all []*regexp.Regexp
	for _, lang := range languages {
		all = append(all, importPatterns[lang]...)
	}
	return all
}

// detectFramework identifies the testing framework from refinement
// patterns first, then from the first matching test header.
func detectFramework(lines []string, language string) string {
	for _, p := range frameworkPatterns[language] {
		for _, line := range lines {
			if p.re.MatchString(line) {
				return p.framework
			}
		}
	}
	patterns := headerPatternsFor(language)
	for _, line := range lines {
		for _, p := range patterns {
			if p.re.MatchString(line) {
				return p.framework
			}
		}
	}
	return FrameworkUnknown
}

// lastNonBlankLine returns the 1-based index of the last line with any
// non-whitespace content, or 0 for an empty file.
func lastNonBlankLine(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i + 1
		}
	}
	return 0
}

// lastImportLine returns the 1-based index of the last import statement,
// or the shebang line for a script with no imports, or 0.
func lastImportLine(lines []string, language string) int {
	patterns := importPatternsFor(language)
	last := 0
	for i, line := range lines {
		for _, re := range patterns {
			if re.MatchString(line) {
				last = i + 1
				break
			}
		}
	}
	if last == 0 && len(lines) > 0 && strings.HasPrefix(lines[0], "#!") {
		return 1
	}
	return last
}

// firstMatchLine returns the 1-based index of the first line matching the
// pattern, or 0.
func firstMatchLine(lines []string, re *regexp.Regexp) int {
	for i, line := range lines {
		if re.MatchString(line) {
			return i + 1
		}
	}
	return 0
}

// trailingCloserLine returns the 1-based index of a closing brace that
// ends the file's outermost scope, for languages whose tests live inside
// a class or suite block. New tests are inserted above that line.
func trailingCloserLine(lines []string, language string) int {
	last := lastNonBlankLine(lines)
	if last == 0 {
		return 0
	}
	trimmed := strings.TrimSpace(lines[last-1])
	switch language {
	case "java", "kotlin", "csharp", "scala", "php":
		if trimmed == "}" {
			return last
		}
	case "javascript", "typescript":
		if trimmed == "});" {
			return last
		}
	}
	return 0
}

// leadingWidth counts leading whitespace characters, tabs included.
func leadingWidth(line string) int {
	width := 0
	for _, r := range line {
		if r != ' ' && r != '\t' {
			break
		}
		width++
	}
	return width
}

// readFileLines reads a file and splits it into lines.
func readFileLines(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}
	return strings.Split(string(data), "\n"), nil
}
