// Package analyze determines the structure of a test file: how test
// headers are indented, where new tests and imports belong, and which
// testing framework the file uses.
package analyze

import (
	"context"
	"path/filepath"
	"strings"
)

// FrameworkUnknown is reported when no testing framework could be identified.
const FrameworkUnknown = "Unknown"

// Target identifies the test file under analysis.
type Target struct {
	// Path is the path to the test file
	Path string

	// RelPath is the path relative to the project root, used in prompts
	RelPath string

	// Language is the lowercase source language name ("python", "go", ...)
	Language string
}

// TestLayout is the discovered structure of a test file. Line numbers are
// 1-based and name the line after which new content is inserted; 0 means
// the top of the file.
type TestLayout struct {
	// HeaderIndent is the indentation width of test headers, in characters
	HeaderIndent int

	// TestInsertAfter is the line new tests are inserted after
	TestInsertAfter int

	// ImportInsertAfter is the line new imports are inserted after
	ImportInsertAfter int

	// Framework is the detected testing framework
	Framework string
}

// InsertionPoints is the second half of a layout analysis: the insertion
// lines plus the framework identified along the way.
type InsertionPoints struct {
	// TestInsertAfter is the line new tests are inserted after
	TestInsertAfter int

	// ImportInsertAfter is the line new imports are inserted after
	ImportInsertAfter int

	// Framework is the detected testing framework
	Framework string
}

// Analyzer inspects a test file and reports its layout. Implementations
// include the built-in line scanner and the AI-backed analyzer. A result
// the analyzer could not determine is reported as an error, never as a
// sentinel value; zero is the valid top-of-file answer.
type Analyzer interface {
	// AnalyzeIndentation reports the indentation width of test headers
	AnalyzeIndentation(ctx context.Context, target Target) (int, error)

	// AnalyzeInsertionPoints reports the lines after which new tests and
	// new imports are inserted, plus the detected framework
	AnalyzeInsertionPoints(ctx context.Context, target Target) (InsertionPoints, error)
}

// languageExtensions maps a language name to its source file extensions.
var languageExtensions = map[string][]string{
	"c":          {".c", ".h"},
	"cpp":        {".cpp", ".cc", ".cxx", ".hpp", ".hh"},
	"csharp":     {".cs"},
	"go":         {".go"},
	"java":       {".java"},
	"javascript": {".js", ".jsx", ".mjs", ".cjs"},
	"kotlin":     {".kt", ".kts"},
	"php":        {".php"},
	"python":     {".py"},
	"ruby":       {".rb"},
	"rust":       {".rs"},
	"scala":      {".scala"},
	"swift":      {".swift"},
	"typescript": {".ts", ".tsx"},
}

// LanguageForFile infers the source language from a file extension.
// Unrecognized extensions return "unknown".
func LanguageForFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "unknown"
	}
	for language, extensions := range languageExtensions {
		for _, e := range extensions {
			if e == ext {
				return language
			}
		}
	}
	return "unknown"
}
