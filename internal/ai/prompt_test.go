//go:build unit

package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndentationPrompt(t *testing.T) {
	content := "import unittest\n\nclass TestCalc(unittest.TestCase):\n    def test_add(self):\n        pass\n"
	prompt := indentationPrompt("python", "tests/test_calc.py", content)

	assert.Contains(t, prompt, "tests/test_calc.py")
	assert.Contains(t, prompt, "written in python")
	assert.Contains(t, prompt, content)
	assert.Contains(t, prompt, "test_headers_indentation")
	assert.NotContains(t, prompt, "{{")
}

func TestInsertionPromptNumbersTheFile(t *testing.T) {
	content := "import unittest\n\ndef test_add():\n    pass"
	prompt := insertionPrompt("python", "test_calc.py", content)

	assert.Contains(t, prompt, "1 import unittest")
	assert.Contains(t, prompt, "3 def test_add():")
	assert.Contains(t, prompt, "relevant_line_number_to_insert_tests_after")
	assert.Contains(t, prompt, "relevant_line_number_to_insert_imports_after")
	assert.NotContains(t, prompt, "{{")
}

func TestFailurePrompt(t *testing.T) {
	prompt := failurePrompt(
		"calc.py", "def add(a, b):\n    return a + b\n",
		"test_calc.py", "def test_add():\n    assert add(1, 1) == 3\n",
		"pytest --cov=.", 1,
		"1 failed, 3 passed", "AssertionError: assert 2 == 3",
	)

	assert.Contains(t, prompt, "calc.py")
	assert.Contains(t, prompt, "test_calc.py")
	assert.Contains(t, prompt, "pytest --cov=.")
	assert.Contains(t, prompt, "exited with code 1")
	assert.Contains(t, prompt, "1 failed, 3 passed")
	assert.Contains(t, prompt, "AssertionError: assert 2 == 3")
	assert.NotContains(t, prompt, "{{")
}

func TestConfigPromptWithHint(t *testing.T) {
	prompt := configPrompt("/work/app", "nodejs")

	assert.Contains(t, prompt, "/work/app")
	assert.Contains(t, prompt, "Marker files suggest this is a nodejs project")
	assert.Contains(t, prompt, "report_path")
	assert.Contains(t, prompt, "cobertura, lcov, jacoco")
	assert.NotContains(t, prompt, "{{")
}

func TestConfigPromptWithoutHint(t *testing.T) {
	prompt := configPrompt("/work/app", "")

	assert.NotContains(t, prompt, "Marker files")
	assert.NotContains(t, prompt, "{{")
}

func TestNumberLines(t *testing.T) {
	assert.Equal(t, "1 a\n2 b\n3 c", numberLines("a\nb\nc"))
	assert.Equal(t, "1 only", numberLines("only"))

	// A trailing newline yields a final empty numbered line, matching
	// how editors count lines.
	numbered := numberLines("a\nb\n")
	assert.True(t, strings.HasSuffix(numbered, "\n3 "), "got %q", numbered)
}
