// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"fmt"
	"strings"
)

// indentation analysis prompt template
const indentationPromptTemplate = `Here is the content of the test file {{TEST_FILE_NAME}}, written in {{LANGUAGE}}:

=========
{{TEST_FILE}}
=========

Analyze the indentation style of this test suite.

Return your response as a YAML object with exactly these keys:
- language: the programming language of the test file
- testing_framework: the testing framework used in the test file
- number_of_tests: the number of tests in the test file
- test_headers_indentation: the indentation of the test headers, in characters. For example, "def test_..." in a plain pytest file has an indentation of 0, while "def test_..." inside a unittest class has an indentation of 4.

Example output:
` + "```yaml" + `
language: python
testing_framework: pytest
number_of_tests: 3
test_headers_indentation: 4
` + "```" + `

Respond with the YAML object only. Do not add any other text.`

// insertion point analysis prompt template
const insertionPromptTemplate = `Here is the content of the test file {{TEST_FILE_NAME}}, written in {{LANGUAGE}}, with line numbers prepended:

=========
{{TEST_FILE_NUMBERED}}
=========

Analyze where new content belongs in this test suite.

Return your response as a YAML object with exactly these keys:
- language: the programming language of the test file
- testing_framework: the testing framework used in the test file
- number_of_tests: the number of tests in the test file
- relevant_line_number_to_insert_tests_after: the line number after which a new test function should be inserted so it belongs to the existing suite. Prefer the end of the last existing test.
- relevant_line_number_to_insert_imports_after: the line number after which new import statements should be inserted, usually the last existing import line.

Example output:
` + "```yaml" + `
language: python
testing_framework: pytest
number_of_tests: 3
relevant_line_number_to_insert_tests_after: 24
relevant_line_number_to_insert_imports_after: 2
` + "```" + `

Respond with the YAML object only. Do not add any other text.`

// failure analysis prompt template
const failurePromptTemplate = `A test run failed after a new test was added to an existing suite.

Source file {{SOURCE_FILE_NAME}}:
=========
{{SOURCE_FILE}}
=========

Test file {{TEST_FILE_NAME}} as executed:
=========
{{TEST_FILE}}
=========

The suite was run with: {{COMMAND}}
It exited with code {{EXIT_CODE}}.

stdout:
=========
{{STDOUT}}
=========

stderr:
=========
{{STDERR}}
=========

Explain concisely why the run failed and what is wrong with the added test.
Keep the explanation short (a few sentences), concrete, and focused on the
failure at hand. Respond with plain text only.`

// configuration suggestion prompt template
const configPromptTemplate = `Analyze the project in the directory: {{WORKING_DIR}}
{{PROJECT_HINT}}
Your task is to suggest a covergate configuration: the single shell command
that runs this project's test suite WITH coverage instrumentation, and the
coverage report it produces. Consider:

1. The primary language and test framework (check package.json, go.mod, requirements.txt, pom.xml, etc.)
2. The build tool in use. If the project uses a system build tool such as Make, Maven, Gradle, NPM, Yarn, or Poetry, you MUST prefer the relevant command from the build tool configuration, such as 'make test' or 'npm test', provided it produces a coverage report.
3. Where the coverage report is written and which format it is in.

IMPORTANT instructions:
- Respect .gitignore patterns - do not analyze files that would be ignored by git
- Do not analyze or include information from .env files, credentials, or API keys
- The command must produce a machine-readable coverage report on every run
- Supported report kinds: cobertura, lcov, jacoco, jacoco-csv, gocover, diff-cover-json

Return your response as a YAML object with exactly these keys:
- project_type: the primary project type (nodejs, go, python, java, ...)
- command: the shell command that runs the suite with coverage
- dir: the directory to run the command in, relative to the project root ("." for the root)
- timeout_sec: a reasonable per-run timeout in seconds
- report_path: the coverage report path, relative to dir
- kind: the report kind, one of the supported kinds above
- explanation: 1-2 sentences describing why this command was chosen

Example output:
` + "```yaml" + `
project_type: python
command: pytest --cov=. --cov-report=xml --timeout=30
dir: .
timeout_sec: 120
report_path: coverage.xml
kind: cobertura
explanation: pytest with pytest-cov is configured in pyproject.toml and writes a Cobertura report to coverage.xml.
` + "```" + `

Respond with the YAML object only. Do not add any other text.`

// indentationPrompt builds the test-header indentation analysis prompt.
func indentationPrompt(language, testFileName, testFile string) string {
	prompt := strings.ReplaceAll(indentationPromptTemplate, "{{TEST_FILE_NAME}}", testFileName)
	prompt = strings.ReplaceAll(prompt, "{{LANGUAGE}}", language)
	prompt = strings.ReplaceAll(prompt, "{{TEST_FILE}}", testFile)
	return prompt
}

// insertionPrompt builds the insertion-point analysis prompt. The file
// content is numbered so the model answers with real line numbers.
func insertionPrompt(language, testFileName, testFile string) string {
	prompt := strings.ReplaceAll(insertionPromptTemplate, "{{TEST_FILE_NAME}}", testFileName)
	prompt = strings.ReplaceAll(prompt, "{{LANGUAGE}}", language)
	prompt = strings.ReplaceAll(prompt, "{{TEST_FILE_NUMBERED}}", numberLines(testFile))
	return prompt
}

// failurePrompt builds the failure analysis prompt.
func failurePrompt(sourceFileName, sourceFile, testFileName, testFile, command string, exitCode int, stdout, stderr string) string {
	prompt := strings.ReplaceAll(failurePromptTemplate, "{{SOURCE_FILE_NAME}}", sourceFileName)
	prompt = strings.ReplaceAll(prompt, "{{SOURCE_FILE}}", sourceFile)
	prompt = strings.ReplaceAll(prompt, "{{TEST_FILE_NAME}}", testFileName)
	prompt = strings.ReplaceAll(prompt, "{{TEST_FILE}}", testFile)
	prompt = strings.ReplaceAll(prompt, "{{COMMAND}}", command)
	prompt = strings.ReplaceAll(prompt, "{{EXIT_CODE}}", fmt.Sprintf("%d", exitCode))
	prompt = strings.ReplaceAll(prompt, "{{STDOUT}}", stdout)
	prompt = strings.ReplaceAll(prompt, "{{STDERR}}", stderr)
	return prompt
}

// configPrompt builds the configuration suggestion prompt. projectHint
// names project types detected by marker files, or is empty.
func configPrompt(workingDir string, projectHint string) string {
	hint := "\n"
	if projectHint != "" {
		hint = fmt.Sprintf("\nMarker files suggest this is a %s project; verify against the actual layout.\n", projectHint)
	}
	prompt := strings.ReplaceAll(configPromptTemplate, "{{WORKING_DIR}}", workingDir)
	prompt = strings.ReplaceAll(prompt, "{{PROJECT_HINT}}", hint)
	return prompt
}

// numberLines prepends 1-based line numbers, one per line.
func numberLines(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d %s", i+1, line)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
