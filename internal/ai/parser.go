// Package ai shells out to local AI CLI tools for covergate's optional
// collaborators.
package ai

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// layoutIndentation is the YAML payload of an indentation analysis.
// Required fields are pointers so an omitted key is distinguishable
// from a legitimate zero.
type layoutIndentation struct {
	Language               string `yaml:"language"`
	TestingFramework       string `yaml:"testing_framework"`
	NumberOfTests          int    `yaml:"number_of_tests"`
	TestHeadersIndentation *int   `yaml:"test_headers_indentation"`
}

// layoutInsertion is the YAML payload of an insertion-point analysis
type layoutInsertion struct {
	Language           string `yaml:"language"`
	TestingFramework   string `yaml:"testing_framework"`
	NumberOfTests      int    `yaml:"number_of_tests"`
	TestsInsertAfter   *int   `yaml:"relevant_line_number_to_insert_tests_after"`
	ImportsInsertAfter *int   `yaml:"relevant_line_number_to_insert_imports_after"`
}

// configResponse is the YAML payload of a configuration suggestion
type configResponse struct {
	ProjectType string `yaml:"project_type"`
	Command     string `yaml:"command"`
	Dir         string `yaml:"dir"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	ReportPath  string `yaml:"report_path"`
	Kind        string `yaml:"kind"`
	Explanation string `yaml:"explanation"`
}

// fencedBlockPattern matches the first markdown code block in a response
var fencedBlockPattern = regexp.MustCompile("(?s)```(?:yaml)?\n?(.*?)```")

// decodeYAMLResponse parses an AI response that should contain a single
// YAML mapping. Markdown fences and surrounding prose are tolerated:
// when the raw text does not parse, progressively repaired variants are
// tried before giving up with ErrTypeResponseInvalid.
func decodeYAMLResponse(response string, out interface{}) error {
	text := stripFences(response)
	if err := tryDecode(text, out); err == nil {
		return nil
	}

	// The response may wrap the YAML in prose; try the first fenced block
	if m := fencedBlockPattern.FindStringSubmatch(response); m != nil {
		if err := tryDecode(strings.TrimSpace(m[1]), out); err == nil {
			return nil
		}
	}

	// Some models emit JSON-ish braces around the mapping
	braceless := strings.TrimSpace(text)
	braceless = strings.TrimPrefix(braceless, "{")
	braceless = strings.TrimSuffix(braceless, "}")
	if err := tryDecode(braceless, out); err == nil {
		return nil
	}

	// Drop trailing lines until something parses; recovers responses
	// that append prose after an otherwise valid mapping
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i > 0; i-- {
		if err := tryDecode(strings.Join(lines[:i], "\n"), out); err == nil {
			return nil
		}
	}

	return NewAIError(ErrTypeResponseInvalid, "no YAML mapping found in AI response", nil)
}

// tryDecode accepts text only when it parses as a non-empty mapping.
// yaml.Unmarshal alone would happily decode an empty document into
// zero-valued fields.
func tryDecode(text string, out interface{}) error {
	var probe map[string]interface{}
	if err := yaml.Unmarshal([]byte(text), &probe); err != nil {
		return err
	}
	if len(probe) == 0 {
		return fmt.Errorf("empty mapping")
	}
	return yaml.Unmarshal([]byte(text), out)
}

// stripFences removes a leading yaml fence marker and trailing backticks
func stripFences(response string) string {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```yaml")
	return strings.TrimRight(text, "`")
}
