package candidate

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// batch is the generator response wrapper carrying a list of tests.
type batch struct {
	Language string      `yaml:"language"`
	NewTests []Candidate `yaml:"new_tests"`
}

// decodeDocument extracts the candidates from one YAML document. A
// document may be a single candidate mapping, a list of candidates, or a
// generator batch with a new_tests list. JSON documents parse the same
// way since YAML is a superset.
func decodeDocument(node *yaml.Node) ([]Candidate, error) {
	root := node
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}

	switch root.Kind {
	case yaml.SequenceNode:
		var list []Candidate
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to decode candidate list: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		if hasKey(root, "new_tests") {
			var b batch
			if err := root.Decode(&b); err != nil {
				return nil, fmt.Errorf("failed to decode candidate batch: %w", err)
			}
			return b.NewTests, nil
		}
		var single Candidate
		if err := root.Decode(&single); err != nil {
			return nil, fmt.Errorf("failed to decode candidate: %w", err)
		}
		return []Candidate{single}, nil
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("candidate document must be a mapping or a list, got a scalar")
	default:
		return nil, nil
	}
}

// hasKey reports whether a mapping node carries the given top-level key.
func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// DecodeFile reads every candidate from a batch file.
func DecodeFile(path string) ([]Candidate, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open candidate file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := yaml.NewDecoder(f)
	var all []Candidate
	for {
		var node yaml.Node
		if err := decoder.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse candidates from %s: %w", path, err)
		}
		candidates, err := decodeDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, candidates...)
	}
	return all, nil
}
