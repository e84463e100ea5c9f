package filter

import (
	"testing"

	"github.com/bebsworthy/covergate/pkg/config"
)

func TestClassifyLiteral(t *testing.T) {
	tests := []struct {
		pattern    string
		wantKind   matchKind
		wantNeedle string
	}{
		{"ERROR", matchContains, "ERROR"},
		{"", matchContains, ""},
		{"^FAILED", matchPrefix, "FAILED"},
		{"failed$", matchSuffix, "failed"},
		{"^ok$", matchExact, "ok"},
		{"^$", matchExact, ""},
		{"^=== RUN", matchPrefix, "=== RUN"},
		{`\.go$`, matchRegex, ""},
		{"te.st", matchRegex, ""},
		{"error|warning", matchRegex, ""},
		{`\d+:\d+`, matchRegex, ""},
		{"a(b)c", matchRegex, ""},
		{"x*", matchRegex, ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			kind, needle := classifyLiteral(tt.pattern)
			if kind != tt.wantKind {
				t.Errorf("classifyLiteral(%q) kind = %d, want %d", tt.pattern, kind, tt.wantKind)
			}
			if kind != matchRegex && needle != tt.wantNeedle {
				t.Errorf("classifyLiteral(%q) needle = %q, want %q", tt.pattern, needle, tt.wantNeedle)
			}
		})
	}
}

func TestMatcherSet_Match(t *testing.T) {
	cache, _ := NewPatternCache()
	set, err := newMatcherSet([]*config.RegexPattern{
		{Pattern: "ERROR"},
		{Pattern: "^FAIL"},
		{Pattern: "panic$"},
		{Pattern: "^ok$"},
		{Pattern: "warning", Flags: "i"},
		{Pattern: `\d+ failed`},
	}, cache)
	if err != nil {
		t.Fatalf("newMatcherSet() error = %v", err)
	}

	tests := []struct {
		line      string
		wantMatch bool
	}{
		// Unanchored literals match anywhere in the line
		{"prefix ERROR suffix", true},
		{"ERROR", true},
		{"error lower case", false},
		// ^ anchors to the start of the line
		{"FAILED test_foo", true},
		{"test_foo FAILED", false},
		// $ anchors to the end of the line
		{"goroutine panic", true},
		{"panic recovered", false},
		// Both anchors require the whole line
		{"ok", true},
		{"ok 2 packages", false},
		// Flags take the regex path
		{"WARNING: deprecation", true},
		{"3 failed, 1 passed", true},
		{"all passed", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if _, got := set.match(tt.line); got != tt.wantMatch {
				t.Errorf("match(%q) = %v, want %v", tt.line, got, tt.wantMatch)
			}
		})
	}
}

func TestMatcherSet_MatchReturnsSource(t *testing.T) {
	cache, _ := NewPatternCache()
	set, err := newMatcherSet([]*config.RegexPattern{
		{Pattern: "^FAIL"},
	}, cache)
	if err != nil {
		t.Fatalf("newMatcherSet() error = %v", err)
	}

	source, ok := set.match("FAIL: TestThing")
	if !ok {
		t.Fatal("expected a match")
	}
	if source != "^FAIL" {
		t.Errorf("match() source = %q, want %q", source, "^FAIL")
	}
}

func TestMatcherSet_Buckets(t *testing.T) {
	cache, _ := NewPatternCache()
	set, err := newMatcherSet([]*config.RegexPattern{
		{Pattern: "ERROR"},
		{Pattern: "^FAIL"},
		{Pattern: "panic$"},
		{Pattern: "^ok$"},
		{Pattern: `\berror\b`},
		{Pattern: "simple", Flags: "i"},
	}, cache)
	if err != nil {
		t.Fatalf("newMatcherSet() error = %v", err)
	}

	if len(set.contains) != 1 || len(set.prefixes) != 1 || len(set.suffixes) != 1 || len(set.exact) != 1 {
		t.Errorf("literal buckets = %d/%d/%d/%d, want 1 each",
			len(set.contains), len(set.prefixes), len(set.suffixes), len(set.exact))
	}
	if len(set.regexes) != 2 {
		t.Errorf("regex bucket = %d, want 2 (metacharacters and flagged pattern)", len(set.regexes))
	}
	if set.size() != 6 {
		t.Errorf("size() = %d, want 6", set.size())
	}
}

func TestNewMatcherSet_Errors(t *testing.T) {
	cache, _ := NewPatternCache()

	if _, err := newMatcherSet([]*config.RegexPattern{{Pattern: "[unclosed"}}, cache); err == nil {
		t.Error("expected error for invalid regex pattern")
	}

	if _, err := newMatcherSet([]*config.RegexPattern{nil}, cache); err == nil {
		t.Error("expected error for nil pattern")
	}

	set, err := newMatcherSet(nil, cache)
	if err != nil {
		t.Fatalf("newMatcherSet(nil list) error = %v", err)
	}
	if _, ok := set.match("anything"); ok {
		t.Error("empty set should match nothing")
	}
}
