package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bebsworthy/covergate/pkg/config"
)

// matcherSet matches lines against a pattern list. Patterns that are plain
// literals, optionally anchored, are matched with string operations; only
// the rest pay for a regexp. The set is immutable after construction.
type matcherSet struct {
	exact    []literalMatcher
	prefixes []literalMatcher
	suffixes []literalMatcher
	contains []literalMatcher
	regexes  []regexMatcher
}

type literalMatcher struct {
	needle string
	source string // original pattern text, for match logging
}

type regexMatcher struct {
	re     *regexp.Regexp
	source string
}

type matchKind int

const (
	matchRegex matchKind = iota
	matchExact
	matchPrefix
	matchSuffix
	matchContains
)

func newMatcherSet(patterns []*config.RegexPattern, cache *PatternCache) (*matcherSet, error) {
	ms := &matcherSet{}

	for i, pattern := range patterns {
		if pattern == nil {
			return nil, fmt.Errorf("pattern %d cannot be nil", i)
		}

		// Flags force the regex path; literal classification assumes
		// default matching semantics.
		if pattern.Flags == "" {
			lm := literalMatcher{source: pattern.Pattern}
			switch kind, needle := classifyLiteral(pattern.Pattern); kind {
			case matchExact:
				lm.needle = needle
				ms.exact = append(ms.exact, lm)
				continue
			case matchPrefix:
				lm.needle = needle
				ms.prefixes = append(ms.prefixes, lm)
				continue
			case matchSuffix:
				lm.needle = needle
				ms.suffixes = append(ms.suffixes, lm)
				continue
			case matchContains:
				lm.needle = needle
				ms.contains = append(ms.contains, lm)
				continue
			}
		}

		re, err := cache.GetOrCompile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern.Pattern, err)
		}
		ms.regexes = append(ms.regexes, regexMatcher{re: re, source: pattern.Pattern})
	}

	return ms, nil
}

// match reports whether any pattern in the set matches the line, returning
// the source text of the first matching pattern.
func (ms *matcherSet) match(line string) (string, bool) {
	for _, m := range ms.exact {
		if line == m.needle {
			return m.source, true
		}
	}
	for _, m := range ms.prefixes {
		if strings.HasPrefix(line, m.needle) {
			return m.source, true
		}
	}
	for _, m := range ms.suffixes {
		if strings.HasSuffix(line, m.needle) {
			return m.source, true
		}
	}
	for _, m := range ms.contains {
		if strings.Contains(line, m.needle) {
			return m.source, true
		}
	}
	for _, m := range ms.regexes {
		if m.re.MatchString(line) {
			return m.source, true
		}
	}
	return "", false
}

// size returns the number of patterns held by the set.
func (ms *matcherSet) size() int {
	return len(ms.exact) + len(ms.prefixes) + len(ms.suffixes) + len(ms.contains) + len(ms.regexes)
}

// classifyLiteral decides whether a pattern can be matched without a
// regexp. An unanchored literal matches as a substring; ^ and $ anchors
// on a literal become prefix, suffix, or whole-line matches. Anything
// containing a metacharacter falls back to matchRegex.
func classifyLiteral(pattern string) (matchKind, string) {
	hasCaret := strings.HasPrefix(pattern, "^")
	hasDollar := strings.HasSuffix(pattern, "$")

	body := pattern
	if hasCaret {
		body = body[1:]
	}
	if hasDollar && body != "" {
		body = body[:len(body)-1]
	}

	if !isLiteral(body) {
		return matchRegex, ""
	}

	switch {
	case hasCaret && hasDollar:
		return matchExact, body
	case hasCaret:
		return matchPrefix, body
	case hasDollar:
		return matchSuffix, body
	default:
		return matchContains, body
	}
}

// isLiteral reports whether the string contains no regex metacharacters.
func isLiteral(s string) bool {
	return !strings.ContainsAny(s, `\.+*?[]{}^$|()`)
}
