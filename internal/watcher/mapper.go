// Package watcher maps changed source files onto the configured
// source/test target pairs that a multi-target run validates.
package watcher

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bebsworthy/covergate/pkg/config"
)

// TargetMatch is a resolved target carrying the effective command and
// coverage configuration for its source file.
type TargetMatch struct {
	// Target is the configured source/test pair
	Target *config.TargetConfig
	// Command runs the suite for this target
	Command *config.CommandConfig
	// Coverage locates and reads the report for this target
	Coverage *config.CoverageConfig
}

// TargetMapper resolves changed files against the configured targets
// and path overrides.
type TargetMapper struct {
	cfg *config.Config
}

// NewTargetMapper creates a mapper over a loaded configuration.
func NewTargetMapper(cfg *config.Config) *TargetMapper {
	return &TargetMapper{cfg: cfg}
}

// TargetsForFiles returns the distinct targets whose source entry
// matches any of the changed files, in configuration order.
func (m *TargetMapper) TargetsForFiles(files []string) []*config.TargetConfig {
	if len(files) == 0 || len(m.cfg.Targets) == 0 {
		return nil
	}

	matched := make(map[*config.TargetConfig]bool)
	for _, file := range files {
		for _, target := range m.cfg.Targets {
			if matchesSource(file, target.SourceFile) {
				matched[target] = true
			}
		}
	}

	var targets []*config.TargetConfig
	for _, target := range m.cfg.Targets {
		if matched[target] {
			targets = append(targets, target)
		}
	}
	return targets
}

// MatchesForFiles resolves every target affected by the changed files.
func (m *TargetMapper) MatchesForFiles(files []string) []*TargetMatch {
	targets := m.TargetsForFiles(files)
	matches := make([]*TargetMatch, 0, len(targets))
	for _, target := range targets {
		matches = append(matches, m.Resolve(target))
	}
	return matches
}

// TargetForSource returns the most specific target whose source entry
// matches the path.
func (m *TargetMapper) TargetForSource(path string) (*config.TargetConfig, bool) {
	var best *config.TargetConfig
	bestSpecificity := -1

	for _, target := range m.cfg.Targets {
		if !matchesSource(path, target.SourceFile) {
			continue
		}
		if s := calculateSpecificity(target.SourceFile); s > bestSpecificity {
			best = target
			bestSpecificity = s
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// Resolve attaches the effective command and coverage configuration for
// a target: the root configuration overlaid with the most specific
// matching path override, the target's own report path applied last.
func (m *TargetMapper) Resolve(target *config.TargetConfig) *TargetMatch {
	match := &TargetMatch{
		Target:   target,
		Command:  m.cfg.Command.Clone(),
		Coverage: m.cfg.Coverage.Clone(),
	}

	if override := m.bestPathOverride(target.SourceFile); override != nil {
		for _, overlay := range m.overrideChain(override) {
			if overlay.Command != nil {
				match.Command = overlay.Command.Clone()
			}
			if overlay.Coverage != nil {
				match.Coverage = overlay.Coverage.Clone()
			}
		}
	}

	if target.ReportPath != "" {
		if match.Coverage == nil {
			match.Coverage = &config.CoverageConfig{}
		}
		match.Coverage.ReportPath = target.ReportPath
	}

	return match
}

// bestPathOverride returns the most specific path override matching a
// source file, or nil when none applies.
func (m *TargetMapper) bestPathOverride(path string) *config.PathConfig {
	var best *config.PathConfig
	bestSpecificity := -1

	clean := filepath.ToSlash(filepath.Clean(path))
	for _, pathConfig := range m.cfg.Paths {
		if !matchesPattern(clean, pathConfig.Path) {
			continue
		}
		if s := calculateSpecificity(pathConfig.Path); s > bestSpecificity {
			best = pathConfig
			bestSpecificity = s
		}
	}
	return best
}

// overrideChain resolves an override's extends references, ordered most
// general first. Cycles and dangling references terminate the walk.
func (m *TargetMapper) overrideChain(override *config.PathConfig) []*config.PathConfig {
	var chain []*config.PathConfig
	seen := make(map[string]bool)

	for current := override; current != nil && !seen[current.Path]; {
		seen[current.Path] = true
		chain = append(chain, current)
		if current.Extends == "" {
			break
		}
		current = m.findPath(current.Extends)
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// findPath looks up a path override by its path value.
func (m *TargetMapper) findPath(path string) *config.PathConfig {
	for _, pc := range m.cfg.Paths {
		if pc.Path == path {
			return pc
		}
	}
	return nil
}

// matchesSource checks a changed file against a target's source entry,
// which is either a concrete path or a glob.
func matchesSource(file, source string) bool {
	file = filepath.ToSlash(filepath.Clean(file))
	source = filepath.ToSlash(source)

	if strings.ContainsAny(source, "*?[{") {
		matched, err := doublestar.Match(source, file)
		return err == nil && matched
	}
	return file == filepath.ToSlash(filepath.Clean(source))
}

// matchesPattern checks a slash-normalized file path against a path
// override pattern: exact, directory prefix, glob, or bare directory.
func matchesPattern(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)
	if path == pattern {
		return true
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	if strings.ContainsAny(pattern, "*?[{") {
		matched, err := doublestar.Match(pattern, path)
		return err == nil && matched
	}
	return strings.HasPrefix(path, pattern+"/")
}

// calculateSpecificity scores how specific a path or pattern is. More
// specific entries have higher values and win when several match.
func calculateSpecificity(pattern string) int {
	specificity := 0

	// Deeper paths are more specific
	specificity += strings.Count(pattern, "/") * 10

	for _, ch := range pattern {
		switch ch {
		case '*', '?', '[', ']':
			specificity--
		default:
			specificity++
		}
	}

	if strings.HasSuffix(pattern, "/**") {
		specificity -= 20
	}
	if strings.Contains(pattern, "/**/") {
		specificity -= 10
	}

	if specificity < 0 {
		specificity = 0
	}

	return specificity
}
