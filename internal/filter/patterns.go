package filter

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/bebsworthy/covergate/pkg/config"
)

// PatternCache manages compiled regex patterns with thread-safe caching
type PatternCache struct {
	cache map[string]*regexp.Regexp
	mu    sync.RWMutex
	stats *CacheStats
}

// CacheStats tracks pattern cache performance metrics
type CacheStats struct {
	Hits   int64
	Misses int64
	mu     sync.Mutex
}

// NewPatternCache creates a new pattern cache
func NewPatternCache() (*PatternCache, error) {
	return &PatternCache{
		cache: make(map[string]*regexp.Regexp),
		stats: &CacheStats{},
	}, nil
}

// GetOrCompile retrieves a compiled pattern from cache or compiles it
func (pc *PatternCache) GetOrCompile(pattern *config.RegexPattern) (*regexp.Regexp, error) {
	if pattern == nil {
		return nil, fmt.Errorf("pattern cannot be nil")
	}

	key := pc.getCacheKey(pattern)

	pc.mu.RLock()
	if compiled, exists := pc.cache[key]; exists {
		pc.mu.RUnlock()
		pc.recordHit()
		return compiled, nil
	}
	pc.mu.RUnlock()

	pc.mu.Lock()
	defer pc.mu.Unlock()

	// Double-check in case another goroutine compiled it
	if compiled, exists := pc.cache[key]; exists {
		pc.recordHit()
		return compiled, nil
	}

	pc.recordMiss()
	compiled, err := pattern.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern.Pattern, err)
	}

	pc.cache[key] = compiled
	return compiled, nil
}

// Precompile compiles and caches multiple patterns
func (pc *PatternCache) Precompile(patterns []*config.RegexPattern) error {
	var errs []error

	for _, pattern := range patterns {
		if _, err := pc.GetOrCompile(pattern); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to precompile %d patterns", len(errs))
	}

	return nil
}

// Clear removes all cached patterns
func (pc *PatternCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache = make(map[string]*regexp.Regexp)
}

// Size returns the number of cached patterns
func (pc *PatternCache) Size() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	return len(pc.cache)
}

// GetStats returns cache performance statistics
func (pc *PatternCache) GetStats() CacheStats {
	pc.stats.mu.Lock()
	defer pc.stats.mu.Unlock()

	return CacheStats{
		Hits:   pc.stats.Hits,
		Misses: pc.stats.Misses,
	}
}

// ResetStats resets cache performance statistics
func (pc *PatternCache) ResetStats() {
	pc.stats.mu.Lock()
	defer pc.stats.mu.Unlock()

	pc.stats.Hits = 0
	pc.stats.Misses = 0
}

func (pc *PatternCache) getCacheKey(pattern *config.RegexPattern) string {
	if pattern.Flags == "" {
		return pattern.Pattern
	}
	return fmt.Sprintf("(?%s)%s", pattern.Flags, pattern.Pattern)
}

func (pc *PatternCache) recordHit() {
	pc.stats.mu.Lock()
	defer pc.stats.mu.Unlock()
	pc.stats.Hits++
}

func (pc *PatternCache) recordMiss() {
	pc.stats.mu.Lock()
	defer pc.stats.mu.Unlock()
	pc.stats.Misses++
}

// PatternValidator provides pattern validation and testing functionality,
// used when building or editing filter configurations.
type PatternValidator struct {
	cache *PatternCache
}

// NewPatternValidator creates a new pattern validator
func NewPatternValidator(cache *PatternCache) *PatternValidator {
	if cache == nil {
		cache, _ = NewPatternCache()
	}
	return &PatternValidator{cache: cache}
}

// Validate checks if a pattern is valid and can be compiled
func (pv *PatternValidator) Validate(pattern *config.RegexPattern) error {
	if pattern == nil {
		return fmt.Errorf("pattern cannot be nil")
	}

	if pattern.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}

	_, err := pv.cache.GetOrCompile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	return nil
}

// ValidateAll validates multiple patterns
func (pv *PatternValidator) ValidateAll(patterns []*config.RegexPattern) []error {
	var errs []error

	for i, pattern := range patterns {
		if err := pv.Validate(pattern); err != nil {
			errs = append(errs, fmt.Errorf("pattern %d: %w", i, err))
		}
	}

	return errs
}

// TestPattern tests a pattern against sample input
func (pv *PatternValidator) TestPattern(pattern *config.RegexPattern, input string) (*PatternTestResult, error) {
	re, err := pv.cache.GetOrCompile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern: %w", err)
	}

	matches := re.FindAllStringIndex(input, -1)
	matchStrings := re.FindAllString(input, -1)

	return &PatternTestResult{
		Pattern:       pattern.Pattern,
		Input:         input,
		Matches:       matchStrings,
		MatchCount:    len(matches),
		MatchIndices:  matches,
		CompiledRegex: re.String(),
	}, nil
}

// TestPatternBatch tests a pattern against multiple inputs
func (pv *PatternValidator) TestPatternBatch(pattern *config.RegexPattern, inputs []string) ([]*PatternTestResult, error) {
	results := make([]*PatternTestResult, len(inputs))

	for i, input := range inputs {
		result, err := pv.TestPattern(pattern, input)
		if err != nil {
			return nil, fmt.Errorf("failed to test pattern on input %d: %w", i, err)
		}
		results[i] = result
	}

	return results, nil
}

// PatternTestResult contains the results of testing a pattern
type PatternTestResult struct {
	Pattern       string
	Input         string
	Matches       []string
	MatchCount    int
	MatchIndices  [][]int
	CompiledRegex string
}
