// Package security provides validation and protection mechanisms for covergate.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// SecurityValidator provides comprehensive security validation
type SecurityValidator struct {
	// Command whitelist - empty means all commands allowed
	allowedCommands map[string]bool
	// Maximum allowed timeout
	maxTimeout time.Duration
	// Maximum regex pattern length
	maxRegexLength int
	// Banned path patterns
	bannedPaths []string
}

// NewSecurityValidator creates a new security validator with default settings
func NewSecurityValidator() *SecurityValidator {
	return &SecurityValidator{
		allowedCommands: map[string]bool{}, // empty allows all
		maxTimeout:      1 * time.Hour,
		maxRegexLength:  500,
		bannedPaths: []string{
			"/etc",
			"/sys",
			"/proc",
			"/dev",
			"C:\\Windows",
			"C:\\System32",
		},
	}
}

// shell control operators that start a new command segment when they
// appear as standalone tokens
var shellOperators = map[string]bool{
	"&&": true,
	"||": true,
	";":  true,
	"|":  true,
	"&":  true,
}

// ValidateCommandString checks a configured test command for safety. The
// command is an opaque shell line, so it is tokenized with shell quoting
// rules and each command segment's program is checked.
func (v *SecurityValidator) ValidateCommandString(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if strings.Contains(command, "\x00") {
		return fmt.Errorf("command contains null byte")
	}

	// A configured command is a single line; embedded newlines smuggle in
	// extra commands that never show up in config reviews.
	if strings.ContainsAny(command, "\n\r") {
		return fmt.Errorf("command contains line break")
	}

	tokens, err := shellquote.Split(command)
	if err != nil {
		return fmt.Errorf("command is not parseable: %w", err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("command cannot be empty")
	}

	if len(v.allowedCommands) > 0 {
		if err := v.checkAllowedSegments(command, tokens); err != nil {
			return err
		}
	}

	return v.checkDangerousSegments(tokens)
}

// checkAllowedSegments enforces the command allow list. Substitution and
// glued operators can hide programs from tokenization, so they are
// rejected outright when a list is configured.
func (v *SecurityValidator) checkAllowedSegments(command string, tokens []string) error {
	if strings.Contains(command, "$(") || strings.Contains(command, "`") {
		return fmt.Errorf("command substitution is not allowed with a command allow list")
	}

	expectProgram := true
	for _, token := range tokens {
		if shellOperators[token] {
			if expectProgram {
				return fmt.Errorf("empty command segment before %q", token)
			}
			expectProgram = true
			continue
		}
		if !expectProgram {
			continue
		}
		if strings.ContainsAny(token, ";|&<>") {
			return fmt.Errorf("program name %q contains shell metacharacters", token)
		}
		if !v.allowedCommands[token] && !v.allowedCommands[filepath.Base(token)] {
			return fmt.Errorf("command '%s' is not in the allowed command list", token)
		}
		expectProgram = false
	}

	return nil
}

// checkDangerousSegments scans each command segment for inherently
// dangerous invocations
func (v *SecurityValidator) checkDangerousSegments(tokens []string) error {
	for _, segment := range splitSegments(tokens) {
		if len(segment) == 0 {
			continue
		}
		base := filepath.Base(segment[0])
		switch base {
		case "rm", "del":
			if err := v.validateRemoveCommand(base, segment[1:]); err != nil {
				return err
			}
		case "curl", "wget":
			if err := v.validateDownloadCommand(base, segment[1:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitSegments cuts a token stream at standalone shell operators
func splitSegments(tokens []string) [][]string {
	var segments [][]string
	var current []string
	for _, token := range tokens {
		if shellOperators[token] {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, token)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// ValidatePath validates a file path to prevent directory traversal attacks
func (v *SecurityValidator) ValidatePath(path string) error {
	if err := v.validateBasicPath(path); err != nil {
		return err
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal sequence")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("cannot resolve path: %w", err)
	}

	if err := v.checkBannedPaths(absPath); err != nil {
		return err
	}

	if err := v.checkWindowsPaths(path); err != nil {
		return err
	}

	return v.checkPathScope(absPath, path)
}

// ValidateScopedPath checks that a configured path stays inside the
// project root once resolved. Report and recovery files must not land
// outside the tree the session works in. Absolute paths into the system
// temp directory are the one exception, relative paths that escape via
// dot segments are always rejected.
func (v *SecurityValidator) ValidateScopedPath(root, path string) error {
	if err := v.validateBasicPath(path); err != nil {
		return err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("cannot resolve project root: %w", err)
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absRoot, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(absRoot, resolved)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return v.checkBannedPaths(resolved)
	}

	if filepath.IsAbs(path) && strings.HasPrefix(resolved, os.TempDir()+string(filepath.Separator)) {
		return nil
	}

	return fmt.Errorf("path %q resolves outside project directory %q", path, root)
}

// ValidateRegexPattern validates a regex pattern for safety
func (v *SecurityValidator) ValidateRegexPattern(pattern string) error {
	if len(pattern) > v.maxRegexLength {
		return fmt.Errorf("regex pattern too long (%d chars), maximum is %d", len(pattern), v.maxRegexLength)
	}

	if err := v.checkReDoSPattern(pattern); err != nil {
		return fmt.Errorf("potentially vulnerable regex pattern: %w", err)
	}

	// Compile with a timeout so a pathological pattern cannot hang
	// config validation
	done := make(chan error, 1)
	go func() {
		_, err := regexp.Compile(pattern)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
		return fmt.Errorf("regex compilation timeout - pattern may be too complex")
	}

	return nil
}

// ValidateTimeout validates a timeout duration
func (v *SecurityValidator) ValidateTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if timeout > v.maxTimeout {
		return fmt.Errorf("timeout %v exceeds maximum allowed %v", timeout, v.maxTimeout)
	}

	if timeout > 0 && timeout < 100*time.Millisecond {
		return fmt.Errorf("timeout %v is too short, minimum recommended is 100ms", timeout)
	}

	return nil
}

// checkReDoSPattern checks for ReDoS vulnerable regex patterns
func (v *SecurityValidator) checkReDoSPattern(pattern string) error {
	// Patterns that can cause catastrophic backtracking
	vulnerablePatterns := []struct {
		pattern string
		name    string
	}{
		{`\(\.\*\)\*`, "nested quantifiers (.*)* "},
		{`\(\.\+\)\*`, "nested quantifiers (.+)* "},
		{`\(\.\*\)\+`, "nested quantifiers (.*)+ "},
		{`\(\.\+\)\+`, "nested quantifiers (.+)+ "},
		{`\([^)]*\+\)\+`, "nested quantifiers (x+)+"},
		{`\([^)]*\*\)\*`, "nested quantifiers (x*)*"},
		{`\([^)]*\+\)\*`, "nested quantifiers (x+)*"},
		{`\([^)]*\*\)\+`, "nested quantifiers (x*)+"},
		{`\(\([^)]+\)\)\+`, "nested groups ((x))+"},
		{`\([^)]*\|[^)]*\)\*`, "alternation with star (a|b)*"},
	}

	for _, vp := range vulnerablePatterns {
		matched, err := regexp.MatchString(vp.pattern, pattern)
		if err != nil {
			continue
		}
		if matched {
			return fmt.Errorf("pattern contains %s which can cause catastrophic backtracking", vp.name)
		}
	}

	// Check for excessive alternation
	pipeCount := strings.Count(pattern, "|")
	if pipeCount > 10 {
		return fmt.Errorf("pattern contains too many alternations (%d), which can be slow", pipeCount)
	}

	// Check for excessive capturing groups
	openParens := strings.Count(pattern, "(")
	nonCapturing := strings.Count(pattern, "(?:")
	capturingGroups := openParens - nonCapturing
	if capturingGroups > 10 {
		return fmt.Errorf("pattern contains too many capturing groups (%d), maximum is 10", capturingGroups)
	}

	return nil
}

// SetAllowedCommands updates the list of allowed commands
func (v *SecurityValidator) SetAllowedCommands(commands []string) {
	v.allowedCommands = make(map[string]bool)
	for _, cmd := range commands {
		v.allowedCommands[cmd] = true
	}
}

// SetMaxTimeout updates the maximum allowed timeout
func (v *SecurityValidator) SetMaxTimeout(timeout time.Duration) {
	v.maxTimeout = timeout
}

// SetMaxRegexLength updates the maximum allowed regex pattern length
func (v *SecurityValidator) SetMaxRegexLength(length int) {
	v.maxRegexLength = length
}

// validateBasicPath performs basic path validation checks
func (v *SecurityValidator) validateBasicPath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null byte")
	}

	return nil
}

// checkBannedPaths checks if the path matches any banned paths
func (v *SecurityValidator) checkBannedPaths(absPath string) error {
	for _, banned := range v.bannedPaths {
		normalizedBanned := filepath.Clean(banned)
		if strings.HasPrefix(absPath, normalizedBanned) ||
			strings.HasPrefix(strings.ToLower(absPath), strings.ToLower(normalizedBanned)) {
			return fmt.Errorf("access to path '%s' is forbidden", banned)
		}
	}
	return nil
}

// checkWindowsPaths checks Windows-specific path restrictions
func (v *SecurityValidator) checkWindowsPaths(path string) error {
	// Cross-platform validation of Windows absolute paths like C:\ or D:/
	if len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		drive := strings.ToUpper(string(path[0]))
		if drive >= "A" && drive <= "Z" {
			for _, banned := range v.bannedPaths {
				if strings.Contains(banned, ":\\") || strings.Contains(banned, ":/") {
					if strings.HasPrefix(strings.ToLower(path), strings.ToLower(banned)) {
						return fmt.Errorf("access to path '%s' is forbidden", banned)
					}
				}
			}
		}
	}
	return nil
}

// checkPathScope ensures path is within the working directory or temp
func (v *SecurityValidator) checkPathScope(absPath, originalPath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot get working directory: %w", err)
	}

	if !strings.HasPrefix(absPath, cwd) {
		tempDir := os.TempDir()
		if !strings.HasPrefix(absPath, tempDir) {
			return fmt.Errorf("path '%s' is outside project directory", originalPath)
		}
	}

	return nil
}

// validateRemoveCommand validates rm/del segments for dangerous flags
func (v *SecurityValidator) validateRemoveCommand(baseCmd string, args []string) error {
	hasRecursive := false
	hasForce := false

	for _, arg := range args {
		if arg == "-rf" || arg == "-fr" {
			return fmt.Errorf("dangerous %s command with force/recursive flags", baseCmd)
		}

		if arg == "-r" || arg == "-R" || arg == "--recursive" {
			hasRecursive = true
		}
		if arg == "-f" || arg == "--force" {
			hasForce = true
		}
	}

	if hasRecursive && hasForce {
		return fmt.Errorf("dangerous %s command with force/recursive flags", baseCmd)
	}

	return nil
}

// validateDownloadCommand validates curl/wget segments for dangerous output paths
func (v *SecurityValidator) validateDownloadCommand(baseCmd string, args []string) error {
	for i, arg := range args {
		if arg == "-o" || arg == "--output" {
			if i+1 < len(args) {
				outputPath := args[i+1]
				if err := v.ValidatePath(outputPath); err != nil {
					return fmt.Errorf("dangerous output path for %s: %w", baseCmd, err)
				}
			}
		}
	}
	return nil
}
