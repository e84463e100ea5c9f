//go:build unit

package security

import (
	"fmt"
	"strings"
	"testing"
)

func TestSanitizeEnvironment(t *testing.T) {
	tests := []struct {
		name         string
		env          []string
		allowInherit bool
		wantContains []string
		wantExclude  []string
	}{
		{
			name:         "minimal environment",
			env:          nil,
			allowInherit: false,
			wantContains: []string{}, // PATH is only included if it exists in parent environment
			wantExclude:  []string{"SECRET", "TOKEN", "PASSWORD"},
		},
		{
			name: "filter sensitive variables",
			env: []string{
				"PATH=/usr/bin:/bin",
				"USER=test",
				"AWS_SECRET_ACCESS_KEY=secret123",
				"GITHUB_TOKEN=ghp_123",
				"HOME=/home/test",
			},
			allowInherit: true,
			wantContains: []string{"PATH=", "USER=", "HOME="},
			wantExclude:  []string{"AWS_SECRET_ACCESS_KEY", "GITHUB_TOKEN"},
		},
		{
			name: "filter variables with sensitive patterns",
			env: []string{
				"MY_SECRET_KEY=value",
				"DB_PASSWORD=pass123",
				"API_TOKEN=token123",
				"NORMAL_VAR=value",
			},
			allowInherit: true,
			wantContains: []string{"NORMAL_VAR="},
			wantExclude:  []string{"SECRET", "PASSWORD", "TOKEN"},
		},
		{
			name: "filter dangerous system variables",
			env: []string{
				"PATH=/usr/bin",
				"LD_PRELOAD=/evil/lib.so",
				"DYLD_INSERT_LIBRARIES=/evil/lib.dylib",
				"BASH_ENV=/evil/script.sh",
			},
			allowInherit: true,
			wantContains: []string{"PATH="},
			wantExclude:  []string{"LD_PRELOAD", "DYLD_INSERT_LIBRARIES", "BASH_ENV"},
		},
		{
			name: "filter command injection attempts",
			env: []string{
				"NORMAL=value",
				"INJECTED=$(whoami)",
				"BACKTICK=`id`",
				"PIPE=value|cat",
				"SEMICOLON=value;ls",
			},
			allowInherit: true,
			wantContains: []string{"NORMAL="},
			wantExclude:  []string{"INJECTED", "BACKTICK", "PIPE", "SEMICOLON"},
		},
		{
			name: "keep test runner variables",
			env: []string{
				"VIRTUAL_ENV=/home/test/.venv",
				"PYTHONPATH=/home/test/project/src",
				"GOCACHE=/home/test/.cache/go-build",
				"NPM_TOKEN=npm_123",
			},
			allowInherit: true,
			wantContains: []string{"VIRTUAL_ENV=", "PYTHONPATH=", "GOCACHE="},
			wantExclude:  []string{"NPM_TOKEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeEnvironment(tt.env, tt.allowInherit)

			for _, want := range tt.wantContains {
				found := false
				for _, env := range result {
					if strings.Contains(env, want) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("SanitizeEnvironment() missing expected variable containing %q", want)
				}
			}

			for _, exclude := range tt.wantExclude {
				for _, env := range result {
					if strings.Contains(env, exclude) {
						t.Errorf("SanitizeEnvironment() included excluded pattern %q in %q", exclude, env)
					}
				}
			}
		})
	}
}

func TestCreateMinimalEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "test")
	t.Setenv("GITHUB_TOKEN", "ghp_secret")
	t.Setenv("VIRTUAL_ENV", "/home/test/.venv")

	result := SanitizeEnvironment(nil, false)

	foundNodeEnv := false
	foundVirtualEnv := false
	for _, env := range result {
		if strings.HasPrefix(env, "NODE_ENV=") {
			foundNodeEnv = true
		}
		if strings.HasPrefix(env, "VIRTUAL_ENV=") {
			foundVirtualEnv = true
		}
		if strings.HasPrefix(env, "GITHUB_TOKEN=") {
			t.Errorf("minimal environment leaked GITHUB_TOKEN: %q", env)
		}
	}

	if !foundNodeEnv {
		t.Error("minimal environment missing NODE_ENV")
	}
	if !foundVirtualEnv {
		t.Error("minimal environment missing VIRTUAL_ENV")
	}
}

func TestValidateEnvValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{
			name:    "normal value",
			key:     "NODE_ENV",
			value:   "production",
			wantErr: false,
		},
		{
			name:    "null byte",
			key:     "VAR",
			value:   "value\x00injected",
			wantErr: true,
		},
		{
			name:    "command substitution",
			key:     "VAR",
			value:   "$(whoami)",
			wantErr: true,
		},
		{
			name:    "backtick substitution",
			key:     "VAR",
			value:   "`id`",
			wantErr: true,
		},
		{
			name:    "semicolon chaining",
			key:     "VAR",
			value:   "value;rm file",
			wantErr: true,
		},
		{
			name:    "embedded newline",
			key:     "VAR",
			value:   "line1\nline2",
			wantErr: true,
		},
		{
			name:    "valid PATH",
			key:     "PATH",
			value:   "/usr/bin",
			wantErr: false,
		},
		{
			name:    "PATH with parent reference",
			key:     "PATH",
			value:   "/usr/bin/../sbin",
			wantErr: true,
		},
		{
			name:    "PATH with relative entry",
			key:     "PATH",
			value:   "./bin",
			wantErr: true,
		},
		{
			name:    "PATH with home expansion",
			key:     "PATH",
			value:   "~/bin",
			wantErr: true,
		},
		{
			name:    "PYTHONPATH gets PATH validation",
			key:     "PYTHONPATH",
			value:   "../outside",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnvValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEnvValue(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestMergeEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		base    []string
		custom  []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:   "merge distinct variables",
			base:   []string{"PATH=/usr/bin", "HOME=/home/test"},
			custom: []string{"NODE_ENV=test"},
			want: map[string]string{
				"PATH":     "/usr/bin",
				"HOME":     "/home/test",
				"NODE_ENV": "test",
			},
		},
		{
			name:   "custom overrides base",
			base:   []string{"NODE_ENV=production"},
			custom: []string{"NODE_ENV=test"},
			want: map[string]string{
				"NODE_ENV": "test",
			},
		},
		{
			name:    "invalid format",
			base:    []string{"PATH=/usr/bin"},
			custom:  []string{"MALFORMED"},
			wantErr: true,
		},
		{
			name:    "dangerous custom value",
			base:    []string{"PATH=/usr/bin"},
			custom:  []string{"EVIL=$(whoami)"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MergeEnvironment(tt.base, tt.custom)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MergeEnvironment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			for key, value := range tt.want {
				expected := fmt.Sprintf("%s=%s", key, value)
				found := false
				for _, env := range result {
					if env == expected {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("MergeEnvironment() missing %q in %v", expected, result)
				}
			}
		})
	}
}

func TestContainsSensitivePattern(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"MY_PASSWORD", true},
		{"password_hash", true},
		{"API_SECRET", true},
		{"AUTH_HEADER", true},
		{"SSH_AUTH_SOCK", true},
		{"PRIVATE_DATA", true},
		{"ACCESS_LOG", true},
		{"NODE_ENV", false},
		{"PATH", false},
		{"GOCACHE", false},
		{"CI", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := containsSensitivePattern(tt.key); got != tt.want {
				t.Errorf("containsSensitivePattern(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
