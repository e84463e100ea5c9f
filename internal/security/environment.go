// Package security provides environment variable sanitization
package security

import (
	"fmt"
	"os"
	"strings"
)

// strippedEnv names variables never forwarded to test subprocesses, either
// because they carry credentials or because they change how the loader or
// shell behaves.
var strippedEnv = setOf(
	// Credentials and secrets.
	"AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
	"GITHUB_TOKEN", "GITLAB_TOKEN", "NPM_TOKEN",
	"DOCKER_PASSWORD", "DATABASE_PASSWORD", "DATABASE_URL",
	"DB_PASSWORD", "DB_URL", "MONGODB_URI",
	"MYSQL_ROOT_PASSWORD", "REDIS_PASSWORD",
	"API_KEY", "API_SECRET", "SECRET_KEY",
	"PRIVATE_KEY", "SSH_PRIVATE_KEY", "GPG_PRIVATE_KEY",

	// Loader and shell hooks.
	"LD_PRELOAD", "LD_LIBRARY_PATH",
	"DYLD_INSERT_LIBRARIES", "DYLD_LIBRARY_PATH",
	"BASH_ENV", "ENV", "SHELL", "ZDOTDIR",
)

// forwardedEnv lists variables worth keeping when building a minimal
// environment. Test runners and coverage tooling rely on several of these
// to locate their interpreters and caches.
var forwardedEnv = []string{
	// Basic system info.
	"HOME", "USER", "LANG", "LC_ALL", "TZ",
	"TMPDIR", "TEMP", "TMP",

	// Toolchain locations.
	"PATH", "NODE_ENV",
	"GOPATH", "GOROOT", "GOCACHE",
	"CARGO_HOME", "RUSTUP_HOME",
	"PYTHON_HOME", "PYTHONPATH", "VIRTUAL_ENV",
	"JAVA_HOME", "GRADLE_USER_HOME",

	// CI indicators.
	"CI", "CONTINUOUS_INTEGRATION",
	"GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_HOME",
	"TRAVIS", "CIRCLECI",

	// Terminal settings.
	"TERM", "COLORTERM", "COLUMNS", "LINES",
}

// SanitizeEnvironment filters environment variables before they reach a
// test subprocess. With allowInherit it strips credentials and injection
// vectors from the given environment; without it it builds a minimal
// environment from the forward list.
func SanitizeEnvironment(env []string, allowInherit bool) []string {
	if !allowInherit {
		return minimalEnvironment()
	}

	kept := make([]string, 0, len(env))
	for _, entry := range env {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !keepEnvVar(key, value) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

func keepEnvVar(key, value string) bool {
	if strippedEnv[key] || containsSensitivePattern(key) {
		return false
	}
	return validateEnvValue(key, value) == nil
}

func minimalEnvironment() []string {
	env := make([]string, 0, len(forwardedEnv))
	for _, key := range forwardedEnv {
		value := os.Getenv(key)
		if value == "" || validateEnvValue(key, value) != nil {
			continue
		}
		env = append(env, key+"="+value)
	}
	return env
}

// containsSensitivePattern reports whether the variable name suggests a
// credential.
func containsSensitivePattern(key string) bool {
	upper := strings.ToUpper(key)
	for _, fragment := range []string{
		"PASSWORD", "SECRET", "TOKEN", "KEY",
		"AUTH", "CREDENTIAL", "PRIVATE", "ACCESS",
	} {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}

// injectionMarkers are substrings that turn an environment value into a
// shell injection vector once a command line interpolates it.
var injectionMarkers = []string{
	"$(", "${", "`",
	"&&", "||", ";",
	"|", ">", "<",
	"\n", "\r",
}

// validateEnvValue rejects values that could smuggle commands or hijack
// binary resolution. Keys ending in PATH get list validation on top.
func validateEnvValue(key, value string) error {
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("environment variable %s contains null byte", key)
	}

	if strings.HasSuffix(key, "PATH") {
		if err := checkPathList(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	for _, marker := range injectionMarkers {
		if strings.Contains(value, marker) {
			return fmt.Errorf("environment variable %s contains dangerous pattern: %s", key, marker)
		}
	}
	return nil
}

// checkPathList vets every entry of a PATH-style list.
func checkPathList(value string) error {
	for _, dir := range strings.Split(value, string(os.PathListSeparator)) {
		switch {
		case dir == "":
		case strings.Contains(dir, ".."):
			return fmt.Errorf("parent directory reference in PATH: %s", dir)
		case strings.HasPrefix(dir, "."):
			return fmt.Errorf("relative path in PATH variable: %s", dir)
		case strings.Contains(dir, "~"):
			return fmt.Errorf("home directory expansion in PATH: %s", dir)
		}
	}
	return nil
}

// MergeEnvironment overlays custom KEY=VALUE pairs on a base environment.
// Base entries are taken as-is; custom entries come from configuration and
// must parse and pass value validation.
func MergeEnvironment(base []string, custom []string) ([]string, error) {
	merged := make(map[string]string, len(base)+len(custom))
	for _, entry := range base {
		if key, value, ok := strings.Cut(entry, "="); ok {
			merged[key] = value
		}
	}

	for _, entry := range custom {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid environment variable format: %s", entry)
		}
		if err := validateEnvValue(key, value); err != nil {
			return nil, fmt.Errorf("invalid custom environment variable: %w", err)
		}
		merged[key] = value
	}

	result := make([]string, 0, len(merged))
	for key, value := range merged {
		result = append(result, key+"="+value)
	}
	return result, nil
}

func setOf(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
