//go:build unit

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bebsworthy/covergate/internal/ai"
	"github.com/bebsworthy/covergate/internal/testutil"
)

func writeConfigFile(t *testing.T, command string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".covergate.json")
	err := testutil.NewConfigBuilder().
		WithTestCommand(command).
		WithCoverageReport("cobertura", "coverage.xml").
		WriteToFile(path)
	if err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	return path
}

func TestRunValidateConfig(t *testing.T) {
	defer func() { configPath = "" }()

	t.Run("valid configuration", func(t *testing.T) {
		configPath = writeConfigFile(t, "echo test")

		var runErr error
		out, err := testutil.CaptureStdout(func() {
			runErr = runValidateConfig()
		})
		if err != nil {
			t.Fatalf("CaptureStdout() error = %v", err)
		}
		if runErr != nil {
			t.Fatalf("runValidateConfig() error = %v", runErr)
		}
		if !strings.Contains(out, "Configuration is valid") {
			t.Errorf("output %q should confirm the configuration", out)
		}
		if !strings.Contains(out, "Test Command: echo test") {
			t.Errorf("output %q should summarize the test command", out)
		}
	})

	t.Run("unknown command program", func(t *testing.T) {
		configPath = writeConfigFile(t, "covergate-no-such-tool run")

		var runErr error
		errOut, err := testutil.CaptureStderr(func() {
			runErr = runValidateConfig()
		})
		if err != nil {
			t.Fatalf("CaptureStderr() error = %v", err)
		}
		if runErr == nil {
			t.Fatal("runValidateConfig() should fail for a missing program")
		}
		if !strings.Contains(errOut, "Configuration validation failed") {
			t.Errorf("stderr %q should report the failure", errOut)
		}
		if !strings.Contains(errOut, "not found in PATH") {
			t.Errorf("stderr %q should name the missing program", errOut)
		}
		if !strings.Contains(errOut, "Suggestions") {
			t.Errorf("stderr %q should offer fixes", errOut)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		configPath = filepath.Join(t.TempDir(), "absent.json")

		var runErr error
		_, err := testutil.CaptureStdout(func() {
			runErr = runValidateConfig()
		})
		if err != nil {
			t.Fatalf("CaptureStdout() error = %v", err)
		}
		if runErr == nil || !strings.Contains(runErr.Error(), "failed to load configuration") {
			t.Errorf("runValidateConfig() error = %v, want load failure", runErr)
		}
	})
}

func TestPrintConfigSummary(t *testing.T) {
	cfg := testutil.NewConfigBuilder().
		WithProjectType("python").
		WithTestCommand("pytest --cov=src").
		WithCoverageReport("cobertura", "coverage.xml").
		WithDesiredCoverage(80).
		WithTargetFiles("src/calc.py", "tests/test_calc.py").
		WithPathCommand("services/**", "pytest").
		Build()

	out, err := testutil.CaptureStdout(func() {
		printConfigSummary(cfg)
	})
	if err != nil {
		t.Fatalf("CaptureStdout() error = %v", err)
	}

	for _, want := range []string{
		"Version: 1.0",
		"Project Type: python",
		"Test Command: pytest --cov=src",
		"Coverage Report: coverage.xml (cobertura)",
		"Desired Coverage: 80.0%",
		"Targets: 1 configured",
		"Monorepo Paths: 1 configured",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary %q should contain %q", out, want)
		}
	}
}

func TestConfirmOverwriteWithoutFile(t *testing.T) {
	// No existing file means no prompt and an immediate go-ahead.
	proceed, err := confirmOverwrite(filepath.Join(t.TempDir(), ".covergate.json"))
	if err != nil {
		t.Fatalf("confirmOverwrite() error = %v", err)
	}
	if !proceed {
		t.Error("confirmOverwrite() should proceed when the file does not exist")
	}
}

func TestSaveConfiguration(t *testing.T) {
	cfg := testutil.NewConfigBuilder().
		WithTestCommand("pytest --cov=src").
		WithCoverageReport("cobertura", "coverage.xml").
		Build()
	path := filepath.Join(t.TempDir(), "covergate.json")

	if err := saveConfiguration(cfg, path); err != nil {
		t.Fatalf("saveConfiguration() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"version"`) {
		t.Errorf("saved configuration %q should serialize the version", data)
	}
}

func TestHandleAIError(t *testing.T) {
	t.Run("error with recovery", func(t *testing.T) {
		recovery := ai.NewErrorWithRecovery(ai.ErrTypeNoTools, "no AI tools found", nil,
			[]string{"Install Claude CLI"})

		var handled error
		errOut, err := testutil.CaptureStderr(func() {
			handled = handleAIError(recovery)
		})
		if err != nil {
			t.Fatalf("CaptureStderr() error = %v", err)
		}
		if handled == nil || handled.Error() != "AI configuration failed" {
			t.Errorf("handleAIError() = %v, want plain failure", handled)
		}
		if !strings.Contains(errOut, "no AI tools found") {
			t.Errorf("stderr %q should carry the message", errOut)
		}
		if !strings.Contains(errOut, "Install Claude CLI") {
			t.Errorf("stderr %q should carry the suggestions", errOut)
		}
		if !strings.Contains(errOut, "covergate config") {
			t.Errorf("stderr %q should point at the manual wizard", errOut)
		}
	})

	t.Run("plain ai error", func(t *testing.T) {
		aiErr := ai.NewAIError(ai.ErrTypeResponseInvalid, "response was not valid JSON", nil)

		var handled error
		errOut, err := testutil.CaptureStderr(func() {
			handled = handleAIError(aiErr)
		})
		if err != nil {
			t.Fatalf("CaptureStderr() error = %v", err)
		}
		if handled == nil || handled.Error() != "AI configuration failed" {
			t.Errorf("handleAIError() = %v, want plain failure", handled)
		}
		if !strings.Contains(errOut, "response was not valid JSON") {
			t.Errorf("stderr %q should carry the message", errOut)
		}
	})

	t.Run("unclassified error", func(t *testing.T) {
		handled := handleAIError(fmt.Errorf("boom"))
		if handled == nil || !strings.Contains(handled.Error(), "boom") {
			t.Errorf("handleAIError() = %v, want wrapped cause", handled)
		}
	})
}
