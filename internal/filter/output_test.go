package filter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bebsworthy/covergate/pkg/config"
)

func TestNewOutputFilter(t *testing.T) {
	tests := []struct {
		name    string
		rules   *config.FilterConfig
		wantErr bool
	}{
		{
			name:    "nil rules",
			rules:   nil,
			wantErr: true,
		},
		{
			name: "valid rules",
			rules: &config.FilterConfig{
				ErrorPatterns: []*config.RegexPattern{
					{Pattern: "error", Flags: "i"},
				},
				MaxOutput: 100,
			},
			wantErr: false,
		},
		{
			name: "invalid regex pattern",
			rules: &config.FilterConfig{
				ErrorPatterns: []*config.RegexPattern{
					{Pattern: "[invalid"},
				},
			},
			wantErr: true,
		},
		{
			name: "invalid include pattern",
			rules: &config.FilterConfig{
				ErrorPatterns: []*config.RegexPattern{
					{Pattern: "error"},
				},
				IncludePatterns: []*config.RegexPattern{
					{Pattern: "(unclosed"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOutputFilter(tt.rules)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewOutputFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOutputFilter_Filter(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "error", Flags: "i"},
			{Pattern: `^\s*\d+:\d+`},
		},
		ContextLines: 2,
		MaxOutput:    50,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	tests := []struct {
		name      string
		input     string
		wantError bool
		wantLines int
	}{
		{
			name: "simple error",
			input: `line 1
line 2
ERROR: something went wrong
line 4
line 5`,
			wantError: true,
			wantLines: 5, // with context
		},
		{
			name: "line number format",
			input: `file.go:10:5: undefined variable
file.go:20:3: syntax error`,
			wantError: true,
			wantLines: 2,
		},
		{
			name:      "no matches",
			input:     "just some normal output\nnothing special here",
			wantError: false,
			wantLines: 2, // everything kept when nothing matches
		},
		{
			name: "multiple errors with overlapping context",
			input: `start
before error 1
ERROR 1
after error 1
middle
before error 2
ERROR 2
after error 2
end`,
			wantError: true,
			wantLines: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filter.Filter(tt.input)
			if result.HasErrors != tt.wantError {
				t.Errorf("Filter() HasErrors = %v, want %v", result.HasErrors, tt.wantError)
			}
			if len(result.Lines) != tt.wantLines {
				t.Errorf("Filter() got %d lines, want %d:\n%s", len(result.Lines), tt.wantLines, strings.Join(result.Lines, "\n"))
			}
		})
	}
}

func TestOutputFilter_GapSeparator(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "FAILED"},
		},
		ContextLines: 1,
		MaxOutput:    100,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	input := `collecting tests
test_a PASSED
test_b FAILED
assertion detail
noise 1
noise 2
noise 3
test_c FAILED
more detail`

	result := filter.Filter(input)

	want := []string{
		"test_a PASSED",
		"test_b FAILED",
		"assertion detail",
		"...",
		"noise 3",
		"test_c FAILED",
		"more detail",
	}

	if len(result.Lines) != len(want) {
		t.Fatalf("Filter() got %d lines, want %d:\n%s", len(result.Lines), len(want), strings.Join(result.Lines, "\n"))
	}
	for i, line := range want {
		if result.Lines[i] != line {
			t.Errorf("Filter() line %d = %q, want %q", i, result.Lines[i], line)
		}
	}
}

func TestOutputFilter_IncludePatterns(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "FAILED"},
		},
		IncludePatterns: []*config.RegexPattern{
			{Pattern: `^====`},
		},
		ContextLines: 0,
		MaxOutput:    100,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	input := `==== test session starts ====
test_a PASSED
test_b FAILED
==== 1 failed, 1 passed ====`

	result := filter.Filter(input)

	if !result.HasErrors {
		t.Error("Filter() should report errors from the FAILED line")
	}
	if len(result.Lines) != 4 {
		t.Errorf("Filter() got %d lines, want 4 (two headers, one failure, one gap)", len(result.Lines))
	}

	// Include-only matches must not count as errors
	noError, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "FAILED"},
		},
		IncludePatterns: []*config.RegexPattern{
			{Pattern: `^====`},
		},
		MaxOutput: 100,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}
	result = noError.Filter("==== test session starts ====\nall good")
	if result.HasErrors {
		t.Error("Filter() include pattern matches should not set HasErrors")
	}
}

func TestOutputFilter_FilterBoth(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "error", Flags: "i"},
		},
		MaxOutput: 10,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	stdout := "stdout line 1\nstdout line 2"
	stderr := "stderr ERROR line 1\nstderr line 2"

	result := filter.FilterBoth(stdout, stderr)

	if !result.HasErrors {
		t.Error("FilterBoth() should detect errors in stderr")
	}

	outputStr := strings.Join(result.Lines, "\n")
	if !strings.Contains(outputStr, "=== STDERR ===") {
		t.Error("FilterBoth() should include stderr section")
	}
	if !strings.Contains(outputStr, "=== STDOUT ===") {
		t.Error("FilterBoth() should include stdout section")
	}
	if strings.Index(outputStr, "STDERR") > strings.Index(outputStr, "STDOUT") {
		t.Error("FilterBoth() should place stderr before stdout")
	}
}

func TestOutputFilter_Excerpt(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "FAILED"},
		},
		ContextLines: 1,
		MaxOutput:    20,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	// Single stream: no section markers
	excerpt := filter.Excerpt("test_x FAILED\nstack frame", "")
	if excerpt != "test_x FAILED\nstack frame" {
		t.Errorf("Excerpt() = %q, want bare failure lines", excerpt)
	}

	// Both streams: stderr section first
	excerpt = filter.Excerpt("test_x FAILED", "Traceback FAILED here")
	if !strings.HasPrefix(excerpt, "=== STDERR ===") {
		t.Errorf("Excerpt() = %q, want stderr section first", excerpt)
	}
	if !strings.Contains(excerpt, "=== STDOUT ===") {
		t.Errorf("Excerpt() = %q, want stdout section marker", excerpt)
	}

	if got := filter.Excerpt("", ""); got != "" {
		t.Errorf("Excerpt() on empty output = %q, want empty", got)
	}
}

func TestOutputFilter_TruncatePreservesErrors(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "ERROR"},
		},
		ContextLines: 1,
		MaxOutput:    6,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	// Every line survives extraction (overlapping context), so MaxOutput
	// forces a real truncation pass.
	input := `line 0
ERROR: one
line 2
line 3
ERROR: two
line 5
line 6
ERROR: three
line 8
line 9
ERROR: four
line 11`

	result := filter.Filter(input)

	if !result.Truncated {
		t.Fatal("expected truncated output")
	}
	if len(result.Lines) != 6 {
		t.Errorf("should respect MaxOutput, got %d lines:\n%s", len(result.Lines), strings.Join(result.Lines, "\n"))
	}

	outputStr := strings.Join(result.Lines, "\n")
	for _, want := range []string{"ERROR: one", "ERROR: two", "ERROR: three", "ERROR: four"} {
		if !strings.Contains(outputStr, want) {
			t.Errorf("truncation dropped error line %q", want)
		}
	}
	if !strings.Contains(outputStr, "preserved 4 error lines") {
		t.Errorf("truncation marker missing error count:\n%s", outputStr)
	}
}

func TestOutputFilter_LargeOutput(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "ERROR"},
		},
		ContextLines: 1,
		MaxOutput:    50,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	var lines []string
	for i := 0; i < 200; i++ {
		if i%10 == 0 {
			lines = append(lines, fmt.Sprintf("ERROR: error at line %d", i))
		} else {
			lines = append(lines, fmt.Sprintf("normal line %d", i))
		}
	}

	result := filter.Filter(strings.Join(lines, "\n"))

	if !result.HasErrors {
		t.Error("should detect errors in large output")
	}
	if !result.Truncated {
		t.Error("should mark output as truncated")
	}
	if len(result.Lines) > 51 { // allow for the truncation marker
		t.Errorf("should limit output to MaxOutput, got %d lines", len(result.Lines))
	}
	if result.TotalLines != 200 {
		t.Errorf("TotalLines = %d, want 200", result.TotalLines)
	}

	outputStr := strings.Join(result.Lines, "\n")
	if !strings.Contains(outputStr, "truncated") {
		t.Error("should include truncation indicator")
	}
}

func TestOutputFilter_NoMatches(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "ERROR"},
		},
		MaxOutput: 50,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	input := "some output\nwith no errors\njust normal stuff"
	result := filter.Filter(input)

	if result.HasErrors {
		t.Error("should not have errors when no patterns match")
	}
	if len(result.Lines) != 3 {
		t.Errorf("expected 3 lines, got %d", len(result.Lines))
	}
}

func TestOutputFilter_NoMatchesSampled(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "ERROR"},
		},
		MaxOutput: 15,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}

	result := filter.Filter(strings.Join(lines, "\n"))

	if len(result.Lines) != 10 {
		t.Errorf("expected 10 sampled lines when nothing matches, got %d", len(result.Lines))
	}
	if result.TotalLines != 40 {
		t.Errorf("TotalLines = %d, want 40", result.TotalLines)
	}
}

func TestOutputFilter_ContextOverlap(t *testing.T) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "ERROR"},
		},
		ContextLines: 3,
		MaxOutput:    100,
	})
	if err != nil {
		t.Fatalf("NewOutputFilter() error = %v", err)
	}

	input := `line 1
line 2
line 3
ERROR 1
line 5
ERROR 2
line 7
line 8
line 9`

	result := filter.Filter(input)

	if len(result.Lines) != 9 {
		t.Errorf("expected 9 lines with overlapping context, got %d", len(result.Lines))
	}
}

func BenchmarkOutputFilter_Filter(b *testing.B) {
	filter, err := NewOutputFilter(&config.FilterConfig{
		ErrorPatterns: []*config.RegexPattern{
			{Pattern: "error", Flags: "i"},
			{Pattern: "FAILED"},
			{Pattern: `^\s*\d+:\d+`},
		},
		ContextLines: 2,
		MaxOutput:    100,
	})
	if err != nil {
		b.Fatalf("NewOutputFilter() error = %v", err)
	}

	var lines []string
	for i := 0; i < 1000; i++ {
		switch i % 10 {
		case 0:
			lines = append(lines, "test_case FAILED")
		case 5:
			lines = append(lines, fmt.Sprintf("src/app.py:%d:4: error: bad type", i))
		default:
			lines = append(lines, fmt.Sprintf("collected item %d", i))
		}
	}
	input := strings.Join(lines, "\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = filter.Filter(input)
	}
}
