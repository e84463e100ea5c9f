//go:build unit

package analyze

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// stubAnalyzer scripts one result per call, in order.
type stubAnalyzer struct {
	indents     []int
	indentErrs  []error
	points      []InsertionPoints
	pointErrs   []error
	indentCalls int
	pointCalls  int
}

func (s *stubAnalyzer) AnalyzeIndentation(_ context.Context, _ Target) (int, error) {
	i := s.indentCalls
	s.indentCalls++
	var err error
	if i < len(s.indentErrs) {
		err = s.indentErrs[i]
	}
	indent := 0
	if i < len(s.indents) {
		indent = s.indents[i]
	}
	return indent, err
}

func (s *stubAnalyzer) AnalyzeInsertionPoints(_ context.Context, _ Target) (InsertionPoints, error) {
	i := s.pointCalls
	s.pointCalls++
	var err error
	if i < len(s.pointErrs) {
		err = s.pointErrs[i]
	}
	var points InsertionPoints
	if i < len(s.points) {
		points = s.points[i]
	}
	return points, err
}

func TestDiscover(t *testing.T) {
	stub := &stubAnalyzer{
		indents: []int{4},
		points:  []InsertionPoints{{TestInsertAfter: 10, ImportInsertAfter: 2, Framework: "pytest"}},
	}

	layout, err := Discover(context.Background(), stub, Target{Path: "test_app.py", Language: "python"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := TestLayout{HeaderIndent: 4, TestInsertAfter: 10, ImportInsertAfter: 2, Framework: "pytest"}
	if *layout != want {
		t.Errorf("layout = %+v, want %+v", *layout, want)
	}
	if stub.indentCalls != 1 || stub.pointCalls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", stub.indentCalls, stub.pointCalls)
	}
}

func TestDiscoverDefaultsFramework(t *testing.T) {
	stub := &stubAnalyzer{
		indents: []int{0},
		points:  []InsertionPoints{{TestInsertAfter: 5, ImportInsertAfter: 1}},
	}

	layout, err := Discover(context.Background(), stub, Target{Path: "calc_test.go", Language: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layout.Framework != FrameworkUnknown {
		t.Errorf("Framework = %q, want %q", layout.Framework, FrameworkUnknown)
	}
}

func TestDiscoverRetriesIndentation(t *testing.T) {
	stub := &stubAnalyzer{
		indents:    []int{0, 4},
		indentErrs: []error{errors.New("malformed response"), nil},
		points:     []InsertionPoints{{TestInsertAfter: 10, ImportInsertAfter: 2, Framework: "pytest"}},
	}

	layout, err := Discover(context.Background(), stub, Target{Path: "test_app.py"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layout.HeaderIndent != 4 {
		t.Errorf("HeaderIndent = %d, want 4", layout.HeaderIndent)
	}
	if stub.indentCalls != 2 {
		t.Errorf("indentation attempts = %d, want 2", stub.indentCalls)
	}
}

func TestDiscoverIndentationBudgetExhausted(t *testing.T) {
	stub := &stubAnalyzer{
		indentErrs: []error{errors.New("malformed response"), errors.New("malformed response")},
	}

	_, err := Discover(context.Background(), stub, Target{Path: "test_app.py"})
	if err == nil {
		t.Fatal("expected a discovery error")
	}
	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("error is %T, want *DiscoveryError", err)
	}
	if discoveryErr.Field != "test header indentation" {
		t.Errorf("Field = %q, want %q", discoveryErr.Field, "test header indentation")
	}
	if discoveryErr.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", discoveryErr.Attempts)
	}
	if stub.indentCalls != 2 {
		t.Errorf("indentation attempts = %d, want 2", stub.indentCalls)
	}
	if stub.pointCalls != 0 {
		t.Errorf("insertion point attempts = %d, want 0 after indentation failure", stub.pointCalls)
	}
}

func TestDiscoverInsertionPointBudgetExhausted(t *testing.T) {
	stub := &stubAnalyzer{
		indents:   []int{4},
		pointErrs: []error{errors.New("no viable line"), errors.New("no viable line")},
	}

	_, err := Discover(context.Background(), stub, Target{Path: "test_app.py"})
	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("error is %T, want *DiscoveryError", err)
	}
	if discoveryErr.Field != "test insertion points" {
		t.Errorf("Field = %q, want %q", discoveryErr.Field, "test insertion points")
	}
	if stub.pointCalls != 2 {
		t.Errorf("insertion point attempts = %d, want 2", stub.pointCalls)
	}
}

func TestDiscoverRejectsNegativeValues(t *testing.T) {
	stub := &stubAnalyzer{
		indents: []int{-1, -1},
	}

	_, err := Discover(context.Background(), stub, Target{Path: "test_app.py"})
	if !IsDiscoveryError(err) {
		t.Fatalf("error = %v, want a discovery error for negative indentation", err)
	}

	stub = &stubAnalyzer{
		indents: []int{0},
		points: []InsertionPoints{
			{TestInsertAfter: -3, ImportInsertAfter: 1},
			{TestInsertAfter: -3, ImportInsertAfter: 1},
		},
	}
	_, err = Discover(context.Background(), stub, Target{Path: "test_app.py"})
	if !IsDiscoveryError(err) {
		t.Fatalf("error = %v, want a discovery error for a negative insertion line", err)
	}
}

func TestDiscoverStopsRetryingOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubAnalyzer{
		indentErrs: []error{ctx.Err(), ctx.Err()},
	}

	_, err := Discover(ctx, stub, Target{Path: "test_app.py"})
	if !IsDiscoveryError(err) {
		t.Fatalf("error = %v, want a discovery error", err)
	}
	if stub.indentCalls != 1 {
		t.Errorf("indentation attempts = %d, want 1 with a canceled context", stub.indentCalls)
	}
}

func TestIsDiscoveryError(t *testing.T) {
	base := &DiscoveryError{Field: "test header indentation", Attempts: 2, Cause: errors.New("boom")}
	if !IsDiscoveryError(base) {
		t.Error("expected true for a DiscoveryError")
	}
	if !IsDiscoveryError(fmt.Errorf("session init: %w", base)) {
		t.Error("expected true for a wrapped DiscoveryError")
	}
	if IsDiscoveryError(errors.New("other")) {
		t.Error("expected false for an unrelated error")
	}
	if IsDiscoveryError(nil) {
		t.Error("expected false for nil")
	}
}

func TestDiscoverWithLineScanner(t *testing.T) {
	path := writeTestFile(t, "test_app.py",
		"import pytest\n\ndef test_add():\n    assert True\n")

	layout, err := Discover(context.Background(), NewLineScanner(), Target{Path: path, Language: "python"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layout.HeaderIndent != 0 {
		t.Errorf("HeaderIndent = %d, want 0", layout.HeaderIndent)
	}
	if layout.TestInsertAfter != 4 {
		t.Errorf("TestInsertAfter = %d, want 4", layout.TestInsertAfter)
	}
	if layout.ImportInsertAfter != 1 {
		t.Errorf("ImportInsertAfter = %d, want 1", layout.ImportInsertAfter)
	}
	if layout.Framework != "pytest" {
		t.Errorf("Framework = %q, want %q", layout.Framework, "pytest")
	}
}
