// Package testutil provides common test utilities and helpers for the covergate test suite.
//
// The package includes three main components:
//
// ConfigBuilder: A fluent interface for building test configurations
//   - Create configurations with NewConfigBuilder()
//   - Set the suite command with WithCommand() or WithTestCommand()
//   - Point at a report with WithCoverageReport()
//   - Use DefaultTestConfig() for a basic working configuration
//
// OutputCapture: Utilities for capturing stdout and stderr
//   - Use CaptureOutput() to capture both stdout and stderr
//   - Use CaptureStdout() or CaptureStderr() for specific streams
//   - TestWriter provides a thread-safe io.Writer for tests
//
// Commands and fixtures: safe shell strings and synthesized test data
//   - SafeTestCommand(), FailingTestCommand() and SleepCommand() build
//     command strings that behave the same under sh -c and cmd /C
//   - CopyCommand() fakes a suite run that regenerates a coverage report
//   - CoberturaReport() and WriteCoberturaReport() synthesize reports
//   - WriteSourcePair() lays down a source file with a live test file
//
// Example usage:
//
//	// Create a test configuration
//	cfg := testutil.NewConfigBuilder().
//		WithTestCommand("pytest -q").
//		WithCoverageReport("cobertura", "coverage.xml").
//		Build()
//
//	// Capture command output
//	stdout, stderr, err := testutil.CaptureOutput(func() {
//		// Run code that prints to stdout/stderr
//	})
//
//	// Fake a suite that rewrites its report on every run
//	report := testutil.WriteCoberturaReport(t, reportPath, "calc.py", []int{1, 2}, []int{5})
//	cmd := testutil.CopyCommand(report, reportPath)
package testutil
