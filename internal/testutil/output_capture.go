package testutil

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// CaptureOutput captures stdout and stderr written while fn runs. Not safe
// for parallel tests, since it swaps the process-wide streams.
func CaptureOutput(fn func()) (stdout, stderr string, err error) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return "", "", err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return "", "", err
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	stdoutChan := drain(stdoutR)
	stderrChan := drain(stderrR)

	fn()

	_ = stdoutW.Close() //nolint:errcheck
	_ = stderrW.Close() //nolint:errcheck

	os.Stdout = oldStdout
	os.Stderr = oldStderr

	return <-stdoutChan, <-stderrChan, nil
}

// drain reads a pipe to EOF in the background and delivers the content.
func drain(r *os.File) <-chan string {
	ch := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r) //nolint:errcheck
		ch <- buf.String()
	}()
	return ch
}

// CaptureStdout is a convenience function that captures only stdout.
func CaptureStdout(fn func()) (string, error) {
	stdout, _, err := CaptureOutput(fn)
	return stdout, err
}

// CaptureStderr is a convenience function that captures only stderr.
func CaptureStderr(fn func()) (string, error) {
	_, stderr, err := CaptureOutput(fn)
	return stderr, err
}

// TestWriter provides a thread-safe io.Writer for tests.
type TestWriter struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// NewTestWriter creates a new TestWriter.
func NewTestWriter() *TestWriter {
	return &TestWriter{}
}

// Write implements io.Writer.
func (tw *TestWriter) Write(p []byte) (n int, err error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.buf.Write(p)
}

// String returns the written content.
func (tw *TestWriter) String() string {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.buf.String()
}

// Reset clears the buffer.
func (tw *TestWriter) Reset() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.buf.Reset()
}

// Bytes returns the written content as bytes.
func (tw *TestWriter) Bytes() []byte {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.buf.Bytes()
}
