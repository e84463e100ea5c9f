// Package security provides resource limiting functionality
package security

import (
	"io"
	"sync/atomic"
	"time"
)

// ResourceLimits defines limits for resource consumption
type ResourceLimits struct {
	// MaxOutputSize is the maximum captured output size in bytes
	MaxOutputSize int64
	// MaxMemory is the maximum allowed memory usage in bytes
	MaxMemory int64
	// MaxCPUTime is the maximum allowed CPU time
	MaxCPUTime time.Duration
}

// DefaultLimits returns default resource limits
func DefaultLimits() *ResourceLimits {
	return &ResourceLimits{
		MaxOutputSize: 10 * 1024 * 1024,   // 10MB
		MaxMemory:     1024 * 1024 * 1024, // 1GB
		MaxCPUTime:    5 * time.Minute,
	}
}

// StrictLimits returns strict resource limits
func StrictLimits() *ResourceLimits {
	return &ResourceLimits{
		MaxOutputSize: 1 * 1024 * 1024,   // 1MB
		MaxMemory:     256 * 1024 * 1024, // 256MB
		MaxCPUTime:    1 * time.Minute,
	}
}

// LimitedWriter wraps an io.Writer to enforce a capture size limit. Writes
// never fail: bytes past the limit are discarded so the producing process
// can keep draining its pipe instead of blocking on a stalled reader.
type LimitedWriter struct {
	writer   io.Writer
	limit    int64
	written  int64
	exceeded atomic.Bool
}

// NewLimitedWriter creates a new limited writer
func NewLimitedWriter(w io.Writer, limit int64) *LimitedWriter {
	return &LimitedWriter{
		writer: w,
		limit:  limit,
	}
}

// Write implements io.Writer, capturing up to the limit and consuming the rest
func (lw *LimitedWriter) Write(p []byte) (int, error) {
	if lw.exceeded.Load() {
		return len(p), nil
	}

	newTotal := atomic.AddInt64(&lw.written, int64(len(p)))
	if newTotal > lw.limit {
		lw.exceeded.Store(true)
		canWrite := lw.limit - (newTotal - int64(len(p)))
		if canWrite > 0 {
			if _, err := lw.writer.Write(p[:canWrite]); err != nil {
				return 0, err
			}
		}
		return len(p), nil
	}

	n, err := lw.writer.Write(p)
	if err != nil {
		return n, err
	}
	return len(p), nil
}

// Written returns the number of bytes accepted, including discarded ones
func (lw *LimitedWriter) Written() int64 {
	return atomic.LoadInt64(&lw.written)
}

// Exceeded returns whether the limit has been exceeded
func (lw *LimitedWriter) Exceeded() bool {
	return lw.exceeded.Load()
}
