// Package executor provides process execution for covergate validation runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// ErrOverlappingTargets indicates two group tasks would race on the same
// working directory or coverage report.
var ErrOverlappingTargets = errors.New("overlapping session targets")

// GroupTask is one independently validated target. WorkingDir and ReportPath
// declare the resources the task mutates so the group can refuse unsafe
// combinations up front.
type GroupTask struct {
	// Unique identifier for this task
	ID string
	// Directory the test command runs in
	WorkingDir string
	// Coverage report the task reads and overwrites
	ReportPath string
	// Run performs the validation work for this target
	Run func(ctx context.Context) error
}

// GroupResult represents the outcome of a group run
type GroupResult struct {
	// Per-task error keyed by identifier; nil entry means success
	Errors map[string]error
	// Order of submission (for stable output)
	Order []string
	// Total wall-clock time for the group
	TotalTime time.Duration
	// Whether any task failed
	HasFailures bool
	// Count of successful tasks
	SuccessCount int
	// Count of failed tasks
	FailureCount int
}

// ProgressCallback is called to report progress during group execution
type ProgressCallback func(completed int, total int, currentID string)

// SessionGroup runs independent validation sessions concurrently. Tasks
// sharing a working directory or report path are rejected before anything
// runs: a test command rewrites its coverage report in place, so two
// sessions over the same report would corrupt each other's measurements.
type SessionGroup struct {
	maxParallel int
}

// NewSessionGroup creates a session group with the given concurrency cap
func NewSessionGroup(maxParallel int) *SessionGroup {
	if maxParallel <= 0 {
		maxParallel = 4 // Default parallelism
	}
	return &SessionGroup{
		maxParallel: maxParallel,
	}
}

// Run executes all tasks, at most maxParallel at a time
func (g *SessionGroup) Run(ctx context.Context, tasks []GroupTask, progress ProgressCallback) (*GroupResult, error) {
	if err := validateIsolation(tasks); err != nil {
		return nil, err
	}

	result := &GroupResult{
		Errors: make(map[string]error),
		Order:  make([]string, 0, len(tasks)),
	}

	if len(tasks) == 0 {
		return result, nil
	}

	startTime := time.Now()

	// Track order
	for _, task := range tasks {
		result.Order = append(result.Order, task.ID)
	}

	// Semaphore for limiting parallelism
	semaphore := make(chan struct{}, g.maxParallel)

	var wg sync.WaitGroup

	// Mutex for result map access
	var resultMutex sync.Mutex

	// Progress tracking
	var progressMutex sync.Mutex
	completed := 0

	for _, task := range tasks {
		wg.Add(1)

		go func(t GroupTask) {
			defer wg.Done()

			// Acquire semaphore
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			// Check context cancellation
			select {
			case <-ctx.Done():
				resultMutex.Lock()
				result.Errors[t.ID] = ctx.Err()
				resultMutex.Unlock()
				return
			default:
			}

			err := t.Run(ctx)

			resultMutex.Lock()
			result.Errors[t.ID] = err
			resultMutex.Unlock()

			// Update progress
			if progress != nil {
				progressMutex.Lock()
				completed++
				currentCompleted := completed
				progressMutex.Unlock()

				progress(currentCompleted, len(tasks), t.ID)
			}
		}(task)
	}

	wg.Wait()

	// Calculate statistics
	result.TotalTime = time.Since(startTime)
	for _, err := range result.Errors {
		if err != nil {
			result.FailureCount++
			result.HasFailures = true
		} else {
			result.SuccessCount++
		}
	}

	return result, nil
}

// FailureSummary returns a human-readable summary of failed tasks
func (r *GroupResult) FailureSummary() string {
	if !r.HasFailures {
		return ""
	}

	summary := fmt.Sprintf("Failed targets (%d/%d):\n", r.FailureCount, len(r.Order))
	for _, id := range r.Order {
		if err, ok := r.Errors[id]; ok && err != nil {
			summary += fmt.Sprintf("  - %s: %v\n", id, err)
		}
	}

	return summary
}

// validateIsolation rejects duplicate IDs and shared mutable resources
func validateIsolation(tasks []GroupTask) error {
	seenIDs := make(map[string]struct{}, len(tasks))
	seenDirs := make(map[string]string, len(tasks))
	seenReports := make(map[string]string, len(tasks))

	for _, task := range tasks {
		if task.ID == "" {
			return fmt.Errorf("%w: task with empty id", ErrOverlappingTargets)
		}
		if _, ok := seenIDs[task.ID]; ok {
			return fmt.Errorf("%w: duplicate task id %q", ErrOverlappingTargets, task.ID)
		}
		seenIDs[task.ID] = struct{}{}

		dir := filepath.Clean(task.WorkingDir)
		if prev, ok := seenDirs[dir]; ok {
			return fmt.Errorf("%w: %q and %q share working directory %s", ErrOverlappingTargets, prev, task.ID, dir)
		}
		seenDirs[dir] = task.ID

		if task.ReportPath != "" {
			report := filepath.Clean(task.ReportPath)
			if prev, ok := seenReports[report]; ok {
				return fmt.Errorf("%w: %q and %q share coverage report %s", ErrOverlappingTargets, prev, task.ID, report)
			}
			seenReports[report] = task.ID
		}
	}

	return nil
}
