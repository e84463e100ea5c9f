//go:build unit

package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func groupTask(id, dir, report string, run func(ctx context.Context) error) GroupTask {
	if run == nil {
		run = func(context.Context) error { return nil }
	}
	return GroupTask{ID: id, WorkingDir: dir, ReportPath: report, Run: run}
}

func TestSessionGroup_Empty(t *testing.T) {
	group := NewSessionGroup(4)

	result, err := group.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Errors) != 0 || len(result.Order) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.HasFailures {
		t.Error("empty group should not report failures")
	}
}

func TestSessionGroup_RunsAllTasks(t *testing.T) {
	group := NewSessionGroup(2)

	var ran sync.Map
	tasks := []GroupTask{
		groupTask("a", "dir-a", "a/coverage.xml", func(context.Context) error {
			ran.Store("a", true)
			return nil
		}),
		groupTask("b", "dir-b", "b/coverage.xml", func(context.Context) error {
			ran.Store("b", true)
			return nil
		}),
		groupTask("c", "dir-c", "c/coverage.xml", func(context.Context) error {
			ran.Store("c", true)
			return errors.New("suite failed")
		}),
	}

	result, err := group.Run(context.Background(), tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if _, ok := ran.Load(id); !ok {
			t.Errorf("task %s never ran", id)
		}
	}

	if result.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", result.SuccessCount)
	}
	if result.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", result.FailureCount)
	}
	if !result.HasFailures {
		t.Error("expected HasFailures")
	}
	if result.Errors["c"] == nil {
		t.Error("expected error recorded for task c")
	}
	if len(result.Order) != 3 || result.Order[0] != "a" || result.Order[2] != "c" {
		t.Errorf("Order = %v, want [a b c]", result.Order)
	}
	if result.TotalTime <= 0 {
		t.Error("expected positive total time")
	}
}

func TestSessionGroup_ConcurrencyCap(t *testing.T) {
	const limit = 2
	group := NewSessionGroup(limit)

	var current, peak int32
	tasks := make([]GroupTask, 6)
	for i := range tasks {
		id := fmt.Sprintf("task-%d", i)
		tasks[i] = groupTask(id, "dir-"+id, "", func(context.Context) error {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		})
	}

	if _, err := group.Run(context.Background(), tasks, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p := atomic.LoadInt32(&peak); p > limit {
		t.Errorf("observed %d concurrent tasks, cap is %d", p, limit)
	}
}

func TestSessionGroup_OverlapRejection(t *testing.T) {
	group := NewSessionGroup(4)

	tests := []struct {
		name   string
		tasks  []GroupTask
		errMsg string
	}{
		{
			name: "duplicate id",
			tasks: []GroupTask{
				groupTask("same", "dir-a", "", nil),
				groupTask("same", "dir-b", "", nil),
			},
			errMsg: "duplicate task id",
		},
		{
			name: "empty id",
			tasks: []GroupTask{
				groupTask("", "dir-a", "", nil),
			},
			errMsg: "empty id",
		},
		{
			name: "shared working directory",
			tasks: []GroupTask{
				groupTask("a", "services/api", "a.xml", nil),
				groupTask("b", "services/api", "b.xml", nil),
			},
			errMsg: "share working directory",
		},
		{
			name: "shared working directory after cleaning",
			tasks: []GroupTask{
				groupTask("a", "services/api", "a.xml", nil),
				groupTask("b", "services//api/", "b.xml", nil),
			},
			errMsg: "share working directory",
		},
		{
			name: "shared report path",
			tasks: []GroupTask{
				groupTask("a", "dir-a", "build/coverage.xml", nil),
				groupTask("b", "dir-b", "build/coverage.xml", nil),
			},
			errMsg: "share coverage report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			for i := range tt.tasks {
				orig := tt.tasks[i].Run
				tt.tasks[i].Run = func(ctx context.Context) error {
					ran = true
					return orig(ctx)
				}
			}

			_, err := group.Run(context.Background(), tt.tasks, nil)
			if err == nil {
				t.Fatal("expected overlap error")
			}
			if !errors.Is(err, ErrOverlappingTargets) {
				t.Errorf("error should match ErrOverlappingTargets, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errMsg)
			}
			if ran {
				t.Error("no task should run when the group is rejected")
			}
		})
	}
}

func TestSessionGroup_DistinctTargetsAccepted(t *testing.T) {
	group := NewSessionGroup(4)

	// Same report file name in different directories is fine
	tasks := []GroupTask{
		groupTask("a", "frontend", "frontend/coverage.xml", nil),
		groupTask("b", "backend", "backend/coverage.xml", nil),
	}

	result, err := group.Run(context.Background(), tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasFailures {
		t.Errorf("unexpected failures: %v", result.Errors)
	}
}

func TestSessionGroup_ContextCancellation(t *testing.T) {
	group := NewSessionGroup(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []GroupTask{
		groupTask("a", "dir-a", "", func(context.Context) error {
			t.Error("task should not run after cancellation")
			return nil
		}),
	}

	result, err := group.Run(ctx, tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !errors.Is(result.Errors["a"], context.Canceled) {
		t.Errorf("expected context.Canceled for task a, got %v", result.Errors["a"])
	}
	if !result.HasFailures {
		t.Error("cancelled run should count as failure")
	}
}

func TestSessionGroup_Progress(t *testing.T) {
	group := NewSessionGroup(2)

	var mu sync.Mutex
	var calls []int
	progress := func(completed, total int, currentID string) {
		mu.Lock()
		defer mu.Unlock()
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if currentID == "" {
			t.Error("progress called with empty id")
		}
		calls = append(calls, completed)
	}

	tasks := []GroupTask{
		groupTask("a", "dir-a", "", nil),
		groupTask("b", "dir-b", "", nil),
		groupTask("c", "dir-c", "", nil),
	}

	if _, err := group.Run(context.Background(), tasks, progress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 3 {
		t.Fatalf("progress called %d times, want 3", len(calls))
	}
	seen := map[int]bool{}
	for _, c := range calls {
		seen[c] = true
	}
	for i := 1; i <= 3; i++ {
		if !seen[i] {
			t.Errorf("expected a progress callback with completed=%d", i)
		}
	}
}

func TestGroupResult_FailureSummary(t *testing.T) {
	result := &GroupResult{
		Errors: map[string]error{
			"frontend": nil,
			"backend":  errors.New("coverage did not improve"),
			"worker":   errors.New("suite failed"),
		},
		Order:        []string{"frontend", "backend", "worker"},
		HasFailures:  true,
		FailureCount: 2,
		SuccessCount: 1,
	}

	summary := result.FailureSummary()
	if !strings.Contains(summary, "Failed targets (2/3)") {
		t.Errorf("summary missing header: %q", summary)
	}
	if !strings.Contains(summary, "backend: coverage did not improve") {
		t.Errorf("summary missing backend failure: %q", summary)
	}
	if !strings.Contains(summary, "worker: suite failed") {
		t.Errorf("summary missing worker failure: %q", summary)
	}
	if strings.Contains(summary, "frontend") {
		t.Errorf("summary should not mention successful targets: %q", summary)
	}

	// Failure lines follow submission order
	backendIdx := strings.Index(summary, "backend")
	workerIdx := strings.Index(summary, "worker")
	if backendIdx > workerIdx {
		t.Error("summary should list failures in submission order")
	}

	ok := &GroupResult{Errors: map[string]error{"a": nil}, Order: []string{"a"}, SuccessCount: 1}
	if s := ok.FailureSummary(); s != "" {
		t.Errorf("expected empty summary for success, got %q", s)
	}
}

func TestNewSessionGroup_DefaultCap(t *testing.T) {
	for _, limit := range []int{0, -3} {
		group := NewSessionGroup(limit)
		if group.maxParallel != 4 {
			t.Errorf("NewSessionGroup(%d).maxParallel = %d, want 4", limit, group.maxParallel)
		}
	}
}
