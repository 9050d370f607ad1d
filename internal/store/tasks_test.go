package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClockedStore(t *testing.T) (*store.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t), store.WithClock(clock.Now))
	return st, clock
}

func TestClaimNextTaskOrderAndEligibility(t *testing.T) {
	st, clock := newClockedStore(t)
	ctx := context.Background()

	later, err := st.EnqueueTask(ctx, store.NewTask{Task: "parse_raw", Payload: map[string]any{"raw_id": 2}, NotBefore: clock.now.Add(time.Minute)})
	if err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	first, err := st.EnqueueTask(ctx, store.NewTask{Task: "parse_raw", Payload: map[string]any{"raw_id": 1}})
	if err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}

	run, err := st.ClaimNextTask(ctx)
	if err != nil {
		t.Fatalf("ClaimNextTask: %v", err)
	}
	if run == nil || run.ID != first.ID || run.Status != store.TaskRunning || run.Attempts != 1 {
		t.Fatalf("unexpected claim %+v", run)
	}
	var payload struct {
		RawID int64 `json:"raw_id"`
	}
	if err := json.Unmarshal(run.Payload, &payload); err != nil || payload.RawID != 1 {
		t.Fatalf("payload = %s, %v", run.Payload, err)
	}

	none, err := st.ClaimNextTask(ctx)
	if err != nil || none != nil {
		t.Fatalf("expected nothing due, got %+v, %v", none, err)
	}
	clock.Advance(time.Minute)
	run, err = st.ClaimNextTask(ctx)
	if err != nil || run == nil || run.ID != later.ID {
		t.Fatalf("expected delayed run, got %+v, %v", run, err)
	}
}

func TestRetryableRunIsExhaustedAtCeiling(t *testing.T) {
	st, clock := newClockedStore(t)
	ctx := context.Background()

	queued, err := st.EnqueueTask(ctx, store.NewTask{Task: "scrape_url", MaxAttempts: 3})
	if err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	for attempt := 1; attempt <= 3; attempt++ {
		run, err := st.ClaimNextTask(ctx)
		if err != nil || run == nil {
			t.Fatalf("attempt %d: claim = %+v, %v", attempt, run, err)
		}
		if run.Attempts != attempt {
			t.Fatalf("attempts = %d, want %d", run.Attempts, attempt)
		}
		failed, err := st.FailTaskRetryable(ctx, run.ID, clock.now.Add(time.Second), "boom")
		if err != nil {
			t.Fatalf("FailTaskRetryable: %v", err)
		}
		if got, want := failed.Exhausted(), attempt == 3; got != want {
			t.Fatalf("attempt %d: exhausted = %v", attempt, got)
		}
		clock.Advance(time.Second)
	}

	clock.Advance(time.Hour)
	if run, err := st.ClaimNextTask(ctx); err != nil || run != nil {
		t.Fatalf("exhausted run must not be claimed, got %+v, %v", run, err)
	}
	summary, err := st.TaskStats(ctx)
	if err != nil {
		t.Fatalf("TaskStats: %v", err)
	}
	if summary.Exhausted != 1 || summary.Retrying != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	reset, err := st.RetryTasks(ctx, queued.ID)
	if err != nil || reset != 1 {
		t.Fatalf("RetryTasks = %d, %v", reset, err)
	}
	run, err := st.ClaimNextTask(ctx)
	if err != nil || run == nil || run.Attempts != 1 {
		t.Fatalf("expected fresh attempt after retry, got %+v, %v", run, err)
	}
}

func TestTerminalRunIsNeverClaimed(t *testing.T) {
	st, clock := newClockedStore(t)
	ctx := context.Background()

	if _, err := st.EnqueueTask(ctx, store.NewTask{Task: "generate_article"}); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	run, _ := st.ClaimNextTask(ctx)
	if _, err := st.FailTaskTerminal(ctx, run.ID, "unsupported language"); err != nil {
		t.Fatalf("FailTaskTerminal: %v", err)
	}
	clock.Advance(24 * time.Hour)
	if next, err := st.ClaimNextTask(ctx); err != nil || next != nil {
		t.Fatalf("terminal run claimed: %+v, %v", next, err)
	}
	if _, err := st.FailTaskTerminal(ctx, run.ID, "again"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestEnqueueDedupKeyBlocksActiveDuplicates(t *testing.T) {
	st, _ := newClockedStore(t)
	ctx := context.Background()

	task := store.NewTask{Task: "parse_raw", DedupKey: "raw:1"}
	if _, err := st.EnqueueTask(ctx, task); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	if _, err := st.EnqueueTask(ctx, task); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	run, _ := st.ClaimNextTask(ctx)
	if err := st.CompleteTask(ctx, run.ID, ""); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if _, err := st.EnqueueTask(ctx, task); err != nil {
		t.Fatalf("finished runs must not block a new run: %v", err)
	}
}

func TestReclaimStaleTasks(t *testing.T) {
	st, clock := newClockedStore(t)
	ctx := context.Background()

	if _, err := st.EnqueueTask(ctx, store.NewTask{Task: "publish_content"}); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	run, _ := st.ClaimNextTask(ctx)
	clock.Advance(10 * time.Minute)

	reclaimed, err := st.ReclaimStaleTasks(ctx, clock.now.Add(-5*time.Minute))
	if err != nil || len(reclaimed) != 1 || reclaimed[0].ID != run.ID || reclaimed[0].Status != store.TaskFailedRetryable {
		t.Fatalf("ReclaimStaleTasks = %+v, %v", reclaimed, err)
	}
	again, err := st.ClaimNextTask(ctx)
	if err != nil || again == nil || again.ID != run.ID || again.Attempts != 2 {
		t.Fatalf("expected reclaimed run with second attempt, got %+v, %v", again, err)
	}
}

func TestListTasksFilters(t *testing.T) {
	st, _ := newClockedStore(t)
	ctx := context.Background()

	for _, name := range []string{"scrape_url", "parse_raw", "scrape_url"} {
		if _, err := st.EnqueueTask(ctx, store.NewTask{Task: name}); err != nil {
			t.Fatalf("EnqueueTask: %v", err)
		}
	}
	runs, err := st.ListTasks(ctx, store.TaskFilter{Tasks: []string{"scrape_url"}})
	if err != nil || len(runs) != 2 {
		t.Fatalf("ListTasks = %d, %v", len(runs), err)
	}
	runs, err = st.ListTasks(ctx, store.TaskFilter{Statuses: []store.TaskStatus{store.TaskRunning}})
	if err != nil || len(runs) != 0 {
		t.Fatalf("ListTasks running = %d, %v", len(runs), err)
	}
}

func TestReleaseTaskReturnsAttempt(t *testing.T) {
	st, _ := newClockedStore(t)
	ctx := context.Background()

	if _, err := st.EnqueueTask(ctx, store.NewTask{Task: "publish_content", MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	run, _ := st.ClaimNextTask(ctx)
	released, err := st.ReleaseTask(ctx, run.ID, "shutdown")
	if err != nil {
		t.Fatalf("ReleaseTask: %v", err)
	}
	if released.Attempts != 0 || released.Status != store.TaskFailedRetryable || released.Exhausted() {
		t.Fatalf("released = %+v", released)
	}
	if _, err := st.ReleaseTask(ctx, run.ID, "again"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	again, err := st.ClaimNextTask(ctx)
	if err != nil || again == nil || again.ID != run.ID || again.Attempts != 1 {
		t.Fatalf("expected released run to be claimable, got %+v, %v", again, err)
	}
}

func TestCloseExhaustedTasksFreesDedupKey(t *testing.T) {
	st, _ := newClockedStore(t)
	ctx := context.Background()
	task := store.NewTask{Task: "collect_metrics", DedupKey: "collect_metrics", MaxAttempts: 1}

	if _, err := st.EnqueueTask(ctx, task); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}
	run, _ := st.ClaimNextTask(ctx)
	if n, err := st.CloseExhaustedTasks(ctx, task.Task, task.DedupKey); err != nil || n != 0 {
		t.Fatalf("running run closed: %d, %v", n, err)
	}
	failed, err := st.FailTaskRetryable(ctx, run.ID, time.Time{}, "analytics down")
	if err != nil || !failed.Exhausted() {
		t.Fatalf("FailTaskRetryable = %+v, %v", failed, err)
	}
	if _, err := st.EnqueueTask(ctx, task); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected exhausted run to hold the key, got %v", err)
	}

	if n, err := st.CloseExhaustedTasks(ctx, task.Task, task.DedupKey); err != nil || n != 1 {
		t.Fatalf("CloseExhaustedTasks = %d, %v", n, err)
	}
	closed, _ := st.GetTask(ctx, run.ID)
	if closed.Status != store.TaskFailedTerminal || closed.LastError != "analytics down; superseded by a newer run" {
		t.Fatalf("closed = %+v", closed)
	}
	if _, err := st.EnqueueTask(ctx, task); err != nil {
		t.Fatalf("EnqueueTask after close: %v", err)
	}
}
