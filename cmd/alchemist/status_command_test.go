package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofrs/flock"

	"alchemist/internal/store"
	"alchemist/internal/workflow"
)

func TestStatusReportsCountsAndChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueTask(ctx, store.NewTask{Task: workflow.TaskDiscoverSources}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := env.store.InsertRaw(ctx, "https://example.com/a", "<html></html>"); err != nil {
		t.Fatalf("insert raw: %v", err)
	}

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if view.DaemonRunning {
		t.Fatal("expected daemon to be stopped")
	}
	if view.Tasks.Queued != 1 {
		t.Fatalf("queued = %d", view.Tasks.Queued)
	}
	if view.Store["raw_data"]["NEW"] != 1 {
		t.Fatalf("raw_data stats = %+v", view.Store["raw_data"])
	}
	if len(view.Checks) == 0 {
		t.Fatal("expected preflight checks")
	}
	stages := map[string]stageView{}
	for _, st := range view.Stages {
		stages[st.Name] = st
	}
	if !stages["parse"].Ready || !stages["generation"].Ready {
		t.Fatalf("expected core stages ready: %+v", view.Stages)
	}
	if st := stages["publish wordpress"]; st.Ready {
		t.Fatalf("expected wordpress unavailable without credentials: %+v", st)
	}
	if st := stages["video"]; st.Detail != "disabled" {
		t.Fatalf("video = %+v", st)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon:   stopped")
	requireContains(t, out, "raw_data")
	requireContains(t, out, "LLM API key")
	requireContains(t, out, "publish wordpress")
}

func TestStatusDetectsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	lock := flock.New(env.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire lock: %v", err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon:   running")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "not configured")
}
