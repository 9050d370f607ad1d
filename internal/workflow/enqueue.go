package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alchemist/internal/config"
	"alchemist/internal/services"
	"alchemist/internal/store"
)

// EnqueueTask inserts a run for d. The run inherits the correlation id of
// parent when one is given and gets a fresh one otherwise. An active run with
// the same task and dedup key yields store.ErrDuplicate.
func EnqueueTask(ctx context.Context, st *store.Store, cfg *config.Config, registry *Registry, d Dispatch, parent *store.TaskRun) (*store.TaskRun, error) {
	return enqueueAt(ctx, st, cfg, registry, d, parent, time.Now())
}

func enqueueAt(ctx context.Context, st *store.Store, cfg *config.Config, registry *Registry, d Dispatch, parent *store.TaskRun, now time.Time) (*store.TaskRun, error) {
	name := strings.TrimSpace(d.Task)
	task, ok := registry.Lookup(name)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", "enqueue", fmt.Sprintf("unknown task %q", name), nil)
	}
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = cfg.Scheduler.MaxAttempts
	}
	next := store.NewTask{
		Task:        name,
		Payload:     d.Payload,
		DedupKey:    d.DedupKey,
		MaxAttempts: maxAttempts,
		NotBefore:   now.Add(d.Delay),
	}
	if parent != nil {
		next.ParentID = parent.ID
		next.CorrelationID = parent.CorrelationID
	}
	if next.CorrelationID == "" {
		next.CorrelationID = uuid.NewString()
	}
	return st.EnqueueTask(ctx, next)
}

func (m *Manager) enqueue(ctx context.Context, d Dispatch, parent *store.TaskRun) (*store.TaskRun, error) {
	return enqueueAt(ctx, m.store, m.cfg, m.registry, d, parent, m.now())
}
