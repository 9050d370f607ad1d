package workflow

import (
	"context"
	"errors"
	"time"

	"alchemist/internal/logging"
	"alchemist/internal/store"
)

type trigger struct {
	task     string
	interval time.Duration
}

func (m *Manager) triggers() []trigger {
	intervals := m.cfg.Scheduler.Intervals
	candidates := []trigger{
		{task: TaskDiscoverSources, interval: seconds(intervals.DiscoverSources)},
		{task: TaskProcessUnparsed, interval: seconds(intervals.ProcessUnparsed)},
		{task: TaskTriggerGeneration, interval: seconds(intervals.TriggerGeneration)},
		{task: TaskPublishReady, interval: seconds(intervals.PublishReady)},
		{task: TaskCollectMetrics, interval: seconds(intervals.CollectMetrics)},
	}
	out := make([]trigger, 0, len(candidates))
	for _, t := range candidates {
		if _, ok := m.registry.Lookup(t.task); ok && t.interval > 0 {
			out = append(out, t)
		}
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// triggerLoop enqueues t.task at start up and then once per interval. The
// task name is the dedup key, so a trigger never stacks behind an active run.
func (m *Manager) triggerLoop(ctx context.Context, t trigger) {
	for {
		m.Trigger(ctx, t.task)
		if !m.sleep(ctx, t.interval) {
			return
		}
	}
}

// Trigger enqueues one run of a periodic task unless one is already active.
// An earlier run that exhausted its retries is closed first; it would
// otherwise hold the dedup slot and stop the schedule for good.
func (m *Manager) Trigger(ctx context.Context, task string) {
	closed, err := m.store.CloseExhaustedTasks(ctx, task, task)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(m.logger, "could not close exhausted periodic run", "trigger_failed",
			logging.String(logging.FieldTask, task),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "the task is skipped until the next interval"),
		)
		return
	}
	if closed > 0 {
		m.logger.Info("exhausted periodic run superseded",
			logging.String(logging.FieldTask, task),
			logging.Int64("closed", closed),
			logging.String(logging.FieldEventType, "periodic_run_superseded"),
		)
	}
	run, err := EnqueueTask(ctx, m.store, m.cfg, m.registry, Dispatch{Task: task, DedupKey: task}, nil)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		m.logger.Debug("periodic task already pending", logging.String(logging.FieldTask, task))
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(m.logger, "periodic trigger failed", "trigger_failed",
			logging.String(logging.FieldTask, task),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "the task is skipped until the next interval"),
		)
	default:
		m.logger.Debug("periodic task enqueued",
			logging.String(logging.FieldTask, task),
			logging.Int64(logging.FieldTaskID, run.ID),
		)
	}
}
