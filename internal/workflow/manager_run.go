package workflow

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
)

// Run starts the worker pool and the periodic triggers and blocks until ctx
// is cancelled. Runs interrupted by shutdown are returned to the queue.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	workers := max(m.cfg.Scheduler.Workers, 1)
	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.String(logging.FieldEventType, "workflow_start"),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range workers {
		group.Go(func() error {
			m.worker(groupCtx, i)
			return nil
		})
	}
	group.Go(func() error {
		m.reclaimLoop(groupCtx)
		return nil
	})
	for _, trigger := range m.triggers() {
		group.Go(func() error {
			m.triggerLoop(groupCtx, trigger)
			return nil
		})
	}
	err := group.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
	return err
}

// RunOnce claims and executes a single due run. It reports false when
// nothing was due.
func (m *Manager) RunOnce(ctx context.Context) (bool, error) {
	run, err := m.store.ClaimNextTask(ctx)
	if err != nil {
		m.setLastError(err)
		return false, err
	}
	if run == nil {
		return false, nil
	}
	m.execute(ctx, run)
	return true, nil
}

// Drain executes due runs until none remain or ctx ends. Runs scheduled in the
// future are left queued.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	executed := 0
	for ctx.Err() == nil {
		ran, err := m.RunOnce(ctx)
		if err != nil {
			return executed, err
		}
		if !ran {
			return executed, nil
		}
		executed++
	}
	return executed, ctx.Err()
}

func (m *Manager) worker(ctx context.Context, index int) {
	logger := m.logger.With(logging.Int("worker", index))
	for ctx.Err() == nil {
		ran, err := m.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.ErrorWithContext(logger, "failed to claim next task run", "task_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
		if ran {
			continue
		}
		m.sleep(ctx, m.cfg.Scheduler.PollDuration())
	}
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	interval := m.cfg.Scheduler.HeartbeatEvery()
	if interval <= 0 {
		return
	}
	for {
		if _, err := m.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(m.logger, "reclaim stale task runs failed", "heartbeat_reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access"),
				logging.String(logging.FieldImpact, "stuck runs may remain RUNNING"),
			)
		}
		if !m.sleep(ctx, interval) {
			return
		}
	}
}

// ReclaimStale requeues runs whose worker stopped heartbeating. Reclaimed
// runs left without attempts are reported like any other exhausted run.
func (m *Manager) ReclaimStale(ctx context.Context) (int, error) {
	reclaimed, err := m.heartbeat.ReclaimStale(ctx, m.now())
	if err != nil {
		return 0, err
	}
	for _, run := range reclaimed {
		if !run.Exhausted() {
			continue
		}
		runCtx := services.WithTaskID(services.WithTask(ctx, run.Task), run.ID)
		m.handleExhausted(runCtx, run, stage.Retry("heartbeat timeout",
			services.Wrap(services.ErrTransient, run.Task, "heartbeat", run.LastError, nil)))
	}
	return len(reclaimed), nil
}

// sleep waits for d or ctx and reports whether the wait completed.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
