package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/stageexec"
	"alchemist/internal/store"
)

func (m *Manager) execute(ctx context.Context, run *store.TaskRun) {
	if run.CorrelationID == "" {
		run.CorrelationID = uuid.NewString()
	}
	runCtx := services.WithTask(ctx, run.Task)
	runCtx = services.WithTaskID(runCtx, run.ID)
	runCtx = services.WithRequestID(runCtx, run.CorrelationID)
	logger := logging.ForStage(m.logger, m.cfg, run.Task)

	task, ok := m.registry.Lookup(run.Task)
	if !ok {
		outcome := stage.Reject("unknown task", services.Wrap(services.ErrConfiguration, "workflow", "execute", fmt.Sprintf("no task registered as %q", run.Task), nil))
		m.record(runCtx, task, run, outcome)
		return
	}

	hbCtx, hbCancel := context.WithCancel(runCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, run.ID)

	outcome := stageexec.Run(runCtx, stageexec.Options{
		Logger:      logger,
		Task:        run.Task,
		Attempt:     run.Attempts,
		MaxAttempts: run.MaxAttempts,
		Run: func(ctx context.Context) stage.Outcome {
			if task.Fanout != nil {
				return m.fanout(ctx, task, run)
			}
			return task.Run(ctx, run.Payload)
		},
	})
	hbCancel()
	hbWG.Wait()

	m.record(runCtx, task, run, outcome)
}

// fanout enqueues the sweep's dispatches spaced by cumulative jitter.
func (m *Manager) fanout(ctx context.Context, task Task, run *store.TaskRun) stage.Outcome {
	dispatches, err := task.Fanout(ctx, run.Payload)
	if err != nil {
		return stage.Classify("fan-out failed", err)
	}
	if len(dispatches) == 0 {
		return stage.NoWork(0, "nothing to dispatch")
	}
	logger := logging.WithContext(ctx, m.logger)
	offsets := Jitter(m.cfg.Scheduler.JitterFor(task.Name), len(dispatches), m.random)
	var dispatched, skipped int
	var lastErr error
	for i, d := range dispatches {
		d.Delay += offsets[i]
		if _, err := m.enqueue(ctx, d, run); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				skipped++
				continue
			}
			lastErr = err
			logging.WarnWithContext(logger, "dispatch failed", "dispatch_failed",
				logging.String("target_task", d.Task),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the item is picked up again by the next sweep"),
			)
			continue
		}
		dispatched++
	}
	if dispatched == 0 && skipped == 0 && lastErr != nil {
		return stage.Retry("every dispatch failed", lastErr)
	}
	message := fmt.Sprintf("dispatched %d, already pending %d", dispatched, skipped)
	if dispatched == 0 {
		return stage.NoWork(0, message)
	}
	return stage.New(0, message)
}

// dispatchNext enqueues the runs chained after a finished run.
func (m *Manager) dispatchNext(ctx context.Context, task Task, run *store.TaskRun, outcome stage.Outcome) {
	if task.Next == nil || outcome.Kind == stage.Transient {
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	for _, d := range task.Next(run.Payload, outcome) {
		next, err := m.enqueue(ctx, d, run)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			logger.Debug("chained run already pending", logging.String("target_task", d.Task))
		case err != nil:
			logging.ErrorWithContext(logger, "failed to chain downstream run", "chain_failed",
				logging.String("target_task", d.Task),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "enqueue it manually with alchemist queue enqueue"),
			)
		default:
			logger.Debug("chained downstream run",
				logging.String("target_task", d.Task),
				logging.Int64("target_task_id", next.ID),
			)
		}
	}
}
