package workflow

import (
	"context"
	"strings"

	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

// record maps outcome onto the run row and chains follow-up work. Writes use
// a context detached from shutdown so an interrupted run is not left
// RUNNING. A transient outcome during shutdown does not use up an attempt.
func (m *Manager) record(ctx context.Context, task Task, run *store.TaskRun, outcome stage.Outcome) {
	shuttingDown := ctx.Err() != nil
	writeCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, m.logger)

	var (
		updated *store.TaskRun
		err     error
	)
	switch outcome.Kind {
	case stage.SuccessNew, stage.SuccessNoWork:
		if err = m.store.CompleteTask(writeCtx, run.ID, strings.TrimSpace(outcome.Message)); err == nil {
			m.dispatchNext(writeCtx, task, run, outcome)
		}
	case stage.Transient:
		if shuttingDown {
			if updated, err = m.store.ReleaseTask(writeCtx, run.ID, failureReason(run.Task, outcome)); err == nil {
				logger.Info("run interrupted by shutdown, returned to queue",
					logging.Int("attempts", updated.Attempts),
					logging.String(logging.FieldEventType, "task_released"),
				)
			}
			break
		}
		delay := Backoff(m.cfg.Scheduler, task.Criticality, run.Attempts)
		updated, err = m.store.FailTaskRetryable(writeCtx, run.ID, m.now().Add(delay), failureReason(run.Task, outcome))
		if err == nil {
			if updated.Exhausted() {
				m.handleExhausted(writeCtx, updated, outcome)
			} else {
				logger.Info("retry scheduled",
					logging.Int("attempt", updated.Attempts),
					logging.Int("max_attempts", updated.MaxAttempts),
					logging.Duration("backoff", delay),
					logging.String(logging.FieldEventType, "task_retry_scheduled"),
				)
			}
		}
	default:
		if updated, err = m.store.FailTaskTerminal(writeCtx, run.ID, failureReason(run.Task, outcome)); err == nil {
			m.setLastError(outcome.Err)
			m.dispatchNext(writeCtx, task, run, outcome)
		}
	}
	if err != nil {
		logging.ErrorWithContext(logger, "failed to record task outcome", "task_record_failed",
			logging.String("outcome", outcome.Kind.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the run may be reclaimed after the heartbeat timeout"),
		)
		m.setLastError(err)
	}
	if updated == nil {
		updated, _ = m.store.GetTask(writeCtx, run.ID)
	}
	m.setLastRun(updated)
}

func (m *Manager) handleExhausted(ctx context.Context, run *store.TaskRun, outcome stage.Outcome) {
	m.setLastError(outcome.Err)
	details := services.Details(outcome.Err)
	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "task run exhausted its retries", "task_exhausted",
		logging.Int("attempts", run.Attempts),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.Error(outcome.Err),
		logging.Alert("task_exhausted"),
		logging.String(logging.FieldErrorHint, "fix the cause, then run alchemist queue retry"),
	)
	m.notifyExhausted(ctx, run)
}

// failureReason renders the stored last_error for a failed outcome.
func failureReason(task string, outcome stage.Outcome) string {
	if outcome.Err != nil {
		if msg := strings.TrimSpace(outcome.Err.Error()); msg != "" {
			if prefix := strings.TrimSpace(outcome.Message); prefix != "" {
				return prefix + ": " + msg
			}
			return msg
		}
	}
	if msg := strings.TrimSpace(outcome.Message); msg != "" {
		return msg
	}
	return task + " failed"
}
