package workflow

import (
	"context"
	"errors"
	"strconv"

	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/store"
)

func (m *Manager) notifyExhausted(ctx context.Context, run *store.TaskRun) {
	if m.notifier == nil || run == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventTaskExhausted, notifications.Payload{
		"task":     run.Task,
		"task_id":  strconv.FormatInt(run.ID, 10),
		"attempts": strconv.Itoa(run.Attempts),
		"error":    run.LastError,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, exhausted notification not sent")
			return
		}
		m.logger.Debug("exhausted notification failed", logging.Error(err))
	}
}
