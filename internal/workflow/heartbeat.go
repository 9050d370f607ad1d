package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"alchemist/internal/logging"
	"alchemist/internal/store"
)

// HeartbeatMonitor keeps running task runs alive and reclaims abandoned ones.
type HeartbeatMonitor struct {
	store             *store.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             st,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale returns RUNNING runs whose heartbeat is older than the timeout
// to FAILED_RETRYABLE so a worker claims them again. The reclaimed rows are
// returned so the caller can report the ones left without attempts.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, now time.Time) ([]*store.TaskRun, error) {
	if h.heartbeatTimeout <= 0 {
		return nil, nil
	}
	reclaimed, err := h.store.ReclaimStaleTasks(ctx, now.Add(-h.heartbeatTimeout))
	if err != nil {
		return nil, err
	}
	if len(reclaimed) > 0 {
		logging.WarnWithContext(h.logger, "reclaimed stale task runs", "heartbeat_reclaim",
			logging.Int("count", len(reclaimed)),
			logging.String(logging.FieldErrorHint, "a worker stopped without finishing; check for crashes or long stalls"),
			logging.String(logging.FieldImpact, "the interrupted attempts count against the retry ceiling"),
		)
	}
	return reclaimed, nil
}

// StartLoop refreshes the heartbeat of runID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, runID int64) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateTaskHeartbeat(ctx, runID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
