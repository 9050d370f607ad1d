package workflow

import (
	"context"

	"alchemist/internal/logging"
	"alchemist/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	LastError string
	LastRun   *store.TaskRun
	Tasks     store.TaskSummary
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastRun := m.lastRun
	m.mu.RUnlock()

	summary := StatusSummary{Running: running}
	tasks, err := m.store.TaskStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read task stats", logging.Error(err))
	}
	summary.Tasks = tasks
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastRun != nil {
		copy := *lastRun
		summary.LastRun = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRun(run *store.TaskRun) {
	m.mu.Lock()
	if run != nil {
		copy := *run
		m.lastRun = &copy
	}
	m.mu.Unlock()
}
