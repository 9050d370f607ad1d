package workflow

import (
	"log/slog"
	"sync"
	"time"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/store"
)

// Manager runs registered tasks from the durable task queue.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	registry  *Registry
	logger    *slog.Logger
	notifier  notifications.Service
	heartbeat *HeartbeatMonitor
	now       func() time.Time
	random    func() float64

	mu      sync.RWMutex
	running bool
	lastErr error
	lastRun *store.TaskRun
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier overrides the notifier built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithClock overrides the time source used for backoff and dispatch offsets.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRandom overrides the jitter source; it must return values in [0, 1).
func WithRandom(random func() float64) ManagerOption {
	return func(m *Manager) {
		if random != nil {
			m.random = random
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, st *store.Store, registry *Registry, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		cfg:      cfg,
		store:    st,
		registry: registry,
		logger:   logger,
		notifier: notifications.NewService(cfg),
		now:      time.Now,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			cfg.Scheduler.HeartbeatEvery(),
			cfg.Scheduler.HeartbeatDeadline(),
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}
