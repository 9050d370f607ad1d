package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/store"
	"alchemist/internal/workflow"
)

// ErrAlreadyRunning is returned when another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another alchemist daemon instance is already running")

// Daemon owns the scheduler lifecycle and the single-instance lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	Store        map[string]map[string]int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		workflow: wf,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- d.workflow.Run(runCtx)
	}()
	d.cancel = cancel
	d.done = done
	d.running.Store(true)
	d.logger.Info("alchemist daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop cancels the workflow, waits for in-flight runs to be recorded, and
// releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.cancel()
	if err := <-d.done; err != nil {
		logging.WarnWithContext(d.logger, "workflow exited with error", "workflow_exit_error",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-flight runs are reclaimed on next start"),
		)
	}
	d.cancel = nil
	d.done = nil
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "the next start may report an active instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("alchemist daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Store = stats
	}
	return status
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
