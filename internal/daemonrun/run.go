package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"alchemist/internal/config"
	"alchemist/internal/daemon"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/preflight"
	"alchemist/internal/store"
	"alchemist/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	SkipPreflight bool
}

// Run starts the alchemist daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("alchemist-%s.log", runID))
	logger, err := logging.NewTee(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "alchemist-*.log", cfg.Logging.RetentionDays, logPath)

	if !opts.SkipPreflight {
		if err := runPreflight(logger, cfg); err != nil {
			return err
		}
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "alchemist.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.data_dir permissions"),
		)
		return err
	}

	notifier := notifications.NewService(cfg)
	stages, err := BuildStages(cfg, st, logger, notifier)
	if err != nil {
		_ = st.Close()
		return err
	}
	registry, err := workflow.NewPipeline(cfg, st, stages)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("register pipeline: %w", err)
	}
	manager := workflow.NewManager(cfg, st, registry, logger, workflow.WithNotifier(notifier))

	d, err := daemon.New(cfg, st, logger, manager, notifier)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("alchemist daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// runPreflight logs every check and fails when a required one did not pass.
func runPreflight(logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(cfg)
	for _, r := range results {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		}
		if r.Passed {
			logger.Debug("preflight check", logging.Args(attrs...)...)
			continue
		}
		if r.Optional {
			logging.WarnWithContext(logger, "optional preflight check failed", "preflight_optional_failed",
				append(attrs, logging.String(logging.FieldImpact, "the dependent feature is unavailable"))...)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			append(attrs, logging.String(logging.FieldErrorHint, "fix the reported path or dependency, then restart"))...)
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, r.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
