package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"alchemist/internal/config"
)

// LogFileName is the JSON log written inside the configured log directory.
const LogFileName = "alchemist.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// Color forces ANSI level colours on or off for console output. When nil
	// the handler enables colour only for terminals.
	Color       *bool
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	handler, err := newHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(opts Options) (slog.Handler, error) {
	level := ParseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	writer, err := openWriters(paths)
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	switch format {
	case "json":
		return newJSONHandler(writer, levelVar, addSource), nil
	case "console":
		color := isTerminal(writer)
		if opts.Color != nil {
			color = *opts.Color
		}
		return newConsoleHandler(writer, levelVar, addSource, color), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates the default logger: the configured format on stdout,
// teed into LogFileName under the log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	if strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return NewTee(cfg, "")
	}
	return NewTee(cfg, filepath.Join(cfg.Paths.LogDir, LogFileName))
}

// NewTee creates a logger writing the configured format to stdout and, when
// logPath is set, JSON lines to logPath.
func NewTee(cfg *config.Config, logPath string) (*slog.Logger, error) {
	console, err := newHandler(Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(logPath) == "" {
		return slog.New(console), nil
	}
	file, err := newHandler(Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		return nil, err
	}
	return slog.New(newFanoutHandler(console, file)), nil
}

// ForStage returns logger narrowed to the per-stage level override configured
// in logging.stage_overrides, or logger unchanged when none applies.
func ForStage(logger *slog.Logger, cfg *config.Config, stage string) *slog.Logger {
	if logger == nil || cfg == nil {
		return logger
	}
	level, ok := cfg.Logging.StageOverrides[strings.ToLower(strings.TrimSpace(stage))]
	if !ok {
		return logger
	}
	return WithLevelOverride(logger, ParseLevel(level))
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriters(paths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("ensure log dir for %s: %w", trimmed, err)
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
