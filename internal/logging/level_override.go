package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler drops records below level before they reach next. The
// wrapped handler must itself accept the most verbose level in use.
type minLevelHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &minLevelHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *minLevelHandler) WithGroup(name string) slog.Handler {
	return &minLevelHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that enforces the provided minimum level
// while preserving existing attributes and handler wiring. Stacking overrides
// replaces the previous minimum rather than nesting.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if existing, ok := next.(*minLevelHandler); ok {
		next = existing.next
	}
	return slog.New(&minLevelHandler{next: next, level: level})
}
