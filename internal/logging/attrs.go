package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

const (
	defaultErrorHint = "check logs for details"
	defaultImpact    = "operation completed with warnings"
)

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Alert(value string) Attr { return slog.String(FieldAlert, value) }

// ContentID tags a line with a generated_content row id.
func ContentID(id int64) Attr { return slog.Int64(FieldContentID, id) }

// FactID tags a line with a structured_facts row id.
func FactID(id int64) Attr { return slog.Int64(FieldFactID, id) }

// PublishedID tags a line with a published_content row id.
func PublishedID(id int64) Attr { return slog.Int64(FieldPublishedID, id) }

// URL tags a line with the source or external URL it concerns.
func URL(value string) Attr { return slog.String(FieldURL, value) }

// Platform tags a line with a publishing target.
func Platform(value string) Attr { return slog.String(FieldPlatform, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attributes into the variadic form accepted by slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// withDefaults appends key=value for every default whose key the caller did not set.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		present := false
		for _, a := range attrs {
			if a.Key == d.Key {
				present = true
				break
			}
		}
		if !present {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

// WarnWithContext logs a warning that always names an event type, a next
// step, and an impact. Stage code uses it for declines and degraded runs.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
		String(FieldImpact, defaultImpact),
	)
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error with enforced event_type and error_hint fields.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
	)
	logger.Error(msg, Args(attrs...)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
