package logging

import (
	"context"
	"log/slog"

	"alchemist/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTask is the standardized structured logging key for scheduler task names.
	FieldTask = "task"
	// FieldTaskID is the standardized structured logging key for task run identifiers.
	FieldTaskID = "task_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldEntityID is the standardized structured logging key for the entity a stage operates on.
	FieldEntityID = "entity_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the services error marker name.
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for the consequence of a warning.
	FieldImpact = "impact"

	FieldContentID   = "content_id"
	FieldFactID      = "fact_id"
	FieldPublishedID = "published_id"
	FieldURL         = "url"
	FieldPlatform    = "platform"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if name, ok := services.TaskFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTask, name))
	}
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldTaskID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if id, ok := services.EntityIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldEntityID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
