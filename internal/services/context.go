package services

import "context"

type contextKey string

const (
	taskKey      contextKey = "task"
	taskIDKey    contextKey = "task_id"
	stageKey     contextKey = "stage"
	entityIDKey  contextKey = "entity_id"
	requestIDKey contextKey = "request_id"
)

// WithTask annotates context with the scheduler task name.
func WithTask(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, taskKey, name)
}

// TaskFromContext returns the scheduler task name if present.
func TaskFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(taskKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTaskID annotates context with the task run identifier.
func WithTaskID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the task run identifier if present.
func TaskIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, taskIDKey)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntityID annotates context with the id of the entity a stage operates on.
func WithEntityID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, entityIDKey, id)
}

// EntityIDFromContext extracts the entity identifier if present.
func EntityIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, entityIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	switch val := ctx.Value(key).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
