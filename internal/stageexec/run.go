// Package stageexec runs one stage invocation with the logging and panic
// guard the scheduler wraps around every run.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
)

// Options describe one invocation.
type Options struct {
	Logger      *slog.Logger
	Task        string
	Attempt     int
	MaxAttempts int
	Run         func(context.Context) stage.Outcome
}

// Run executes opts.Run and logs its start and outcome. A panic inside the
// stage becomes a Terminal outcome.
func Run(ctx context.Context, opts Options) (outcome stage.Outcome) {
	if opts.Run == nil {
		return stage.Reject("stage unavailable", services.Wrap(services.ErrConfiguration, opts.Task, "run", "no stage function registered", nil))
	}
	stageCtx := services.WithStage(ctx, opts.Task)
	logger := logging.WithContext(stageCtx, opts.Logger)

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", opts.Attempt),
		logging.Int("max_attempts", opts.MaxAttempts),
	)
	started := time.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			logging.ErrorWithContext(logger, "stage panicked", "stage_panic",
				logging.Any("panic", recovered),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report the stack trace; the run will not be retried"),
			)
			outcome = stage.Reject("stage panicked", fmt.Errorf("panic: %v", recovered))
		}
		logOutcome(logger, outcome, time.Since(started))
	}()

	return opts.Run(stageCtx)
}

func logOutcome(logger *slog.Logger, outcome stage.Outcome, elapsed time.Duration) {
	attrs := []logging.Attr{
		logging.String("outcome", outcome.Kind.String()),
		logging.Duration("stage_duration", elapsed),
	}
	if outcome.EntityID > 0 {
		attrs = append(attrs, logging.Int64(logging.FieldEntityID, outcome.EntityID))
	}
	if outcome.Message != "" {
		attrs = append(attrs, logging.String("detail", outcome.Message))
	}
	switch outcome.Kind {
	case stage.SuccessNew, stage.SuccessNoWork:
		attrs = append(attrs, logging.String(logging.FieldEventType, "stage_complete"))
		logger.Info("stage completed", logging.Args(attrs...)...)
	case stage.Transient:
		details := services.Details(outcome.Err)
		attrs = append(attrs,
			logging.Error(outcome.Err),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldImpact, "run will be retried after backoff"),
		)
		logging.WarnWithContext(logger, "stage failed transiently", "stage_retry", attrs...)
	default:
		details := services.Details(outcome.Err)
		attrs = append(attrs,
			logging.Error(outcome.Err),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.Alert("stage_failure"),
		)
		if details.Hint != "" {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, details.Hint))
		}
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	}
}
