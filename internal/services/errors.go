package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var markers = []struct {
	err  error
	kind string
}{
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTimeout, "timeout"},
	{ErrExternalTool, "external_tool"},
	{ErrTransient, "transient"},
}

// ErrorDetails is the decomposed view of an error built by Wrap.
type ErrorDetails struct {
	Kind    string
	Message string
	Hint    string
	Cause   error
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later outcome classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err describes a failure that may succeed on a
// later attempt. Validation, configuration, and not-found failures are
// deterministic; everything else, including unmarked errors, is retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Details classifies err by its marker and suggests an operator hint.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error(), Cause: errors.Unwrap(err)}
	for _, m := range markers {
		if errors.Is(err, m.err) {
			details.Kind = m.kind
			break
		}
	}
	switch details.Kind {
	case "validation":
		details.Hint = "inspect the collaborator output or input entity; automatic retry is disabled"
	case "configuration":
		details.Hint = "check config.toml for the referenced setting"
	case "not_found":
		details.Hint = "the referenced entity no longer exists; re-enqueue from the upstream stage"
	case "timeout":
		details.Hint = "the collaborator did not answer in time; the scheduler will retry"
	case "external_tool", "transient":
		details.Hint = "collaborator failure; the scheduler will retry with backoff"
	default:
		details.Hint = "check logs for details"
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
