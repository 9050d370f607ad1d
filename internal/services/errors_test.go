package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"alchemist/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "parse", "complete", "llm call failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"parse", "complete", "llm call failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "parse", "decode", "bad json", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "publish", "", "no target", nil), false},
		{"not found", fmt.Errorf("load: %w", services.ErrNotFound), false},
		{"canceled", context.Canceled, false},
		{"timeout", services.Wrap(services.ErrTimeout, "scrape", "fetch", "slow", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "scrape", "fetch", "503", nil), true},
		{"unmarked", errors.New("connection reset"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDetailsClassifiesMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "seo", "decode", "missing meta_title", nil)
	details := services.Details(err)
	if details.Kind != "validation" {
		t.Fatalf("expected validation kind, got %q", details.Kind)
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}
	if services.Details(nil).Kind != "" {
		t.Fatal("expected empty details for nil")
	}
	if services.Details(errors.New("x")).Kind != "unknown" {
		t.Fatal("expected unknown kind for unmarked error")
	}
}
