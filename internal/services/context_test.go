package services_test

import (
	"context"
	"testing"

	"alchemist/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTask(ctx, "parse_raw")
	ctx = services.WithTaskID(ctx, 42)
	ctx = services.WithStage(ctx, "parse")
	ctx = services.WithEntityID(ctx, 7)
	ctx = services.WithRequestID(ctx, "req-123")

	if name, ok := services.TaskFromContext(ctx); !ok || name != "parse_raw" {
		t.Fatalf("unexpected task: %v %v", name, ok)
	}
	if id, ok := services.TaskIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "parse" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if id, ok := services.EntityIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected entity id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithEntityID(ctx, 0)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected blank stage to be ignored")
	}
	if _, ok := services.EntityIDFromContext(ctx); ok {
		t.Fatal("expected zero entity id to be ignored")
	}
}
