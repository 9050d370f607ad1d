package main

import (
	"context"
	"encoding/json"
	"testing"

	"alchemist/internal/store"
)

func TestDirectivesListAckDismiss(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	first, err := env.store.InsertDirective(ctx, &store.Directive{
		Agent:  "content_strategist",
		Action: "increase_volume",
		Params: map[string]any{"topic": "pm-kusum"},
		Reason: "high engagement",
	})
	if err != nil {
		t.Fatalf("insert directive: %v", err)
	}
	second, err := env.store.InsertDirective(ctx, &store.Directive{Agent: "seo_optimizer", Action: "rewrite_meta"})
	if err != nil {
		t.Fatalf("insert directive: %v", err)
	}

	out, _, err := runCLI(t, []string{"directives", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("directives list: %v", err)
	}
	requireContains(t, out, "increase_volume")
	requireContains(t, out, "topic=pm-kusum")
	requireContains(t, out, "rewrite_meta")

	out, _, err = runCLI(t, []string{"directives", "ack", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("directives ack: %v", err)
	}
	requireContains(t, out, "Directive 1 acknowledged")

	out, _, err = runCLI(t, []string{"directives", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("directives list: %v", err)
	}
	requireNotContains(t, out, "increase_volume")
	requireContains(t, out, "rewrite_meta")

	if _, _, err := runCLI(t, []string{"directives", "dismiss", "1"}, env.configPath); err == nil {
		t.Fatal("expected dismissing an acknowledged directive to fail")
	}
	if _, _, err := runCLI(t, []string{"directives", "ack", "42"}, env.configPath); err == nil {
		t.Fatal("expected unknown directive to fail")
	}

	if _, _, err := runCLI(t, []string{"directives", "dismiss", "2"}, env.configPath); err != nil {
		t.Fatalf("directives dismiss: %v", err)
	}
	out, _, err = runCLI(t, []string{"directives", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("directives list: %v", err)
	}
	requireContains(t, out, "No directives")

	out, _, err = runCLI(t, []string{"directives", "list", "--all", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("directives list --all: %v", err)
	}
	var views []directiveView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 directives, got %d", len(views))
	}
	if views[0].ID != first.ID || views[0].Status != string(store.DirectiveAcknowledged) {
		t.Fatalf("unexpected first directive: %+v", views[0])
	}
	if views[1].ID != second.ID || views[1].Status != string(store.DirectiveDismissed) {
		t.Fatalf("unexpected second directive: %+v", views[1])
	}
}
