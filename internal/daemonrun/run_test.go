package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alchemist/internal/daemonrun"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/testsupport"
	"alchemist/internal/workflow"
)

func TestBuildStagesWiresPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publishing.WordPress.URL = "https://blog.example/wp-json"
	cfg.Publishing.WordPress.Username = "editor"
	cfg.Publishing.WordPress.AppPassword = "pw"
	cfg.Metrics.SourceURL = "https://metrics.example/v1"
	st := testsupport.MustOpenStore(t, cfg)

	stages, err := daemonrun.BuildStages(cfg, st, logging.NewNop(), notifications.NewService(cfg))
	if err != nil {
		t.Fatalf("BuildStages: %v", err)
	}
	if stages.Discoverer == nil || stages.Scraper == nil || stages.Parser == nil || stages.Generator == nil ||
		stages.Injector == nil || stages.Optimizer == nil || stages.Publisher == nil ||
		stages.Collector == nil || stages.Analyzer == nil {
		t.Fatalf("stages not fully wired: %+v", stages)
	}
	registry, err := workflow.NewPipeline(cfg, st, stages)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if len(registry.Names()) != len(workflow.TaskNames()) {
		t.Fatalf("registered %v", registry.Names())
	}
}

func TestBuildStagesRejectsBadProxy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scrape.Proxy = "://nope"
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := daemonrun.BuildStages(cfg, st, logging.NewNop(), notifications.NewService(cfg)); err == nil {
		t.Fatal("expected proxy error")
	}
}

func TestRunFailsPreflightWithoutLLMKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""
	err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{})
	if err == nil || !strings.Contains(err.Error(), "LLM API key") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: "warn"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, logging.LogFileName)); err != nil {
		t.Fatalf("log pointer missing: %v", err)
	}
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		t.Fatalf("database not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StateDir, "alchemist.pid")); !os.IsNotExist(err) {
		t.Fatalf("pid file left behind: %v", err)
	}
}
