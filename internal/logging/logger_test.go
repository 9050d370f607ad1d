package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/services"
)

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file", logging.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, data)
	}
	if record["msg"] != "hello file" || record["level"] != "info" || record["k"] != "v" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestConsoleLoggerFormatsComponentAndOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "scheduler").Info("task finished", logging.String("task", "parse_raw"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO scheduler: task finished task=parse_raw") {
		t.Fatalf("unexpected console line %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no colour codes for file output, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := logging.ParseLevel("invalid"); got != slog.LevelInfo {
		t.Fatalf("expected info, got %v", got)
	}
	if got := logging.ParseLevel("WARNING"); got != slog.LevelWarn {
		t.Fatalf("expected warn, got %v", got)
	}
}

func TestForStageAppliesOverride(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := config.Default()
	cfg.Logging.StageOverrides = map[string]string{"parse_raw": "error"}

	logging.ForStage(base, &cfg, "parse_raw").Warn("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected warn suppressed by override, got %s", buf.String())
	}
	logging.ForStage(base, &cfg, "scrape_url").Debug("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected unaffected stage to log, got %s", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTask(ctx, "parse_raw")
	ctx = services.WithTaskID(ctx, 123)
	ctx = services.WithStage(ctx, "parse")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldTask] != "parse_raw" {
		t.Fatalf("task = %v", record[logging.FieldTask])
	}
	if record[logging.FieldTaskID] != float64(123) {
		t.Fatalf("task_id = %v", record[logging.FieldTaskID])
	}
	if record[logging.FieldStage] != "parse" {
		t.Fatalf("stage = %v", record[logging.FieldStage])
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation_id = %v", record[logging.FieldCorrelationID])
	}
}

func TestCleanupOldLogsKeepsActiveFile(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	active := filepath.Join(dir, "alchemist.log")
	for _, path := range []string{old, active} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -40)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), dir, "*.log", 30, active)
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	if _, err := os.Stat(active); err != nil {
		t.Fatalf("expected active log kept: %v", err)
	}
}

func TestWarnWithContextFillsMissingFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "publish declined", "publish_declined",
		logging.Platform("WORDPRESS"),
		logging.ContentID(9),
		logging.String(logging.FieldImpact, "content stays MONETIZED"),
	)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, data)
	}
	if record[logging.FieldEventType] != "publish_declined" {
		t.Fatalf("event_type = %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] != "check logs for details" {
		t.Fatalf("error_hint = %v", record[logging.FieldErrorHint])
	}
	if record[logging.FieldImpact] != "content stays MONETIZED" {
		t.Fatalf("impact = %v", record[logging.FieldImpact])
	}
	if record[logging.FieldPlatform] != "WORDPRESS" || record[logging.FieldContentID] != float64(9) {
		t.Fatalf("unexpected record: %v", record)
	}
}
