package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"alchemist/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.SourcesFile = filepath.Join(base, "sources.yaml")
	cfgVal.Niche.TargetLanguages = []string{"en", "hi"}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMinArticleWords overrides the quality gate word minimum.
func WithMinArticleWords(words int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.MinArticleWords = words
	}
}

// WithMaxAttempts overrides the scheduler attempt ceiling.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.MaxAttempts = attempts
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
