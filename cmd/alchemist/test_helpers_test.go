package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alchemist/internal/config"
	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("OPENROUTER_API_KEY", "")
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "config", "alchemist.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nassets_dir = %q\nlog_dir = %q\nstate_dir = %q\nsources_file = %q\n\n[llm]\napi_key = %q\n\n[notifications]\nntfy_topic = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.AssetsDir,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Paths.SourcesFile,
		cfg.LLM.APIKey,
		cfg.Notifications.NtfyTopic,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
