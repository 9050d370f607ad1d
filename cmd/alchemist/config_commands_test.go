package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)
	requireContains(t, out, "Platforms: WORDPRESS")
	requireNotContains(t, out, "llm.api_key is empty")

	target := filepath.Join(t.TempDir(), "alchemist.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected config init to refuse an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[scheduler]\nworkers = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, env.configPath); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestInitProvisionsDatabase(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"init"}, env.configPath)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "Database schema ready")
	requireContains(t, out, env.cfg.DatabasePath())
	requireContains(t, out, "alchemist run")
	if _, err := os.Stat(env.cfg.DatabasePath()); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}
