package preflight_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"alchemist/internal/config"
	"alchemist/internal/preflight"
	"alchemist/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	if result := preflight.CheckDirectoryAccess("test", t.TempDir()); !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope")); result.Passed || result.Detail == "" {
		t.Fatalf("expected failure for missing dir, got %+v", result)
	}
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckDirectoryAccess("test", file); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := preflight.CheckFreeSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := preflight.CheckFreeSpace("disk", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure for an impossible threshold")
	}
	if result := preflight.CheckFreeSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := preflight.RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAllPassesPreparedConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllReportsMissingPieces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""
	cfg.Video.Enabled = true
	cfg.Video.FFmpegBinary = "clearly-not-present-ffmpeg"

	failed := preflight.Failed(preflight.RunAll(cfg))
	names := map[string]bool{}
	for _, r := range failed {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "LLM API key", "FFmpeg"} {
		if !names[want] {
			t.Errorf("expected %q to fail, got %+v", want, failed)
		}
	}
	if names["Sources file"] {
		t.Error("sources file is optional")
	}
}

func TestRunAllFindsStubbedFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg"))
	cfg.Video.Enabled = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	for _, r := range preflight.RunAll(cfg) {
		if r.Name == "FFmpeg" && !r.Passed {
			t.Fatalf("ffmpeg stub not found: %s", r.Detail)
		}
	}
}

func TestCheckWordPress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, _, _ := r.BasicAuth(); user != "editor" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":1}`)
	}))
	defer srv.Close()

	good := config.WordPress{URL: srv.URL, Username: "editor", AppPassword: "pw"}
	if result := preflight.CheckWordPress(context.Background(), good); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	bad := config.WordPress{URL: srv.URL, Username: "intruder", AppPassword: "pw"}
	if result := preflight.CheckWordPress(context.Background(), bad); result.Passed {
		t.Fatal("expected failure for rejected credentials")
	}
	if result := preflight.CheckWordPress(context.Background(), config.WordPress{}); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestCheckLLMMissingKey(t *testing.T) {
	if result := preflight.CheckLLM(context.Background(), config.LLM{}); result.Passed {
		t.Fatal("expected failure without api key")
	}
}

func TestCheckLLMHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()
	result := preflight.CheckLLM(context.Background(), config.LLM{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}
