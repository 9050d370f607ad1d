package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "images", "7", "7_img_0.png")

	if err := WriteFileAtomic(dst, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "png" {
		t.Fatalf("content mismatch: got %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "narration.mp3")
	if err := WriteFileAtomic(dst, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(dst, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if FileExists(filepath.Join(dir, "missing")) {
		t.Fatal("missing file reported as existing")
	}
	if FileExists(dir) {
		t.Fatal("directory reported as file")
	}
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Fatal("existing file not found")
	}
}
