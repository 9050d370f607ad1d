package textutil_test

import (
	"testing"

	"alchemist/internal/textutil"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
		{"सौर पंप योजना", 3},
	}
	for _, tt := range tests {
		if got := textutil.WordCount(tt.input); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := textutil.TruncateRunes("abcdef", 3); got != "abc" {
		t.Fatalf("TruncateRunes ascii = %q", got)
	}
	if got := textutil.TruncateRunes("सौरपंप", 2); got != "सौ" {
		t.Fatalf("TruncateRunes devanagari = %q", got)
	}
	if got := textutil.TruncateRunes("short", 10); got != "short" {
		t.Fatalf("TruncateRunes short = %q", got)
	}
	if got := textutil.TruncateRunes("keep", 0); got != "keep" {
		t.Fatalf("TruncateRunes zero limit = %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := textutil.FirstLine("\n\n## Solar Pump Care \nbody"); got != "Solar Pump Care" {
		t.Fatalf("FirstLine = %q", got)
	}
	if got := textutil.FirstLine("  \n#\n "); got != "" {
		t.Fatalf("FirstLine blank = %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := textutil.CollapseWhitespace("  a \n\n b\t c "); got != "a b c" {
		t.Fatalf("CollapseWhitespace = %q", got)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Solar Pump: E01 Fix!", "solar-pump-e01-fix"},
		{"  --Hello--World--  ", "hello-world"},
		{"सौर", "untitled"},
		{"", "untitled"},
	}
	for _, tt := range tests {
		if got := textutil.Slug(tt.input); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := textutil.SanitizeFileName(" a/b:c?.png "); got != "a-b-c.png" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}
