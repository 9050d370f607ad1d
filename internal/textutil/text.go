package textutil

import (
	"strings"
	"unicode/utf8"
)

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// CollapseWhitespace joins the whitespace-separated fields of text with a
// single space.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// TruncateRunes returns at most limit runes of text. A non-positive limit
// returns text unchanged.
func TruncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// FirstLine returns the first non-empty line of text with surrounding
// whitespace and leading markdown heading markers removed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
