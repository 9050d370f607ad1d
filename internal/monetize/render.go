package monetize

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown renders CommonMark plus GitHub tables, strikethrough, and autolinks.
// Raw HTML inside markdown is dropped.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts a model-written markdown body to HTML. Bodies that
// already contain paragraph markup are returned unchanged.
func RenderHTML(body string) string {
	if strings.Contains(body, "<p>") || strings.Contains(body, "<p ") {
		return body
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "<p>" + html.EscapeString(body) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}
