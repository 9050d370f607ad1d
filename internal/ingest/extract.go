package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"alchemist/internal/textutil"
)

const noiseSelector = "script, style, nav, header, footer, noscript, iframe, form, aside"

// contentSelectors are tried in order; the first non-empty match wins.
var contentSelectors = []string{"article", "main", ".main-content"}

// ExtractText returns the readable text of an HTML document, preferring the
// main content region, collapsed to single spaces and truncated to maxRunes.
func ExtractText(body []byte, maxRunes int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	var text string
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if candidate := textutil.CollapseWhitespace(sel.Text()); candidate != "" {
				text = candidate
				break
			}
		}
	}
	if text == "" {
		text = textutil.CollapseWhitespace(doc.Find("body").Text())
	}
	if text == "" {
		text = textutil.CollapseWhitespace(doc.Text())
	}
	return strings.TrimSpace(textutil.TruncateRunes(text, maxRunes)), nil
}
