// Package monetize injects ad units and affiliate links into generated
// articles and advances them to MONETIZED.
//
// Markdown bodies are rendered to HTML first. Affiliate links are placed on
// parsed text nodes, so existing anchors, scripts, and styles are never
// rewritten.
package monetize
