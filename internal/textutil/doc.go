// Package textutil provides small text helpers shared by the stages: word
// counting for the quality gate, whitespace collapsing and rune-safe
// truncation for scraped text, and filename and slug sanitization for asset
// paths.
package textutil
