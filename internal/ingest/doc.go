// Package ingest implements the top of the pipeline: scraping pages into raw
// rows, turning raw rows into structured facts through the language model,
// and discovering new source URLs.
//
// Both stages are idempotent. Scrape skips URLs the store already holds and
// Parse only acts on raw rows still in NEW. The near-duplicate gate runs
// before the fact insert, with the store's unique embedding hash as the
// backstop when two workers race past the pre-check.
package ingest
