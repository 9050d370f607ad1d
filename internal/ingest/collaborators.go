package ingest

import "context"

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Completer produces text from a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SourceDiscoverer lists candidate page URLs.
type SourceDiscoverer interface {
	Discover(ctx context.Context) ([]string, error)
}
