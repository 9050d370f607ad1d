package distribution

import "context"

// Completer is the language model used for SEO suggestions.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Post is the platform-neutral shape of a publish request.
type Post struct {
	Title           string
	Body            string
	Language        string
	Keywords        []string
	MetaTitle       string
	MetaDescription string
	FeaturedMedia   string
}

// Result identifies a published post on the target platform.
type Result struct {
	ExternalID string
	URL        string
}

// Target is a publishing platform.
type Target interface {
	Publish(ctx context.Context, post Post) (Result, error)
	UploadAsset(ctx context.Context, path string) (string, error)
}
