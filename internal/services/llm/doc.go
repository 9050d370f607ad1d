// Package llm provides an OpenRouter-compatible client for chat completions
// and embeddings.
//
// Complete and Embed satisfy the language model collaborator interfaces
// declared by the ingest, generation, distribution, and feedback packages.
// Errors carry services markers: empty output and 4xx rejections are
// ErrValidation, 401/403 are ErrConfiguration, 429/5xx and network failures
// are ErrTransient. Stages map those markers onto terminal or transient
// outcomes.
//
// The client retries HTTP 408/429/5xx, empty content, and network timeouts
// in-call with exponential backoff (base 1s, max 10s, 3 attempts by default)
// and honours Retry-After. Context cancellation aborts retries immediately.
//
// DecodeLLMJSON and DecodeObject tolerate code fences and surrounding prose.
package llm
