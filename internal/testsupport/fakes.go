package testsupport

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// FakeLLM is a scripted language model. Complete pops queued responses in
// order and then repeats the last one; Embed returns Vector unless
// EmbedErr is set.
type FakeLLM struct {
	mu          sync.Mutex
	Responses   []string
	Err         error
	Vector      []float64
	EmbedErr    error
	CompleteFn  func(prompt string) (string, error)
	prompts     []string
	embedInputs []string
}

// Complete returns the next scripted response.
func (f *FakeLLM) Complete(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.CompleteFn != nil {
		return f.CompleteFn(prompt)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	resp := f.Responses[0]
	if len(f.Responses) > 1 {
		f.Responses = f.Responses[1:]
	}
	return resp, nil
}

// Embed returns the configured vector.
func (f *FakeLLM) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedInputs = append(f.embedInputs, text)
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	return append([]float64(nil), f.Vector...), nil
}

// Prompts returns every prompt seen so far.
func (f *FakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// EmbedInputs returns every text passed to Embed.
func (f *FakeLLM) EmbedInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embedInputs...)
}

// FakeFetcher serves pages from memory.
type FakeFetcher struct {
	mu    sync.Mutex
	Pages map[string]string
	Err   error
	calls int
}

// ErrPageNotFound is returned by FakeFetcher for unknown URLs.
var ErrPageNotFound = errors.New("page not found")

// Fetch returns the page registered for url.
func (f *FakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	page, ok := f.Pages[strings.TrimSpace(url)]
	if !ok {
		return nil, ErrPageNotFound
	}
	return []byte(page), nil
}

// Calls reports how many fetches were attempted.
func (f *FakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Words builds a body of n whitespace-separated words.
func Words(n int, word string) string {
	if n <= 0 {
		return ""
	}
	if word == "" {
		word = "word"
	}
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}
