package ingest

import (
	"context"
	"errors"
	"strings"

	"alchemist/internal/store"
)

var errNoDiscoverer = errors.New("source discoverer not configured")

// NewURLs asks the discoverer for candidate URLs and drops blanks, repeats,
// and URLs already in the store. Order is preserved.
func NewURLs(ctx context.Context, st *store.Store, discoverer SourceDiscoverer) ([]string, error) {
	if discoverer == nil {
		return nil, errNoDiscoverer
	}
	candidates, err := discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(candidates))
	fresh := make([]string, 0, len(candidates))
	for _, url := range candidates {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		known, err := st.URLExists(ctx, url)
		if err != nil {
			return nil, err
		}
		if !known {
			fresh = append(fresh, url)
		}
	}
	return fresh, nil
}
