package feeds_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"alchemist/internal/services"
	"alchemist/internal/services/feeds"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := s[url]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "stub", "fetch", url, nil)
	}
	return []byte(body), nil
}

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Agri news</title>
<item><title>Subsidy</title><link>https://news.example/subsidy</link></item>
<item><title>Pumps</title><link>https://news.example/pumps</link></item>
</channel></rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Gov</title>
<entry><title>Scheme</title><link href="https://gov.example/scheme"/><id>1</id></entry>
</feed>`

func writeSources(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	return path
}

func TestDiscoverCombinesURLsAndFeeds(t *testing.T) {
	path := writeSources(t, strings.Join([]string{
		"urls:",
		"  - https://static.example/page",
		"  - \"  \"",
		"feeds:",
		"  - https://feeds.example/rss",
		"  - https://feeds.example/broken",
		"  - https://feeds.example/atom",
	}, "\n"))
	fetcher := stubFetcher{
		"https://feeds.example/rss":    rssFeed,
		"https://feeds.example/atom":   atomFeed,
		"https://feeds.example/broken": "not a feed",
	}
	urls, err := feeds.NewDiscoverer(path, fetcher, nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		"https://static.example/page",
		"https://news.example/subsidy",
		"https://news.example/pumps",
		"https://gov.example/scheme",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
}

func TestDiscoverFailsWhenEveryFeedFails(t *testing.T) {
	path := writeSources(t, "feeds:\n  - https://feeds.example/gone\n")
	_, err := feeds.NewDiscoverer(path, stubFetcher{}, nil).Discover(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestDiscoverMissingSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := feeds.NewDiscoverer(path, stubFetcher{}, nil).Discover(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDiscoverReloadsSourcesFile(t *testing.T) {
	path := writeSources(t, "urls:\n  - https://a.example/1\n")
	discoverer := feeds.NewDiscoverer(path, stubFetcher{}, nil)
	if urls, _ := discoverer.Discover(context.Background()); len(urls) != 1 {
		t.Fatalf("first discover = %v", urls)
	}
	if err := os.WriteFile(path, []byte("urls:\n  - https://a.example/1\n  - https://a.example/2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if urls, _ := discoverer.Discover(context.Background()); len(urls) != 2 {
		t.Fatalf("second discover = %v", urls)
	}
}
