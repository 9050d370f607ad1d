// Package feeds lists candidate source pages from RSS/Atom feeds and a fixed
// URL list kept in a YAML sources file.
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"alchemist/internal/logging"
	"alchemist/internal/services"
)

const defaultConcurrency = 4

// Fetcher downloads a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Sources is the on-disk shape of the sources file.
type Sources struct {
	Feeds []string `yaml:"feeds"`
	URLs  []string `yaml:"urls"`
}

// LoadSources reads path. A missing file is a configuration error.
func LoadSources(path string) (Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Sources{}, services.Wrap(services.ErrConfiguration, "feeds", "load", fmt.Sprintf("sources file %s not found", path), err)
		}
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}
	var sources Sources
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return Sources{}, services.Wrap(services.ErrConfiguration, "feeds", "load", "parse sources file", err)
	}
	return sources, nil
}

// Discoverer implements source discovery. The sources file is re-read on
// every call so edits apply without a restart.
type Discoverer struct {
	path        string
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
}

// NewDiscoverer builds a discoverer reading sourcesFile.
func NewDiscoverer(sourcesFile string, fetcher Fetcher, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		path:        sourcesFile,
		fetcher:     fetcher,
		concurrency: defaultConcurrency,
		logger:      logging.NewComponentLogger(logger, "feeds"),
	}
}

// Discover returns the static URLs followed by every feed item link, in
// sources-file order. A failing feed is logged and skipped; the call fails
// only when every feed failed and nothing else was found.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	sources, err := LoadSources(d.path)
	if err != nil {
		return nil, err
	}
	links := make([][]string, len(sources.Feeds))
	var (
		mu       sync.Mutex
		failures int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for i, feedURL := range sources.Feeds {
		feedURL = strings.TrimSpace(feedURL)
		if feedURL == "" {
			continue
		}
		group.Go(func() error {
			items, err := d.readFeed(groupCtx, feedURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logging.WarnWithContext(d.logger, "feed skipped", "feed_failed",
					logging.String("feed", feedURL),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the feed URL in the sources file"),
					logging.String(logging.FieldImpact, "items from this feed are not discovered this cycle"),
				)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			links[i] = items
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(sources.URLs))
	for _, u := range sources.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	for _, items := range links {
		urls = append(urls, items...)
	}
	if len(urls) == 0 && failures > 0 {
		return nil, services.Wrap(services.ErrTransient, "feeds", "discover", fmt.Sprintf("all %d feeds failed", failures), nil)
	}
	d.logger.Debug("sources discovered",
		logging.Int("feeds", len(sources.Feeds)),
		logging.Int("failed_feeds", failures),
		logging.Int("urls", len(urls)),
	)
	return urls, nil
}

func (d *Discoverer) readFeed(ctx context.Context, feedURL string) ([]string, error) {
	if d.fetcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "feeds", "fetch", "fetcher not configured", nil)
	}
	body, err := d.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "feeds", "parse", feedURL, err)
	}
	items := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link != "" {
			items = append(items, link)
		}
	}
	return items, nil
}
