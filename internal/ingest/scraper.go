package ingest

import (
	"context"
	"log/slog"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/dedup"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

const defaultMaxTextChars = 15000

// Scraper fetches pages and stores their readable text as NEW raw rows.
type Scraper struct {
	store    *store.Store
	fetcher  Fetcher
	maxChars int
	logger   *slog.Logger
}

// NewScraper constructs the scrape stage.
func NewScraper(cfg *config.Config, st *store.Store, fetcher Fetcher, logger *slog.Logger) *Scraper {
	maxChars := defaultMaxTextChars
	if cfg != nil && cfg.Scrape.MaxTextChars > 0 {
		maxChars = cfg.Scrape.MaxTextChars
	}
	return &Scraper{
		store:    st,
		fetcher:  fetcher,
		maxChars: maxChars,
		logger:   logging.NewComponentLogger(logger, "scraper"),
	}
}

// Scrape stores the page at url. A URL that is already stored is a no-op;
// a fetch failure inserts nothing.
func (s *Scraper) Scrape(ctx context.Context, url string) stage.Outcome {
	if s == nil || s.store == nil || s.fetcher == nil {
		return stage.Reject("scraper not configured",
			services.Wrap(services.ErrConfiguration, "scrape", "init", "store and fetcher are required", nil))
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return stage.Reject("missing url", services.Wrap(services.ErrValidation, "scrape", "validate", "url is required", nil))
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.URL(url))

	known, err := s.store.URLExists(ctx, url)
	if err != nil {
		return stage.Retry("check url", err)
	}
	if known {
		logger.Debug("url already scraped")
		return stage.NoWork(0, "url already scraped")
	}

	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		logging.WarnWithContext(logger, "fetch failed", "scrape_fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check proxy settings and target availability"),
			logging.String(logging.FieldImpact, "page will be retried with backoff"),
		)
		return stage.Retry("fetch page", err)
	}

	text, err := ExtractText(body, s.maxChars)
	if err != nil {
		return stage.Reject("extract text", services.Wrap(services.ErrValidation, "scrape", "extract", "unparseable html", err))
	}
	if text == "" {
		return stage.Reject("empty page", services.Wrap(services.ErrValidation, "scrape", "extract", "page has no readable text", nil))
	}

	raw, err := s.store.InsertRaw(ctx, url, text)
	if err != nil {
		if dedup.IsDuplicate(err) {
			logger.Debug("url stored concurrently")
			return stage.NoWork(0, "url already scraped")
		}
		return stage.Retry("store raw", err)
	}
	logger.Info("page scraped",
		logging.Int64(logging.FieldEntityID, raw.ID),
		logging.Int("chars", len([]rune(text))),
	)
	return stage.New(raw.ID, "page scraped")
}
