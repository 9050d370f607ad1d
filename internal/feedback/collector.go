package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

const defaultMetricsBatch = 100

var metricTypes = map[store.MetricType]bool{
	store.MetricViews:      true,
	store.MetricClicks:     true,
	store.MetricRevenueUSD: true,
	store.MetricBounceRate: true,
}

// Collector records performance samples for published content.
type Collector struct {
	cfg    *config.Config
	store  *store.Store
	source MetricsSource
	logger *slog.Logger
}

// NewCollector constructs the metrics stage. A nil source disables it.
func NewCollector(cfg *config.Config, st *store.Store, source MetricsSource, logger *slog.Logger) *Collector {
	return &Collector{cfg: cfg, store: st, source: source, logger: logging.NewComponentLogger(logger, "metrics")}
}

// CollectMetrics writes one metric row per sample for a batch of published
// items. A failing item is logged and skipped; the stage is transient only
// when every item failed.
func (c *Collector) CollectMetrics(ctx context.Context) stage.Outcome {
	if c == nil || c.store == nil {
		return stage.Reject("collector not configured",
			services.Wrap(services.ErrConfiguration, "metrics", "init", "store is required", nil))
	}
	if c.source == nil {
		return stage.NoWork(0, "metrics source not configured")
	}
	logger := logging.WithContext(ctx, c.logger)

	limit := defaultMetricsBatch
	if c.cfg != nil && c.cfg.Metrics.BatchSize > 0 {
		limit = c.cfg.Metrics.BatchSize
	}
	items, err := c.store.PublishedForMetrics(ctx, limit)
	if err != nil {
		return stage.Retry("load published", err)
	}
	if len(items) == 0 {
		return stage.NoWork(0, "nothing published yet")
	}

	var (
		written int
		failed  int
		lastErr error
	)
	for _, item := range items {
		if ctx.Err() != nil {
			return stage.Retry("collect metrics", ctx.Err())
		}
		samples, err := c.source.Fetch(ctx, *item)
		if err != nil {
			failed++
			lastErr = err
			logging.WarnWithContext(logger, "metrics fetch failed", "metrics_fetch_failed",
				logging.PublishedID(item.ID),
				logging.URL(item.ExternalURL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.source_url and metrics.api_key"),
				logging.String(logging.FieldImpact, "this item has no samples for the current window"),
			)
			continue
		}
		for _, sample := range samples {
			if !metricTypes[sample.Type] {
				logger.Debug("unknown metric type skipped", logging.String("type", string(sample.Type)))
				continue
			}
			if _, err := c.store.InsertMetric(ctx, &store.Metric{
				PublishedID: item.ID,
				Type:        sample.Type,
				Value:       sample.Value,
				RecordedAt:  sample.RecordedAt,
			}); err != nil {
				return stage.Retry("store metric", err)
			}
			written++
		}
	}
	if failed == len(items) {
		return stage.Retry("collect metrics", services.Wrap(services.ErrTransient, "metrics", "fetch",
			fmt.Sprintf("all %d items failed", failed), lastErr))
	}
	logger.Info("metrics collected", logging.Int("items", len(items)), logging.Int("samples", written), logging.Int("failed", failed))
	if written == 0 {
		return stage.NoWork(0, "no samples reported")
	}
	return stage.New(0, fmt.Sprintf("%d samples recorded", written))
}
