// Package analytics reads per-post performance samples from a JSON metrics
// endpoint.
package analytics

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"alchemist/internal/feedback"
	"alchemist/internal/services"
	"alchemist/internal/services/httpapi"
	"alchemist/internal/store"
)

// Config holds the endpoint settings.
type Config struct {
	SourceURL      string
	APIKey         string
	TimeoutSeconds int
}

// Client is a feedback.MetricsSource.
type Client struct {
	cfg  Config
	http *httpapi.Client
	now  func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http.HTTP = client
		}
	}
}

// NewClient constructs a metrics client.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: httpapi.New("analytics", time.Duration(cfg.TimeoutSeconds)*time.Second, nil),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type sample struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	RecordedAt string  `json:"recorded_at"`
}

type response struct {
	Metrics []sample `json:"metrics"`
}

// Fetch returns the samples reported for one published item. Samples with
// an unreadable timestamp are stamped with the fetch time; unknown metric
// types are passed through for the collector to drop.
func (c *Client) Fetch(ctx context.Context, published store.Published) ([]feedback.Sample, error) {
	base := strings.TrimSpace(c.cfg.SourceURL)
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "analytics", "fetch", "metrics source_url not configured", nil)
	}
	endpoint, err := url.Parse(base)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "analytics", "fetch", "invalid source_url", err)
	}
	query := endpoint.Query()
	query.Set("url", published.ExternalURL)
	query.Set("published_id", strconv.FormatInt(published.ID, 10))
	endpoint.RawQuery = query.Encode()

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	var resp response
	if err := c.http.JSON(ctx, http.MethodGet, endpoint.String(), "fetch", headers, nil, &resp); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	samples := make([]feedback.Sample, 0, len(resp.Metrics))
	for _, m := range resp.Metrics {
		recorded, err := time.Parse(time.RFC3339, strings.TrimSpace(m.RecordedAt))
		if err != nil {
			recorded = now
		}
		samples = append(samples, feedback.Sample{
			Type:       store.MetricType(strings.ToUpper(strings.TrimSpace(m.Type))),
			Value:      m.Value,
			RecordedAt: recorded.UTC(),
		})
	}
	return samples, nil
}
