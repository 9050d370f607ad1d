// Package fetch downloads source pages, optionally through an HTTP proxy.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alchemist/internal/services"
	"alchemist/internal/services/httpapi"
)

const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxPageBytes     = 8 << 20
)

// Config holds the download settings.
type Config struct {
	UserAgent      string
	Proxy          string
	TimeoutSeconds int
}

// Client fetches pages.
type Client struct {
	userAgent string
	http      *httpapi.Client
}

// NewClient builds a client. An unparseable proxy URL is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := strings.TrimSpace(cfg.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, services.Wrap(services.ErrConfiguration, "fetch", "init", fmt.Sprintf("invalid proxy %q", proxy), err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		userAgent: ua,
		http:      httpapi.New("fetch", timeout, &http.Client{Timeout: timeout, Transport: transport}),
	}, nil
}

// Fetch returns the body of rawURL. Non-HTTP schemes are rejected.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "get", fmt.Sprintf("unsupported url %q", rawURL), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "get", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	body, err := c.http.Do(req, "get")
	if err != nil {
		return nil, err
	}
	if len(body) > maxPageBytes {
		body = body[:maxPageBytes]
	}
	return body, nil
}
