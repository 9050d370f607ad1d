// Package httpapi holds the request plumbing shared by the JSON HTTP
// collaborators: status errors, marker classification, and bounded body
// decoding. Retries are left to the scheduler.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alchemist/internal/services"
)

const maxErrorBody = 4 << 10

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request: http %d: %s", e.Service, e.StatusCode, strings.TrimSpace(e.Body))
}

// Client issues JSON requests for one named service.
type Client struct {
	Service string
	HTTP    *http.Client
}

// New returns a Client with the given timeout. A non-positive timeout uses 60s.
func New(service string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{Service: service, HTTP: httpClient}
}

// Do sends req and returns the body of a 2xx response. Failures come back
// classified with a services marker.
func (c *Client) Do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, Classify(c.Service, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(c.Service, op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, Classify(c.Service, op, &StatusError{Service: c.Service, StatusCode: resp.StatusCode, Body: string(snippet)})
	}
	return body, nil
}

// JSON sends payload as a JSON body and decodes the response into out when
// out is non-nil. Headers are applied after Content-Type.
func (c *Client) JSON(ctx context.Context, method, url, op string, headers map[string]string, payload, out any) error {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return services.Wrap(services.ErrValidation, c.Service, op, "encode request", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, c.Service, op, "build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	body, err := c.Do(req, op)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return services.Wrap(services.ErrValidation, c.Service, op, "decode response", err)
	}
	return nil
}

// Classify tags err with the marker that tells stages whether another
// attempt may succeed.
func Classify(service, op string, err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, service, op, "credentials rejected", err)
		case statusErr.StatusCode == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, service, op, "resource not found", err)
		case statusErr.StatusCode == http.StatusRequestTimeout:
			return services.Wrap(services.ErrTimeout, service, op, "request timed out", err)
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, service, op, "service unavailable", err)
		default:
			return services.Wrap(services.ErrValidation, service, op, "request rejected", err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, service, op, "deadline exceeded", err)
	}
	return services.Wrap(services.ErrTransient, service, op, "request failed", err)
}
