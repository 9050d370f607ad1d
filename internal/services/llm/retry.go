package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"alchemist/internal/services"
)

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op,
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

// classify tags err with the services marker that tells stages whether the
// failure is worth another scheduler attempt.
func classify(op string, err error) error {
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return services.Wrap(services.ErrValidation, "llm", op, "model returned no content", err)
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "llm", op, "credentials rejected", err)
		case statusErr.StatusCode == http.StatusRequestTimeout:
			return services.Wrap(services.ErrTimeout, "llm", op, "request timed out", err)
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "llm", op, "provider unavailable", err)
		default:
			return services.Wrap(services.ErrValidation, "llm", op, "request rejected", err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "llm", op, "deadline exceeded", err)
	}
	return services.Wrap(services.ErrTransient, "llm", op, "request failed", err)
}

func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> base*2, 3 -> base*4.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
