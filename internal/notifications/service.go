package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alchemist/internal/config"
)

const userAgent = "Alchemist/0.1"

// Event names a notification kind.
type Event string

const (
	// EventTaskExhausted fires when a task run used every attempt.
	EventTaskExhausted Event = "task_exhausted"
	// EventContentPublished fires after content reaches a platform.
	EventContentPublished Event = "content_published"
	// EventDirectivesEmitted fires when the analyzer stores new directives.
	EventDirectivesEmitted Event = "directives_emitted"
	// EventError reports an operational failure outside a task run.
	EventError Event = "error"
	// EventTest is sent by the CLI to verify delivery.
	EventTest Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventTaskExhausted:     cfg.Notifications.Errors,
			EventError:             cfg.Notifications.Errors,
			EventContentPublished:  cfg.Notifications.Published,
			EventDirectivesEmitted: cfg.Notifications.Directives,
			EventTest:              true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTaskExhausted:
		return message{
			title:    "Alchemist - Task Exhausted",
			body:     fmt.Sprintf("❌ %s #%s gave up after %s attempts: %s", field(payload, "task"), field(payload, "task_id"), field(payload, "attempts"), field(payload, "error")),
			tags:     []string{"alchemist", "task", "exhausted"},
			priority: "high",
		}, true
	case EventContentPublished:
		body := fmt.Sprintf("✅ Published to %s: %s", field(payload, "platform"), field(payload, "title"))
		if url := field(payload, "url"); url != "" {
			body += "\n" + url
		}
		return message{
			title: "Alchemist - Published",
			body:  body,
			tags:  []string{"alchemist", "publish", strings.ToLower(field(payload, "platform"))},
		}, true
	case EventDirectivesEmitted:
		return message{
			title: "Alchemist - Directives",
			body:  fmt.Sprintf("📈 %s new directives awaiting review", field(payload, "count")),
			tags:  []string{"alchemist", "directives"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := field(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := field(payload, "error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Alchemist - Error",
			body:     b.String(),
			tags:     []string{"alchemist", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Alchemist - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"alchemist", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func field(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	if err, ok := value.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
