package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"alchemist/internal/config"
	"alchemist/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "task exhausted",
			event: notifications.EventTaskExhausted,
			payload: notifications.Payload{
				"task":     "publish_content",
				"task_id":  int64(7),
				"attempts": 3,
				"error":    errors.New("wordpress returned 503"),
			},
			expectTitle:    "Alchemist - Task Exhausted",
			expectMessage:  "❌ publish_content #7 gave up after 3 attempts: wordpress returned 503",
			expectTags:     "alchemist,task,exhausted",
			expectPriority: "high",
		},
		{
			name:  "content published",
			event: notifications.EventContentPublished,
			payload: notifications.Payload{
				"platform": "WORDPRESS",
				"title":    "Solar Pump Guide",
				"url":      "https://blog.example/solar",
			},
			expectTitle:   "Alchemist - Published",
			expectMessage: "✅ Published to WORDPRESS: Solar Pump Guide\nhttps://blog.example/solar",
			expectTags:    "alchemist,publish,wordpress",
		},
		{
			name:          "directives",
			event:         notifications.EventDirectivesEmitted,
			payload:       notifications.Payload{"count": 2},
			expectTitle:   "Alchemist - Directives",
			expectMessage: "📈 2 new directives awaiting review",
			expectTags:    "alchemist,directives",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "scheduler",
				"error":   "database is locked",
			},
			expectTitle:    "Alchemist - Error",
			expectMessage:  "❌ Error with scheduler: database is locked",
			expectTags:     "alchemist,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Errors = true
			cfg.Notifications.Published = true
			cfg.Notifications.Directives = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = false
	cfg.Notifications.Published = false
	cfg.Notifications.Directives = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventTaskExhausted,
		notifications.EventContentPublished,
		notifications.EventDirectivesEmitted,
		notifications.EventError,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
