package analytics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alchemist/internal/services"
	"alchemist/internal/services/analytics"
	"alchemist/internal/store"
)

func TestFetchParsesSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("url") != "https://site.example/post" || r.URL.Query().Get("published_id") != "3" {
			t.Errorf("query = %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`{"metrics": [
			{"type": "views", "value": 120, "recorded_at": "2026-10-01T08:00:00Z"},
			{"type": "CLICKS", "value": 4, "recorded_at": "yesterday"}
		]}`))
	}))
	defer srv.Close()

	client := analytics.NewClient(analytics.Config{SourceURL: srv.URL + "/metrics", APIKey: "secret"})
	samples, err := client.Fetch(context.Background(), store.Published{ID: 3, ExternalURL: "https://site.example/post"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples = %+v", samples)
	}
	if samples[0].Type != store.MetricViews || samples[0].Value != 120 {
		t.Fatalf("first sample = %+v", samples[0])
	}
	if !samples[0].RecordedAt.Equal(time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("recorded_at = %v", samples[0].RecordedAt)
	}
	if samples[1].Type != store.MetricClicks || samples[1].RecordedAt.IsZero() {
		t.Fatalf("second sample = %+v", samples[1])
	}
}

func TestFetchErrors(t *testing.T) {
	if _, err := analytics.NewClient(analytics.Config{}).Fetch(context.Background(), store.Published{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := analytics.NewClient(analytics.Config{SourceURL: srv.URL}).Fetch(context.Background(), store.Published{ID: 1})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
