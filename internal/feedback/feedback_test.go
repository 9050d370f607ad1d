package feedback_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"alchemist/internal/feedback"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

type fakeSource struct {
	fail map[int64]bool
	seen []int64
}

func (f *fakeSource) Fetch(_ context.Context, published store.Published) ([]feedback.Sample, error) {
	f.seen = append(f.seen, published.ID)
	if f.fail[published.ID] {
		return nil, errors.New("analytics unavailable")
	}
	return []feedback.Sample{
		{Type: store.MetricViews, Value: 120},
		{Type: store.MetricRevenueUSD, Value: 0.25},
		{Type: store.MetricType("SHARES"), Value: 3},
	}, nil
}

type countingNotifier struct{ events int }

func (c *countingNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	c.events++
	return nil
}

func publish(t *testing.T, st *store.Store, n int) []*store.Published {
	t.Helper()
	ctx := context.Background()
	var out []*store.Published
	for i := range n {
		content, err := st.InsertContent(ctx, &store.Content{ContentHash: fmt.Sprintf("h%d", i), Title: fmt.Sprintf("Guide %d", i), Body: "b", Language: "en"})
		if err != nil {
			t.Fatalf("InsertContent: %v", err)
		}
		row, err := st.InsertPublished(ctx, &store.Published{ContentID: content.ID, Platform: store.PlatformWordPress, ExternalURL: fmt.Sprintf("https://blog.example/%d", i)})
		if err != nil {
			t.Fatalf("InsertPublished: %v", err)
		}
		out = append(out, row)
	}
	return out
}

func TestCollectMetricsWritesSamples(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	rows := publish(t, st, 2)
	source := &fakeSource{fail: map[int64]bool{rows[1].ID: true}}

	outcome := feedback.NewCollector(cfg, st, source, logging.NewNop()).CollectMetrics(context.Background())
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected samples, got %s", outcome)
	}
	metrics, err := st.QueryMetrics(context.Background(), store.MetricFilter{})
	if err != nil {
		t.Fatalf("QueryMetrics: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected two known samples from the healthy item, got %d", len(metrics))
	}
	for _, m := range metrics {
		if m.PublishedID != rows[0].ID {
			t.Fatalf("sample attached to wrong item: %+v", m)
		}
	}
	if len(source.seen) != 2 {
		t.Fatalf("every item must be asked: %v", source.seen)
	}
}

func TestCollectMetricsAllFailingIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	rows := publish(t, st, 2)
	source := &fakeSource{fail: map[int64]bool{rows[0].ID: true, rows[1].ID: true}}

	outcome := feedback.NewCollector(cfg, st, source, logging.NewNop()).CollectMetrics(context.Background())
	if outcome.Kind != stage.Transient {
		t.Fatalf("expected transient, got %s", outcome)
	}
}

func TestCollectMetricsWithoutWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if outcome := feedback.NewCollector(cfg, st, &fakeSource{}, logging.NewNop()).CollectMetrics(context.Background()); outcome.Kind != stage.SuccessNoWork {
		t.Fatalf("empty store must be a no-op, got %s", outcome)
	}
	publish(t, st, 1)
	if outcome := feedback.NewCollector(cfg, st, nil, logging.NewNop()).CollectMetrics(context.Background()); outcome.Kind != stage.SuccessNoWork {
		t.Fatalf("missing source must be a no-op, got %s", outcome)
	}
}

func seedMetrics(t *testing.T, st *store.Store) {
	t.Helper()
	rows := publish(t, st, 1)
	for _, v := range []float64{100, 300} {
		if _, err := st.InsertMetric(context.Background(), &store.Metric{PublishedID: rows[0].ID, Type: store.MetricViews, Value: v}); err != nil {
			t.Fatalf("InsertMetric: %v", err)
		}
	}
}

func TestAnalyzeStoresPendingDirectives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seedMetrics(t, st)
	llm := &testsupport.FakeLLM{Responses: []string{`{"directives": [
		{"agent": "content_generation", "action": "generate_more", "topic_focus": "cleaning", "quantity": 5, "reason": "views are high"},
		{"agent": "seo_distribution", "action": "re_optimize_meta", "content_ids": [1]}
	]}`}}
	notifier := &countingNotifier{}

	outcome := feedback.NewAnalyzer(cfg, st, llm, logging.NewNop(), feedback.WithNotifier(notifier)).Analyze(context.Background())
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected directives, got %s", outcome)
	}
	if prompts := llm.Prompts(); !strings.Contains(prompts[0], `"VIEWS": 200`) {
		t.Fatalf("prompt must carry the averaged views: %s", prompts[0])
	}
	directives, err := st.QueryDirectives(context.Background(), store.DirectiveFilter{})
	if err != nil || len(directives) != 2 {
		t.Fatalf("expected two directives, got %d (%v)", len(directives), err)
	}
	first := directives[0]
	if first.Status != store.DirectivePending || first.Agent != "content_generation" || first.Reason != "views are high" {
		t.Fatalf("unexpected directive %+v", first)
	}
	if first.Params["topic_focus"] != "cleaning" || first.Params["quantity"] != float64(5) {
		t.Fatalf("params = %v", first.Params)
	}
	if _, ok := first.Params["agent"]; ok {
		t.Fatal("known fields must not leak into params")
	}
	if notifier.events != 1 {
		t.Fatalf("notifications = %d", notifier.events)
	}
}

func TestAnalyzeRejectsMalformedOutput(t *testing.T) {
	for name, response := range map[string]string{
		"prose":          "Publish more often.",
		"missing list":   `{"advice": []}`,
		"missing action": `{"directives": [{"agent": "content_generation", "action": "x"}, {"agent": "seo_distribution"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			st := testsupport.MustOpenStore(t, cfg)
			seedMetrics(t, st)

			outcome := feedback.NewAnalyzer(cfg, st, &testsupport.FakeLLM{Responses: []string{response}}, logging.NewNop()).Analyze(context.Background())
			if outcome.Kind != stage.Terminal {
				t.Fatalf("expected terminal, got %s", outcome)
			}
			directives, _ := st.QueryDirectives(context.Background(), store.DirectiveFilter{})
			if len(directives) != 0 {
				t.Fatalf("nothing may be stored, got %d", len(directives))
			}
		})
	}
}

func TestAnalyzeWindowExcludesOldMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seedMetrics(t, st)
	llm := &testsupport.FakeLLM{Responses: []string{`{"directives": []}`}}
	later := func() time.Time { return time.Now().AddDate(0, 0, 30) }

	outcome := feedback.NewAnalyzer(cfg, st, llm, logging.NewNop(), feedback.WithClock(later)).Analyze(context.Background())
	if outcome.Kind != stage.SuccessNoWork {
		t.Fatalf("expected no metrics in window, got %s", outcome)
	}
	if len(llm.Prompts()) != 0 {
		t.Fatal("model must not be called without metrics")
	}
}
