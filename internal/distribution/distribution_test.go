package distribution_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"alchemist/internal/distribution"
	"alchemist/internal/logging"
	"alchemist/internal/notifications"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

type fakeTarget struct {
	mu        sync.Mutex
	posts     []distribution.Post
	uploads   []string
	err       error
	uploadErr error
}

func (f *fakeTarget) Publish(_ context.Context, post distribution.Post) (distribution.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post)
	if f.err != nil {
		return distribution.Result{}, f.err
	}
	return distribution.Result{ExternalID: "77", URL: "https://blog.example/?p=77"}, nil
}

func (f *fakeTarget) UploadAsset(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "15", nil
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func seed(t *testing.T, st *store.Store, status store.ContentStatus) *store.Content {
	t.Helper()
	ctx := context.Background()
	content, err := st.InsertContent(ctx, &store.Content{
		ContentHash: "hash",
		Title:       "Solar Pump Guide",
		Body:        "<p>body</p>",
		Language:    "en",
		Metadata:    map[string]any{"seo": map[string]any{"meta_title": "Pumps", "meta_description": "How to"}},
	})
	if err != nil {
		t.Fatalf("InsertContent: %v", err)
	}
	if status != store.ContentGenerated {
		if err := st.SetContentStatus(ctx, content.ID, status, ""); err != nil {
			t.Fatalf("SetContentStatus: %v", err)
		}
	}
	return content
}

func TestPublishIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, store.ContentMonetized)
	if err := st.AddContentImages(context.Background(), content.ID, "/tmp/a.png", "/tmp/b.png"); err != nil {
		t.Fatalf("AddContentImages: %v", err)
	}
	target := &fakeTarget{}
	notifier := &recordingNotifier{}
	pub := distribution.NewPublisher(st, logging.NewNop(),
		distribution.WithTarget(store.PlatformWordPress, target),
		distribution.WithNotifier(notifier),
	)

	first := pub.Publish(context.Background(), content.ID, "wordpress")
	if first.Kind != stage.SuccessNew {
		t.Fatalf("expected publish, got %s", first)
	}
	second := pub.Publish(context.Background(), content.ID, "WORDPRESS")
	if second.Kind != stage.SuccessNoWork || !strings.Contains(second.Message, "https://blog.example/?p=77") {
		t.Fatalf("second publish must be a no-op returning the URL, got %s", second)
	}
	if len(target.posts) != 1 {
		t.Fatalf("target called %d times", len(target.posts))
	}
	post := target.posts[0]
	if post.MetaTitle != "Pumps" || post.MetaDescription != "How to" || post.FeaturedMedia != "15" {
		t.Fatalf("unexpected post %+v", post)
	}
	if len(target.uploads) != 1 || target.uploads[0] != "/tmp/a.png" {
		t.Fatalf("only the first image is uploaded: %v", target.uploads)
	}
	rows, err := st.QueryPublished(context.Background(), store.PublishedFilter{ContentID: content.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one published row, got %d (%v)", len(rows), err)
	}
	got, _ := st.GetContent(context.Background(), content.ID)
	if got.Status != store.ContentPublished {
		t.Fatalf("status = %s", got.Status)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventContentPublished {
		t.Fatalf("notifications = %v", notifier.events)
	}
}

func TestPublishUploadFailureIsNotFatal(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	content := seed(t, st, store.ContentGenerated)
	if err := st.AddContentImages(context.Background(), content.ID, "/tmp/a.png"); err != nil {
		t.Fatalf("AddContentImages: %v", err)
	}
	target := &fakeTarget{uploadErr: errors.New("413")}
	pub := distribution.NewPublisher(st, logging.NewNop(), distribution.WithTarget(store.PlatformWordPress, target))

	if outcome := pub.Publish(context.Background(), content.ID, "wordpress"); outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected publish, got %s", outcome)
	}
	if target.posts[0].FeaturedMedia != "" {
		t.Fatalf("featured media must be empty: %+v", target.posts[0])
	}
}

func TestPublishFailureClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   stage.Kind
		wantStatus store.ContentStatus
	}{
		{"rate limited", services.Wrap(services.ErrTransient, "wordpress", "publish", "429", nil), stage.Transient, store.ContentMonetized},
		{"timeout", services.Wrap(services.ErrTimeout, "wordpress", "publish", "slow", nil), stage.Transient, store.ContentMonetized},
		{"unauthorized", services.Wrap(services.ErrConfiguration, "wordpress", "publish", "401", nil), stage.Terminal, store.ContentErrorPublish},
		{"bad request", services.Wrap(services.ErrValidation, "wordpress", "publish", "400", nil), stage.Terminal, store.ContentErrorPublish},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
			content := seed(t, st, store.ContentMonetized)
			pub := distribution.NewPublisher(st, logging.NewNop(),
				distribution.WithTarget(store.PlatformWordPress, &fakeTarget{err: tc.err}))

			outcome := pub.Publish(context.Background(), content.ID, "wordpress")
			if outcome.Kind != tc.wantKind {
				t.Fatalf("kind = %s, want %s", outcome.Kind, tc.wantKind)
			}
			got, _ := st.GetContent(context.Background(), content.ID)
			if got.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", got.Status, tc.wantStatus)
			}
			rows, _ := st.QueryPublished(context.Background(), store.PublishedFilter{ContentID: content.ID})
			if len(rows) != 0 {
				t.Fatal("failed publish must not record a row")
			}
		})
	}
}

func TestPublishRejectsBadInput(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	target := &fakeTarget{}
	pub := distribution.NewPublisher(st, logging.NewNop(), distribution.WithTarget(store.PlatformWordPress, target))

	if outcome := pub.Publish(context.Background(), 1, "myspace"); outcome.Kind != stage.Terminal {
		t.Fatalf("unknown platform must be terminal, got %s", outcome)
	}
	if outcome := pub.Publish(context.Background(), 99, "wordpress"); !errors.Is(outcome.Err, services.ErrNotFound) {
		t.Fatalf("missing content must be not found, got %s", outcome)
	}
	content := seed(t, st, store.ContentErrorMonetization)
	if outcome := pub.Publish(context.Background(), content.ID, "wordpress"); outcome.Kind != stage.Terminal {
		t.Fatalf("errored content must be terminal, got %s", outcome)
	}
	if outcome := pub.Publish(context.Background(), content.ID, "youtube"); outcome.Kind != stage.Terminal {
		t.Fatalf("unconfigured platform must be terminal, got %s", outcome)
	}
	if len(target.posts) != 0 {
		t.Fatal("target must not be called for rejected input")
	}
}

func TestOptimizeSEOMergesMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, store.ContentMonetized)
	if err := st.SetContentMetadata(context.Background(), content.ID, "seo", nil); err != nil {
		t.Fatalf("reset seo: %v", err)
	}
	llm := &testsupport.FakeLLM{Responses: []string{"```json\n" + `{"meta_title": "` + strings.Repeat("T", 80) + `", "meta_description": "Keep pumps clean.", "internal_links": [{"keyword": "subsidy", "target_topic": "PM-KUSUM"}, {"keyword": " "}]}` + "\n```"}}
	opt := distribution.NewOptimizer(cfg, st, llm, logging.NewNop())

	outcome := opt.OptimizeSEO(context.Background(), content.ID)
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected seo, got %s", outcome)
	}
	got, _ := st.GetContent(context.Background(), content.ID)
	seo, ok := got.Metadata["seo"].(map[string]any)
	if !ok {
		t.Fatalf("seo metadata missing: %v", got.Metadata)
	}
	if title, _ := seo["meta_title"].(string); len(title) != 60 {
		t.Fatalf("meta title must be clipped to 60 runes: %q", title)
	}
	if links, _ := seo["internal_links"].([]any); len(links) != 1 {
		t.Fatalf("blank links must be dropped: %v", seo["internal_links"])
	}
	if got.Status != store.ContentMonetized {
		t.Fatalf("seo must not change status: %s", got.Status)
	}
}

func TestOptimizeSEORejectsMalformedOutput(t *testing.T) {
	for name, response := range map[string]string{
		"prose":            "Here are some ideas",
		"missing links":    `{"meta_title": "a", "meta_description": "b"}`,
		"empty meta":       `{"meta_title": "", "meta_description": "b", "internal_links": []}`,
		"array not object": `[{"meta_title": "a"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			st := testsupport.MustOpenStore(t, cfg)
			content := seed(t, st, store.ContentMonetized)
			opt := distribution.NewOptimizer(cfg, st, &testsupport.FakeLLM{Responses: []string{response}}, logging.NewNop())

			if outcome := opt.OptimizeSEO(context.Background(), content.ID); outcome.Kind != stage.Terminal {
				t.Fatalf("expected terminal, got %s", outcome)
			}
			got, _ := st.GetContent(context.Background(), content.ID)
			seo, _ := got.Metadata["seo"].(map[string]any)
			if seo["meta_title"] != "Pumps" {
				t.Fatalf("nothing may be written on rejection: %v", got.Metadata)
			}
		})
	}
}

func TestOptimizeSEOTransportFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, store.ContentMonetized)
	llm := &testsupport.FakeLLM{Err: services.Wrap(services.ErrTransient, "llm", "complete", "503", nil)}

	outcome := distribution.NewOptimizer(cfg, st, llm, logging.NewNop()).OptimizeSEO(context.Background(), content.ID)
	if outcome.Kind != stage.Transient {
		t.Fatalf("expected transient, got %s", outcome)
	}
}
