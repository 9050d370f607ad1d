package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"alchemist/internal/dedup"
	"alchemist/internal/ingest"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

const page = `<html><head><title>t</title><script>var x = 1;</script></head>
<body><nav>Home | About</nav>
<article><h1>Pump care</h1>
<p>Clean the   panels
weekly.</p></article>
<footer>copyright</footer></body></html>`

func TestExtractTextPrefersArticle(t *testing.T) {
	text, err := ingest.ExtractText([]byte(page), 0)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Pump care Clean the panels weekly." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractTextFallsBackToBody(t *testing.T) {
	text, err := ingest.ExtractText([]byte(`<html><body><script>x()</script><p>Only body</p></body></html>`), 4)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Only" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestScrapeStoresNewRawRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fetcher := &testsupport.FakeFetcher{Pages: map[string]string{"https://example.org/a": page}}
	scraper := ingest.NewScraper(cfg, st, fetcher, logging.NewNop())

	outcome := scraper.Scrape(context.Background(), "https://example.org/a")
	if outcome.Kind != stage.SuccessNew || outcome.EntityID == 0 {
		t.Fatalf("expected new raw row, got %s", outcome)
	}
	raw, err := st.GetRaw(context.Background(), outcome.EntityID)
	if err != nil || raw == nil {
		t.Fatalf("GetRaw: %v %v", raw, err)
	}
	if raw.Status != store.RawNew {
		t.Fatalf("status = %s", raw.Status)
	}
	if !strings.Contains(raw.Payload, "Clean the panels weekly.") || strings.Contains(raw.Payload, "copyright") {
		t.Fatalf("unexpected payload %q", raw.Payload)
	}

	again := scraper.Scrape(context.Background(), "https://example.org/a")
	if again.Kind != stage.SuccessNoWork {
		t.Fatalf("expected no work on repeat, got %s", again)
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("repeat scrape fetched again: %d calls", fetcher.Calls())
	}
}

func TestScrapeFetchFailureInsertsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fetcher := &testsupport.FakeFetcher{Err: services.Wrap(services.ErrTransient, "fetch", "get", "connection reset", nil)}
	scraper := ingest.NewScraper(cfg, st, fetcher, logging.NewNop())

	outcome := scraper.Scrape(context.Background(), "https://example.org/down")
	if outcome.Kind != stage.Transient {
		t.Fatalf("expected transient, got %s", outcome)
	}
	known, err := st.URLExists(context.Background(), "https://example.org/down")
	if err != nil {
		t.Fatalf("URLExists: %v", err)
	}
	if known {
		t.Fatal("failed scrape inserted a row")
	}
}

func TestScrapeRejectsBlankURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	scraper := ingest.NewScraper(cfg, st, &testsupport.FakeFetcher{}, logging.NewNop())
	if outcome := scraper.Scrape(context.Background(), "  "); outcome.Kind != stage.Terminal {
		t.Fatalf("expected terminal, got %s", outcome)
	}
}

func newParser(t *testing.T, llm *testsupport.FakeLLM) (*ingest.Parser, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return ingest.NewParser(cfg, st, llm, llm, logging.NewNop()), st
}

func insertRaw(t *testing.T, st *store.Store, url string) *store.RawDatum {
	t.Helper()
	raw, err := st.InsertRaw(context.Background(), url, "Solar pump X manual text")
	if err != nil {
		t.Fatalf("InsertRaw: %v", err)
	}
	return raw
}

func rawStatus(t *testing.T, st *store.Store, id int64) store.RawStatus {
	t.Helper()
	raw, err := st.GetRaw(context.Background(), id)
	if err != nil || raw == nil {
		t.Fatalf("GetRaw(%d): %v %v", id, raw, err)
	}
	return raw.Status
}

func TestParseExtractsFact(t *testing.T) {
	llm := &testsupport.FakeLLM{Responses: []string{`{"pump_model":"X"}`}, Vector: []float64{0.1, 0.2, 0.3}}
	parser, st := newParser(t, llm)
	raw := insertRaw(t, st, "https://example.org/a")

	outcome := parser.Parse(context.Background(), raw.ID)
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected new fact, got %s", outcome)
	}
	fact, err := st.GetFact(context.Background(), outcome.EntityID)
	if err != nil || fact == nil {
		t.Fatalf("GetFact: %v %v", fact, err)
	}
	if fact.Processed {
		t.Fatal("new fact must not be processed")
	}
	if fact.Data["pump_model"] != "X" || fact.Language != "en" || fact.RawID != raw.ID {
		t.Fatalf("unexpected fact %+v", fact)
	}
	if fact.EmbeddingHash == "" || len(fact.Embedding) != 3 {
		t.Fatalf("embedding not stored: %+v", fact)
	}
	if fact.Category != testsupport.NewConfig(t).Niche.Topic {
		t.Fatalf("category = %q", fact.Category)
	}
	if got := rawStatus(t, st, raw.ID); got != store.RawParsed {
		t.Fatalf("raw status = %s", got)
	}
	if inputs := llm.EmbedInputs(); len(inputs) != 1 || inputs[0] != `{"pump_model":"x"}` {
		t.Fatalf("embed input = %v", inputs)
	}

	repeat := parser.Parse(context.Background(), raw.ID)
	if repeat.Kind != stage.SuccessNoWork {
		t.Fatalf("expected no work on parsed raw, got %s", repeat)
	}
}

func TestParseNearDuplicateMarksSecondRaw(t *testing.T) {
	llm := &testsupport.FakeLLM{Responses: []string{`{"pump_model":"X"}`}, Vector: []float64{0.5, 0.5}}
	parser, st := newParser(t, llm)
	first := insertRaw(t, st, "https://example.org/a")
	second := insertRaw(t, st, "https://example.org/b")

	if outcome := parser.Parse(context.Background(), first.ID); outcome.Kind != stage.SuccessNew {
		t.Fatalf("first parse: %s", outcome)
	}
	outcome := parser.Parse(context.Background(), second.ID)
	if outcome.Kind != stage.SuccessNoWork {
		t.Fatalf("expected duplicate no work, got %s", outcome)
	}
	facts, err := st.QueryFacts(context.Background(), store.FactFilter{})
	if err != nil {
		t.Fatalf("QueryFacts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected one fact, got %d", len(facts))
	}
	if got := rawStatus(t, st, second.ID); got != store.RawDuplicateParsed {
		t.Fatalf("second raw status = %s", got)
	}
	if got := rawStatus(t, st, first.ID); got != store.RawParsed {
		t.Fatalf("first raw status = %s", got)
	}
}

func TestParseFinishesRowWhoseFactWasStored(t *testing.T) {
	vector := []float64{0.2, 0.4}
	llm := &testsupport.FakeLLM{Responses: []string{`{"pump_model":"X"}`}, Vector: vector}
	parser, st := newParser(t, llm)
	raw := insertRaw(t, st, "https://example.org/a")
	fact, err := st.InsertFact(context.Background(), &store.Fact{
		RawID: raw.ID, SourceURL: raw.SourceURL, Category: "pumps", Language: "en",
		Data: map[string]any{"pump_model": "x"}, EmbeddingHash: dedup.EmbeddingHash(vector),
	})
	if err != nil {
		t.Fatalf("InsertFact: %v", err)
	}

	outcome := parser.Parse(context.Background(), raw.ID)
	if outcome.Kind != stage.SuccessNew || outcome.EntityID != fact.ID {
		t.Fatalf("expected the stored fact to be reported, got %s", outcome)
	}
	if got := rawStatus(t, st, raw.ID); got != store.RawParsed {
		t.Fatalf("raw status = %s, want PARSED", got)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name   string
		llm    *testsupport.FakeLLM
		status store.RawStatus
	}{
		{"empty output", &testsupport.FakeLLM{Responses: []string{"   "}, Vector: []float64{1}}, store.RawFailedParsing},
		{"prose", &testsupport.FakeLLM{Responses: []string{"I could not find anything"}, Vector: []float64{1}}, store.RawFailedJSON},
		{"array", &testsupport.FakeLLM{Responses: []string{`[{"pump_model":"X"}]`}, Vector: []float64{1}}, store.RawFailedJSON},
		{"empty object", &testsupport.FakeLLM{Responses: []string{`{}`}, Vector: []float64{1}}, store.RawFailedParsing},
		{"empty vector", &testsupport.FakeLLM{Responses: []string{`{"pump_model":"X"}`}}, store.RawFailedEmbedding},
		{"embed rejected", &testsupport.FakeLLM{
			Responses: []string{`{"pump_model":"X"}`},
			EmbedErr:  services.Wrap(services.ErrValidation, "llm", "embed", "input too long", nil),
		}, store.RawFailedEmbedding},
		{"model rejected", &testsupport.FakeLLM{
			Err: services.Wrap(services.ErrValidation, "llm", "complete", "empty content", nil),
		}, store.RawFailedParsing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, st := newParser(t, tt.llm)
			raw := insertRaw(t, st, "https://example.org/a")
			outcome := parser.Parse(context.Background(), raw.ID)
			if outcome.Kind != stage.Terminal {
				t.Fatalf("expected terminal, got %s", outcome)
			}
			if got := rawStatus(t, st, raw.ID); got != tt.status {
				t.Fatalf("raw status = %s, want %s", got, tt.status)
			}
			facts, _ := st.QueryFacts(context.Background(), store.FactFilter{})
			if len(facts) != 0 {
				t.Fatalf("rejected parse stored %d facts", len(facts))
			}
		})
	}
}

func TestParseTransientLeavesRawNew(t *testing.T) {
	llm := &testsupport.FakeLLM{Err: services.Wrap(services.ErrTransient, "llm", "complete", "status 503", nil)}
	parser, st := newParser(t, llm)
	raw := insertRaw(t, st, "https://example.org/a")

	outcome := parser.Parse(context.Background(), raw.ID)
	if outcome.Kind != stage.Transient {
		t.Fatalf("expected transient, got %s", outcome)
	}
	if got := rawStatus(t, st, raw.ID); got != store.RawNew {
		t.Fatalf("raw status = %s", got)
	}
}

func TestParseEmbeddingTransientLeavesRawNew(t *testing.T) {
	llm := &testsupport.FakeLLM{
		Responses: []string{`{"pump_model":"X"}`},
		EmbedErr:  services.Wrap(services.ErrTimeout, "llm", "embed", "deadline", nil),
	}
	parser, st := newParser(t, llm)
	raw := insertRaw(t, st, "https://example.org/a")
	if outcome := parser.Parse(context.Background(), raw.ID); outcome.Kind != stage.Transient {
		t.Fatalf("expected transient, got %s", outcome)
	}
	if got := rawStatus(t, st, raw.ID); got != store.RawNew {
		t.Fatalf("raw status = %s", got)
	}
}

func TestParseMissingRawIsTerminal(t *testing.T) {
	parser, _ := newParser(t, &testsupport.FakeLLM{})
	outcome := parser.Parse(context.Background(), 999)
	if outcome.Kind != stage.Terminal || !errors.Is(outcome.Err, services.ErrNotFound) {
		t.Fatalf("expected terminal not found, got %s", outcome)
	}
}

func TestParseDetectsHindiAndCategory(t *testing.T) {
	llm := &testsupport.FakeLLM{
		Responses: []string{"```json\n{\"category\":\"subsidy\",\"gov_schemes\":[{\"name\":\"PM KUSUM योजना\"}]}\n```"},
		Vector:    []float64{0.9},
	}
	parser, st := newParser(t, llm)
	raw := insertRaw(t, st, "https://example.org/hi")
	outcome := parser.Parse(context.Background(), raw.ID)
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected new fact, got %s", outcome)
	}
	fact, _ := st.GetFact(context.Background(), outcome.EntityID)
	if fact.Language != "hi" || fact.Category != "subsidy" {
		t.Fatalf("unexpected fact language=%q category=%q", fact.Language, fact.Category)
	}
}

type staticDiscoverer []string

func (d staticDiscoverer) Discover(context.Context) ([]string, error) { return d, nil }

func TestNewURLsDropsKnownAndRepeats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	insertRaw(t, st, "https://example.org/known")

	urls, err := ingest.NewURLs(context.Background(), st, staticDiscoverer{
		"https://example.org/new", " ", "https://example.org/known", "https://example.org/new", "https://example.org/other",
	})
	if err != nil {
		t.Fatalf("NewURLs: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://example.org/new" || urls[1] != "https://example.org/other" {
		t.Fatalf("unexpected urls %v", urls)
	}
	if _, err := ingest.NewURLs(context.Background(), st, nil); err == nil {
		t.Fatal("expected error without discoverer")
	}
}
