package monetize_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alchemist/internal/logging"
	"alchemist/internal/monetize"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

const body = `# Solar Pump Guide

A solar pump needs clean panels.

Check the solar pump controller monthly.

Apply for the PM-KUSUM subsidy early.

Keep records of every service visit.`

func seed(t *testing.T, st *store.Store, text string) *store.Content {
	t.Helper()
	content, err := st.InsertContent(context.Background(), &store.Content{
		ContentHash: "hash-" + text[:5],
		Title:       "Solar Pump Guide",
		Body:        text,
		Language:    "en",
		Keywords:    []string{"solar pump", "PM-KUSUM"},
	})
	if err != nil {
		t.Fatalf("InsertContent: %v", err)
	}
	return content
}

func TestRenderHTML(t *testing.T) {
	got := monetize.RenderHTML("# Title\n\nA **solar pump** & [guide](https://example.org/guide).\n\n- a\n- b\n\n1. one\n2. two\n\n| Model | HP |\n|---|---|\n| X | 5 |")
	for _, want := range []string{
		"<h1>Title</h1>",
		"<p>A <strong>solar pump</strong> &amp; <a href=\"https://example.org/guide\">guide</a>.</p>",
		"<ul>\n<li>a</li>\n<li>b</li>\n</ul>",
		"<ol>\n<li>one</li>\n<li>two</li>\n</ol>",
		"<table>",
		"<td>X</td>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("RenderHTML missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "**") {
		t.Fatalf("emphasis left as literal markup:\n%s", got)
	}
	if html := "<p>already</p>"; monetize.RenderHTML(html) != html {
		t.Fatal("HTML bodies must pass through")
	}
}

func TestInjectAdsAndAffiliateLinks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Monetization.AdClientID = "123"
	cfg.Monetization.AdSlotID = "456"
	cfg.Monetization.AdEveryParagraphs = 2
	cfg.Monetization.AffiliateTag = "alchemist-21"
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, body)
	inj := monetize.NewInjector(cfg, st, logging.NewNop())

	outcome := inj.Inject(context.Background(), content.ID)
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("expected monetized content, got %s", outcome)
	}
	got, _ := st.GetContent(context.Background(), content.ID)
	if got.Status != store.ContentMonetized {
		t.Fatalf("status = %s", got.Status)
	}
	if n := strings.Count(got.Body, `class="ad-unit"`); n != 1 {
		t.Fatalf("expected one ad unit for four paragraphs every two, got %d\n%s", n, got.Body)
	}
	if !strings.Contains(got.Body, "ca-pub-123") || !strings.Contains(got.Body, `data-ad-slot="456"`) {
		t.Fatalf("ad unit not configured: %s", got.Body)
	}
	if n := strings.Count(got.Body, `rel="sponsored noopener noreferrer"`); n != 2 {
		t.Fatalf("expected one link per keyword, got %d\n%s", n, got.Body)
	}
	if !strings.Contains(got.Body, `href="https://www.amazon.in/s?k=solar+pump&amp;tag=alchemist-21"`) {
		t.Fatalf("affiliate URL missing: %s", got.Body)
	}
	if !strings.Contains(got.Body, "Check the solar pump controller") {
		t.Fatalf("only the first occurrence may be linked: %s", got.Body)
	}

	if again := inj.Inject(context.Background(), content.ID); again.Kind != stage.SuccessNoWork {
		t.Fatalf("second run must be a no-op, got %s", again)
	}
}

func TestInjectSkipsExistingAnchors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Monetization.AffiliateTag = "tag"
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, `<p><a href="/x">solar pump</a> and a second solar pump</p><script>var k = "PM-KUSUM";</script>`)
	inj := monetize.NewInjector(cfg, st, logging.NewNop())

	if outcome := inj.Inject(context.Background(), content.ID); outcome.Kind != stage.SuccessNew {
		t.Fatalf("inject: %s", outcome)
	}
	got, _ := st.GetContent(context.Background(), content.ID)
	if strings.Count(got.Body, "amazon.in") != 1 {
		t.Fatalf("expected a single link outside the anchor: %s", got.Body)
	}
	if !strings.Contains(got.Body, `<a href="/x">solar pump</a> and a second <a href=`) {
		t.Fatalf("link must land on the plain text occurrence: %s", got.Body)
	}
	if !strings.Contains(got.Body, `var k = "PM-KUSUM";`) {
		t.Fatalf("script bodies must be untouched: %s", got.Body)
	}
}

func TestInjectUsesProductMap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Monetization.AffiliateTag = "tag"
	path := filepath.Join(testsupport.BaseDir(cfg), "products.yaml")
	yaml := "products:\n  - keyword: controller\n    search_term: solar pump controller 5hp\n  - keyword: \"\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write products: %v", err)
	}
	products, err := monetize.LoadProducts(path)
	if err != nil || len(products) != 1 {
		t.Fatalf("LoadProducts = %v, %v", products, err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, body)
	inj := monetize.NewInjector(cfg, st, logging.NewNop(), monetize.WithProducts(products))

	if outcome := inj.Inject(context.Background(), content.ID); outcome.Kind != stage.SuccessNew {
		t.Fatalf("inject: %s", outcome)
	}
	got, _ := st.GetContent(context.Background(), content.ID)
	if !strings.Contains(got.Body, "k=solar+pump+controller+5hp") || strings.Count(got.Body, "amazon.in") != 1 {
		t.Fatalf("expected only the mapped product link: %s", got.Body)
	}
}

func TestLoadProductsMissingFile(t *testing.T) {
	products, err := monetize.LoadProducts(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || products != nil {
		t.Fatalf("missing file must be empty: %v %v", products, err)
	}
}

func TestInjectDegradedStillAdvances(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	content := seed(t, st, body)

	outcome := monetize.NewInjector(cfg, st, logging.NewNop()).Inject(context.Background(), content.ID)
	if outcome.Kind != stage.SuccessNew {
		t.Fatalf("inject: %s", outcome)
	}
	got, _ := st.GetContent(context.Background(), content.ID)
	meta, _ := got.Metadata["monetization"].(map[string]any)
	if got.Status != store.ContentMonetized || meta["degraded"] != true {
		t.Fatalf("expected degraded monetization, got %s %v", got.Status, got.Metadata)
	}
}

func TestInjectRejectsMissingAndErroredContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	inj := monetize.NewInjector(cfg, st, logging.NewNop())

	if outcome := inj.Inject(context.Background(), 42); outcome.Kind != stage.Terminal || !errors.Is(outcome.Err, services.ErrNotFound) {
		t.Fatalf("missing content must be terminal, got %s", outcome)
	}
	content := seed(t, st, body)
	if err := st.SetContentStatus(context.Background(), content.ID, store.ContentErrorGeneration, "bad"); err != nil {
		t.Fatalf("SetContentStatus: %v", err)
	}
	if outcome := inj.Inject(context.Background(), content.ID); outcome.Kind != stage.Terminal {
		t.Fatalf("errored content must be terminal, got %s", outcome)
	}
}
