package monetize

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
)

const (
	defaultAdEvery     = 3
	affiliateSearchURL = "https://www.amazon.in/s"
	affiliateRel       = "sponsored noopener noreferrer"
)

// Injector adds ad units and affiliate links to generated content.
type Injector struct {
	cfg      *config.Config
	store    *store.Store
	products []Product
	logger   *slog.Logger
}

// Option configures an Injector.
type Option func(*Injector)

// WithProducts sets the affiliate product map. Without one the content
// keywords are linked with themselves as search terms.
func WithProducts(products []Product) Option {
	return func(i *Injector) { i.products = append([]Product(nil), products...) }
}

// NewInjector constructs the monetization stage.
func NewInjector(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Injector {
	inj := &Injector{cfg: cfg, store: st, logger: logging.NewComponentLogger(logger, "monetize")}
	for _, opt := range opts {
		if opt != nil {
			opt(inj)
		}
	}
	return inj
}

// Inject monetizes content and advances it to MONETIZED. Content that is
// already MONETIZED or PUBLISHED is left as is.
func (i *Injector) Inject(ctx context.Context, contentID int64) stage.Outcome {
	if i == nil || i.cfg == nil || i.store == nil {
		return stage.Reject("injector not configured",
			services.Wrap(services.ErrConfiguration, "monetize", "init", "config and store are required", nil))
	}
	ctx = services.WithEntityID(ctx, contentID)
	logger := logging.WithContext(ctx, i.logger)

	content, err := i.store.GetContent(ctx, contentID)
	if err != nil {
		return stage.Retry("load content", err)
	}
	if content == nil {
		return stage.Reject("content missing",
			services.Wrap(services.ErrNotFound, "monetize", "load", fmt.Sprintf("content %d does not exist", contentID), nil))
	}
	if outcome, done := i.settled(content); done {
		return outcome
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(RenderHTML(content.Body)))
	if err != nil {
		return stage.Reject("parse body", services.Wrap(services.ErrValidation, "monetize", "parse", "article body is not parseable", err))
	}
	body := doc.Find("body")

	mcfg := i.cfg.Monetization
	ads := 0
	if strings.TrimSpace(mcfg.AdClientID) != "" {
		ads = insertAds(body, adUnit(mcfg.AdClientID, mcfg.AdSlotID), mcfg.AdEveryParagraphs)
	}
	var linked []string
	if tag := strings.TrimSpace(mcfg.AffiliateTag); tag != "" {
		for _, product := range i.candidates(content) {
			if linkFirst(body, product.Keyword, affiliateURL(product.SearchTerm, tag)) {
				linked = append(linked, product.Keyword)
			}
		}
	}
	degraded := mcfg.AdClientID == "" && mcfg.AffiliateTag == ""
	if degraded {
		logging.WarnWithContext(logger, "monetization degraded", "monetization_degraded",
			logging.String(logging.FieldErrorHint, "set monetization.ad_client_id or monetization.affiliate_tag"),
			logging.String(logging.FieldImpact, "content is published without ads or affiliate links"),
		)
	}

	rendered, err := body.Html()
	if err != nil {
		return stage.Reject("render body", services.Wrap(services.ErrValidation, "monetize", "render", "render monetized body", err))
	}
	if content.Metadata == nil {
		content.Metadata = map[string]any{}
	}
	content.Metadata["monetization"] = map[string]any{
		"ad_units":        ads,
		"affiliate_links": linked,
		"degraded":        degraded,
	}
	content.Body = strings.TrimSpace(rendered)
	content.Status = store.ContentMonetized

	if err := i.store.UpdateContent(ctx, content); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			if current, loadErr := i.store.GetContent(ctx, contentID); loadErr == nil && current != nil {
				if outcome, done := i.settled(current); done {
					return outcome
				}
			}
		}
		return stage.Retry("store monetized content", err)
	}
	logger.Info("content monetized",
		logging.Int("ad_units", ads),
		logging.Int("affiliate_links", len(linked)),
		logging.Bool("degraded", degraded),
	)
	return stage.New(contentID, "content monetized")
}

// settled reports the outcome for content that is past or off the GENERATED step.
func (i *Injector) settled(content *store.Content) (stage.Outcome, bool) {
	switch content.Status {
	case store.ContentGenerated:
		return stage.Outcome{}, false
	case store.ContentMonetized, store.ContentPublished:
		return stage.NoWork(content.ID, "already monetized"), true
	default:
		return stage.Reject("content not monetizable", services.Wrap(services.ErrValidation, "monetize", "status",
			fmt.Sprintf("content %d is %s", content.ID, content.Status), nil)), true
	}
}

func (i *Injector) candidates(content *store.Content) []Product {
	if len(i.products) > 0 {
		return i.products
	}
	out := make([]Product, 0, len(content.Keywords))
	for _, kw := range content.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, Product{Keyword: kw, SearchTerm: kw})
		}
	}
	return out
}

func adUnit(clientID, slotID string) string {
	client := strings.TrimSpace(clientID)
	if !strings.HasPrefix(client, "ca-pub-") {
		client = "ca-pub-" + client
	}
	client = html.EscapeString(client)
	return `<div class="ad-unit" style="margin: 20px auto; text-align: center;">` +
		`<script async src="https://pagead2.googlesyndication.com/pagead/js/adsbygoogle.js?client=` + client + `" crossorigin="anonymous"></script>` +
		`<ins class="adsbygoogle" style="display:block; text-align:center;" data-ad-layout="in-article" data-ad-format="fluid"` +
		` data-ad-client="` + client + `" data-ad-slot="` + html.EscapeString(strings.TrimSpace(slotID)) + `"></ins>` +
		`<script>(adsbygoogle = window.adsbygoogle || []).push({});</script></div>`
}

// insertAds places unit after every nth paragraph, never after the last one.
func insertAds(body *goquery.Selection, unit string, every int) int {
	if every <= 0 {
		every = defaultAdEvery
	}
	paragraphs := body.Find("p")
	count := paragraphs.Length()
	inserted := 0
	paragraphs.Each(func(idx int, p *goquery.Selection) {
		if (idx+1)%every == 0 && idx < count-1 {
			p.AfterHtml(unit)
			inserted++
		}
	})
	return inserted
}

func affiliateURL(term, tag string) string {
	return affiliateSearchURL + "?" + url.Values{"k": {term}, "tag": {tag}}.Encode()
}

// linkFirst wraps the first occurrence of keyword in an affiliate anchor.
// Text inside anchors, scripts, styles, and headings is skipped.
func linkFirst(root *goquery.Selection, keyword, href string) bool {
	if keyword == "" {
		return false
	}
	linked := false
	walkText(root, func(node *goquery.Selection) bool {
		text := node.Text()
		idx := indexFold(text, keyword)
		if idx < 0 {
			return false
		}
		end := idx + len(keyword)
		node.ReplaceWithHtml(html.EscapeString(text[:idx]) +
			`<a href="` + html.EscapeString(href) + `" target="_blank" rel="` + affiliateRel + `">` +
			html.EscapeString(text[idx:end]) + `</a>` + html.EscapeString(text[end:]))
		linked = true
		return true
	})
	return linked
}

// walkText visits text nodes in document order until fn returns true.
func walkText(sel *goquery.Selection, fn func(*goquery.Selection) bool) bool {
	stop := false
	sel.Contents().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		switch goquery.NodeName(child) {
		case "#text":
			stop = fn(child)
		case "a", "script", "style", "h1", "h2", "h3", "h4", "h5", "h6", "#comment":
		default:
			stop = walkText(child, fn)
		}
		return !stop
	})
	return stop
}

func indexFold(s, substr string) int {
	n := len(substr)
	for i := range s {
		if i+n > len(s) {
			break
		}
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
