package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/services/llm"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/textutil"
)

const (
	seoMaxTokens    = 500
	seoTemperature  = 0.3
	seoArticleRunes = 5000
	metaTitleRunes  = 60
	metaDescRunes   = 160
	seoMetadataKey  = "seo"
)

// InternalLink suggests a phrase that could link to another article.
type InternalLink struct {
	Keyword     string `json:"keyword"`
	TargetTopic string `json:"target_topic"`
}

// SEO is the metadata OptimizeSEO stores under metadata.seo.
type SEO struct {
	MetaTitle       string         `json:"meta_title"`
	MetaDescription string         `json:"meta_description"`
	InternalLinks   []InternalLink `json:"internal_links"`
}

// Optimizer generates SEO metadata for content.
type Optimizer struct {
	cfg    *config.Config
	store  *store.Store
	llm    Completer
	logger *slog.Logger
}

// NewOptimizer constructs the SEO stage.
func NewOptimizer(cfg *config.Config, st *store.Store, completer Completer, logger *slog.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, store: st, llm: completer, logger: logging.NewComponentLogger(logger, "seo")}
}

// OptimizeSEO asks the model for a meta title, description, and internal
// link ideas and merges them into metadata.seo.
func (o *Optimizer) OptimizeSEO(ctx context.Context, contentID int64) stage.Outcome {
	if o == nil || o.cfg == nil || o.store == nil || o.llm == nil {
		return stage.Reject("optimizer not configured",
			services.Wrap(services.ErrConfiguration, "seo", "init", "config, store, and llm are required", nil))
	}
	ctx = services.WithEntityID(ctx, contentID)
	logger := logging.WithContext(ctx, o.logger)

	content, err := o.store.GetContent(ctx, contentID)
	if err != nil {
		return stage.Retry("load content", err)
	}
	if content == nil {
		return stage.Reject("content missing",
			services.Wrap(services.ErrNotFound, "seo", "load", fmt.Sprintf("content %d does not exist", contentID), nil))
	}
	if content.Status.IsError() {
		return stage.Reject("content failed earlier",
			services.Wrap(services.ErrValidation, "seo", "status", fmt.Sprintf("content %d is %s", contentID, content.Status), nil))
	}

	raw, err := o.llm.Complete(ctx, seoPrompt(content.Title, o.cfg.Niche.Topic, textutil.TruncateRunes(content.Body, seoArticleRunes)),
		seoMaxTokens, seoTemperature)
	if err != nil {
		return stage.Classify("seo suggestions", err)
	}
	seo, err := decodeSEO(raw)
	if err != nil {
		logging.WarnWithContext(logger, "seo suggestions rejected", "seo_malformed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the model output for missing meta fields"),
			logging.String(logging.FieldImpact, "content is published without SEO metadata"),
		)
		return stage.Reject("malformed seo suggestions", services.Wrap(services.ErrValidation, "seo", "decode", "seo suggestions", err))
	}
	if err := o.store.SetContentMetadata(ctx, contentID, seoMetadataKey, seo); err != nil {
		return stage.Retry("store seo metadata", err)
	}
	logger.Info("seo metadata stored",
		logging.String("meta_title", seo.MetaTitle),
		logging.Int("internal_links", len(seo.InternalLinks)),
	)
	return stage.New(contentID, "seo optimized")
}

// decodeSEO requires all three fields to be present and the meta fields to
// be non-empty. Meta text is clipped to search engine display limits.
func decodeSEO(raw string) (SEO, error) {
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		return SEO{}, err
	}
	for _, key := range []string{"meta_title", "meta_description", "internal_links"} {
		if _, ok := obj[key]; !ok {
			return SEO{}, fmt.Errorf("missing %s", key)
		}
	}
	var seo SEO
	if err := llm.DecodeLLMJSON(raw, &seo); err != nil {
		return SEO{}, err
	}
	seo.MetaTitle = textutil.TruncateRunes(strings.TrimSpace(seo.MetaTitle), metaTitleRunes)
	seo.MetaDescription = textutil.TruncateRunes(strings.TrimSpace(seo.MetaDescription), metaDescRunes)
	if seo.MetaTitle == "" || seo.MetaDescription == "" {
		return SEO{}, errors.New("empty meta title or description")
	}
	links := seo.InternalLinks[:0]
	for _, link := range seo.InternalLinks {
		if link.Keyword = strings.TrimSpace(link.Keyword); link.Keyword != "" {
			link.TargetTopic = strings.TrimSpace(link.TargetTopic)
			links = append(links, link)
		}
	}
	seo.InternalLinks = links
	if seo.InternalLinks == nil {
		seo.InternalLinks = []InternalLink{}
	}
	return seo, nil
}

// seoFromMetadata reads metadata.seo back from a stored content row.
func seoFromMetadata(metadata map[string]any) SEO {
	raw, ok := metadata[seoMetadataKey].(map[string]any)
	if !ok {
		return SEO{}
	}
	title, _ := raw["meta_title"].(string)
	desc, _ := raw["meta_description"].(string)
	return SEO{MetaTitle: title, MetaDescription: desc}
}

func seoPrompt(title, topic, article string) string {
	return fmt.Sprintf(`Given the following article and its primary topic %q, suggest an optimized meta title (max 60 chars), a meta description (max 160 chars), and 3 to 5 internal linking opportunities: phrases within the article that could link to another article in the %q domain.
Return JSON only:
{"meta_title": "...", "meta_description": "...", "internal_links": [{"keyword": "...", "target_topic": "..."}]}

Article:
%s`, title, topic, article)
}
