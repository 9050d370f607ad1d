package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/dedup"
	"alchemist/internal/language"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/textutil"
)

const maxTitleRunes = 160

// Generator runs the article, image, and video stages.
type Generator struct {
	cfg    *config.Config
	store  *store.Store
	llm    LLM
	images ImageGenerator
	speech SpeechSynthesizer
	video  VideoAssembler
	gate   *dedup.Engine
	logger *slog.Logger
}

// Option wires an optional collaborator.
type Option func(*Generator)

// WithImageGenerator enables GenerateImages and the frames for GenerateVideo.
func WithImageGenerator(images ImageGenerator) Option {
	return func(g *Generator) { g.images = images }
}

// WithSpeechSynthesizer enables narration for GenerateVideo.
func WithSpeechSynthesizer(speech SpeechSynthesizer) Option {
	return func(g *Generator) { g.speech = speech }
}

// WithVideoAssembler enables assembly for GenerateVideo.
func WithVideoAssembler(video VideoAssembler) Option {
	return func(g *Generator) { g.video = video }
}

// NewGenerator constructs the generation stages.
func NewGenerator(cfg *config.Config, st *store.Store, llm LLM, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:    cfg,
		store:  st,
		llm:    llm,
		gate:   dedup.NewEngine(st),
		logger: logging.NewComponentLogger(logger, "generation"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// GenerateArticle writes an article in lang from fact factID.
//
// A quality rejection or model failure leaves the fact unprocessed so a later
// fan-out picks it up again. A duplicate body marks the fact processed and
// returns SuccessNoWork. The content insert and the processed flag commit
// together.
func (g *Generator) GenerateArticle(ctx context.Context, factID int64, lang string) stage.Outcome {
	if g == nil || g.cfg == nil || g.store == nil || g.llm == nil {
		return stage.Reject("generator not configured",
			services.Wrap(services.ErrConfiguration, "generation", "init", "config, store, and llm are required", nil))
	}
	ctx = services.WithEntityID(ctx, factID)
	logger := logging.WithContext(ctx, g.logger).With(logging.String("language", lang))

	code := language.Normalize(lang)
	if !language.Supported(code) {
		return stage.Reject("unsupported language",
			services.Wrap(services.ErrValidation, "generation", "article", fmt.Sprintf("language %q is not supported", lang), nil))
	}

	fact, err := g.store.GetFact(ctx, factID)
	if err != nil {
		return stage.Retry("load fact", err)
	}
	if fact == nil {
		return stage.Reject("fact missing",
			services.Wrap(services.ErrNotFound, "generation", "article", fmt.Sprintf("fact %d does not exist", factID), nil))
	}

	keywords := Keywords(g.cfg.Niche.Topic, fact.Data)
	facts, err := json.MarshalIndent(fact.Data, "", "  ")
	if err != nil {
		return stage.Reject("encode fact", services.Wrap(services.ErrValidation, "generation", "article", "fact payload", err))
	}
	minWords := g.cfg.Generation.MinArticleWords
	prompt := articlePrompt(code, g.cfg.Niche.Topic, string(facts), keywords, minWords)

	body, err := g.llm.Complete(ctx, prompt, g.cfg.Generation.MaxTokens, g.cfg.Generation.Temperature)
	if err != nil {
		if markErr := g.store.SetFactProcessed(ctx, fact.ID, false); markErr != nil {
			logger.Warn("could not reset fact processed flag", logging.Error(markErr))
		}
		return stage.Classify("generate article", err)
	}
	body = strings.TrimSpace(body)

	report := NewQualityGate(g.cfg.Generation).Check(body, keywords)
	if len(report.MissingKeywords) > 0 {
		logger.Info("article missing keywords", logging.Any("missing_keywords", report.MissingKeywords))
	}
	if !report.Passed {
		if err := g.store.SetFactProcessed(ctx, fact.ID, false); err != nil {
			return stage.Retry("reset fact processed", err)
		}
		logging.WarnWithContext(logger, "article rejected by quality gate", "quality_gate_rejected",
			logging.String("reason", report.Reason),
			logging.Int("words", report.Words),
			logging.String(logging.FieldErrorHint, "review the generation prompt or min_article_words"),
			logging.String(logging.FieldImpact, "fact stays unprocessed and is retried by the next generation sweep"),
		)
		return stage.Reject(report.Reason, services.Wrap(services.ErrValidation, "generation", "quality", report.Reason, nil))
	}

	hash := dedup.ContentHash(body)
	verdict, err := g.gate.CheckContent(ctx, hash)
	if err != nil {
		return stage.Retry("exact duplicate gate", err)
	}
	if verdict == dedup.Duplicate {
		return g.duplicate(ctx, logger, fact.ID, hash)
	}

	content, err := g.store.InsertContentAndMarkFact(ctx, &store.Content{
		FactID:      fact.ID,
		ContentHash: hash,
		Title:       Title(body, g.cfg.Niche.Topic, fact.ID),
		Body:        body,
		Language:    code,
		Type:        store.TypeArticle,
		Keywords:    keywords,
		Metadata: map[string]any{
			"fact_id":          fact.ID,
			"source_url":       fact.SourceURL,
			"category":         fact.Category,
			"word_count":       report.Words,
			"missing_keywords": report.MissingKeywords,
		},
	})
	if err != nil {
		if dedup.IsDuplicate(err) {
			return g.duplicate(ctx, logger, fact.ID, hash)
		}
		return stage.Retry("store content", err)
	}
	logger.Info("article generated",
		logging.ContentID(content.ID),
		logging.Int("words", report.Words),
		logging.String("title", content.Title),
	)
	return stage.New(content.ID, "article generated")
}

// duplicate marks the fact processed. When the matching content was generated
// from this same fact, that content is returned as new so its enhancement chain
// still runs.
func (g *Generator) duplicate(ctx context.Context, logger *slog.Logger, factID int64, hash string) stage.Outcome {
	existing, err := g.store.ContentByHash(ctx, hash)
	if err != nil {
		return stage.Retry("load matching content", err)
	}
	if err := g.store.SetFactProcessed(ctx, factID, true); err != nil {
		return stage.Retry("mark fact processed", err)
	}
	if existing != nil && existing.FactID == factID && existing.Status == store.ContentGenerated {
		logger.Info("article already stored for this fact", logging.ContentID(existing.ID))
		return stage.New(existing.ID, "article already stored")
	}
	logger.Info("duplicate article skipped")
	return stage.NoWork(factID, "duplicate article")
}

// Keywords derives the target keywords for a fact: the niche topic, the pump
// model, and the first government scheme name. Blank values are dropped.
func Keywords(topic string, data map[string]any) []string {
	candidates := []string{topic, stringField(data, "pump_model")}
	if schemes, ok := data["gov_schemes"].([]any); ok && len(schemes) > 0 {
		if first, ok := schemes[0].(map[string]any); ok {
			candidates = append(candidates, stringField(first, "name"))
		}
	}
	keywords := make([]string, 0, len(candidates))
	for _, kw := range candidates {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// Title returns the first non-empty line of body without heading markers,
// or "<topic> Guide <factID>" when body has none.
func Title(body, topic string, factID int64) string {
	if title := textutil.FirstLine(body); title != "" {
		return textutil.TruncateRunes(title, maxTitleRunes)
	}
	return fmt.Sprintf("%s Guide %d", topic, factID)
}

func stringField(data map[string]any, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}
