package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"alchemist/internal/config"
	"alchemist/internal/dedup"
	"alchemist/internal/language"
	"alchemist/internal/logging"
	"alchemist/internal/services"
	"alchemist/internal/services/llm"
	"alchemist/internal/stage"
	"alchemist/internal/store"
	"alchemist/internal/textutil"
)

// Parser turns NEW raw rows into structured facts.
type Parser struct {
	cfg      *config.Config
	store    *store.Store
	llm      Completer
	embedder Embedder
	gate     *dedup.Engine
	logger   *slog.Logger
}

// NewParser constructs the parse stage.
func NewParser(cfg *config.Config, st *store.Store, completer Completer, embedder Embedder, logger *slog.Logger) *Parser {
	return &Parser{
		cfg:      cfg,
		store:    st,
		llm:      completer,
		embedder: embedder,
		gate:     dedup.NewEngine(st),
		logger:   logging.NewComponentLogger(logger, "parser"),
	}
}

// Parse extracts a fact from raw row rawID.
//
// Transport failures leave the raw row in NEW and return Transient. Empty or
// malformed model output and embedding rejections move the row to the matching
// FAILED_* status and return Terminal. A near duplicate marks the row
// DUPLICATE_PARSED and returns SuccessNoWork. The fact insert and the PARSED
// transition commit together.
func (p *Parser) Parse(ctx context.Context, rawID int64) stage.Outcome {
	if p == nil || p.cfg == nil || p.store == nil || p.llm == nil || p.embedder == nil {
		return stage.Reject("parser not configured",
			services.Wrap(services.ErrConfiguration, "parse", "init", "store, completer, and embedder are required", nil))
	}
	ctx = services.WithEntityID(ctx, rawID)
	logger := logging.WithContext(ctx, p.logger)

	raw, err := p.store.GetRaw(ctx, rawID)
	if err != nil {
		return stage.Retry("load raw", err)
	}
	if raw == nil {
		return stage.Reject("raw row missing",
			services.Wrap(services.ErrNotFound, "parse", "load", fmt.Sprintf("raw %d does not exist", rawID), nil))
	}
	if raw.Status != store.RawNew {
		logger.Debug("raw row already handled", logging.String("status", string(raw.Status)))
		return stage.NoWork(rawID, "raw already "+strings.ToLower(string(raw.Status)))
	}

	prompt := extractionPrompt(p.topic(), textutil.TruncateRunes(raw.Payload, defaultMaxTextChars))
	output, err := p.llm.Complete(ctx, prompt, p.cfg.LLM.MaxTokens, p.cfg.LLM.Temperature)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			return p.fail(ctx, logger, raw, store.RawFailedParsing, "model output rejected", err)
		case services.Retryable(err) || errors.Is(err, context.Canceled):
			return stage.Retry("extract facts", err)
		default:
			return stage.Reject("extract facts", err)
		}
	}
	if strings.TrimSpace(output) == "" {
		return p.fail(ctx, logger, raw, store.RawFailedParsing, "model returned empty output",
			services.Wrap(services.ErrValidation, "parse", "extract", "empty model output", nil))
	}

	data, err := llm.DecodeObject(output)
	if err != nil {
		return p.fail(ctx, logger, raw, store.RawFailedJSON, "model output is not a JSON object",
			services.Wrap(services.ErrValidation, "parse", "decode", "malformed model output", err))
	}
	if len(data) == 0 {
		return p.fail(ctx, logger, raw, store.RawFailedParsing, "model returned an empty object",
			services.Wrap(services.ErrValidation, "parse", "decode", "empty fact payload", nil))
	}

	canonical, err := dedup.NormalizePayload(data)
	if err != nil {
		return p.fail(ctx, logger, raw, store.RawFailedJSON, "payload cannot be canonicalized",
			services.Wrap(services.ErrValidation, "parse", "normalize", "unencodable payload", err))
	}

	vector, err := p.embedder.Embed(ctx, canonical)
	if err != nil {
		if services.Retryable(err) || errors.Is(err, context.Canceled) {
			return stage.Retry("embed fact", err)
		}
		return p.fail(ctx, logger, raw, store.RawFailedEmbedding, "embedding rejected", err)
	}
	if len(vector) == 0 {
		return p.fail(ctx, logger, raw, store.RawFailedEmbedding, "embedding is empty",
			services.Wrap(services.ErrValidation, "parse", "embed", "empty embedding vector", nil))
	}
	hash := dedup.EmbeddingHash(vector)

	verdict, err := p.gate.CheckEmbedding(ctx, hash)
	if err != nil {
		return stage.Retry("near duplicate gate", err)
	}
	if verdict == dedup.Duplicate {
		return p.duplicate(ctx, logger, raw, hash)
	}

	fact, err := p.store.InsertFactAndMarkRaw(ctx, &store.Fact{
		RawID:         raw.ID,
		SourceURL:     raw.SourceURL,
		Category:      p.category(data),
		Language:      language.Detect(canonical),
		Data:          data,
		Embedding:     vector,
		EmbeddingHash: hash,
	})
	if err != nil {
		if dedup.IsDuplicate(err) {
			return p.duplicate(ctx, logger, raw, hash)
		}
		return stage.Retry("store fact", err)
	}
	logger.Info("fact extracted",
		logging.FactID(fact.ID),
		logging.String("language", fact.Language),
		logging.String("category", fact.Category),
	)
	return stage.New(fact.ID, "fact extracted")
}

// duplicate settles a raw row whose embedding hash is already stored. A hit on
// a fact extracted from this same row finishes that earlier parse instead.
func (p *Parser) duplicate(ctx context.Context, logger *slog.Logger, raw *store.RawDatum, hash string) stage.Outcome {
	existing, err := p.store.FactByEmbeddingHash(ctx, hash)
	if err != nil {
		return stage.Retry("load matching fact", err)
	}
	if existing != nil && existing.RawID == raw.ID {
		if err := p.store.SetRawStatus(ctx, raw.ID, store.RawParsed, ""); err != nil {
			return stage.Retry("mark raw parsed", err)
		}
		logger.Info("fact already extracted from this page", logging.FactID(existing.ID))
		return stage.New(existing.ID, "fact already extracted")
	}
	if err := p.store.SetRawStatus(ctx, raw.ID, store.RawDuplicateParsed, ""); err != nil {
		return stage.Retry("mark raw duplicate", err)
	}
	logger.Info("near duplicate fact skipped", logging.URL(raw.SourceURL))
	return stage.NoWork(raw.ID, "near duplicate")
}

func (p *Parser) fail(ctx context.Context, logger *slog.Logger, raw *store.RawDatum, status store.RawStatus, message string, cause error) stage.Outcome {
	if err := p.store.SetRawStatus(ctx, raw.ID, status, message); err != nil {
		return stage.Retry("mark raw failed", err)
	}
	logging.WarnWithContext(logger, "parse rejected", "parse_rejected",
		logging.String("status", string(status)),
		logging.String("reason", message),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "requeue the raw row after adjusting the extraction prompt"),
		logging.String(logging.FieldImpact, "page produces no fact until requeued"),
	)
	return stage.Reject(message, cause)
}

func (p *Parser) topic() string {
	if p.cfg != nil && strings.TrimSpace(p.cfg.Niche.Topic) != "" {
		return p.cfg.Niche.Topic
	}
	return "the configured niche"
}

func (p *Parser) category(data map[string]any) string {
	if value, ok := data["category"].(string); ok {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return p.topic()
}
