package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const factColumns = "id, raw_id, source_url, category, language, data_json, embedding_json, embedding_hash, processed, created_at, updated_at"

// FactFilter narrows QueryFacts.
type FactFilter struct {
	Language  string
	Processed *bool
	Since     time.Time
	Limit     int
}

// InsertFact stores a structured fact. A repeated embedding hash returns ErrDuplicate.
func (s *Store) InsertFact(ctx context.Context, fact *Fact) (*Fact, error) {
	builder, err := s.factInsert(fact)
	if err != nil {
		return nil, err
	}
	id, err := s.insert(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("insert fact: %w", err)
	}
	return s.GetFact(ctx, id)
}

// InsertFactAndMarkRaw stores fact and moves its NEW raw row to PARSED in one
// transaction. Neither write lands without the other. A raw row that is no
// longer NEW returns ErrInvalidTransition.
func (s *Store) InsertFactAndMarkRaw(ctx context.Context, fact *Fact) (*Fact, error) {
	builder, err := s.factInsert(fact)
	if err != nil {
		return nil, err
	}
	if fact.RawID <= 0 {
		return nil, errors.New("fact raw id is required")
	}
	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		if id, txErr = txInsert(ctx, tx, builder); txErr != nil {
			return txErr
		}
		res, txErr := txExec(ctx, tx, sq.Update("raw_data").
			Set("status", RawParsed).
			Set("error_message", nil).
			Set("updated_at", s.timestamp()).
			Where(sq.Eq{"id": fact.RawID, "status": RawNew}))
		if txErr != nil {
			return txErr
		}
		return requireAffected(res, fmt.Errorf("raw %d is not NEW: %w", fact.RawID, ErrInvalidTransition))
	})
	if err != nil {
		return nil, fmt.Errorf("insert fact: %w", err)
	}
	return s.GetFact(ctx, id)
}

func (s *Store) factInsert(fact *Fact) (sq.InsertBuilder, error) {
	if fact == nil {
		return sq.InsertBuilder{}, errors.New("fact is nil")
	}
	if fact.Data == nil {
		return sq.InsertBuilder{}, errors.New("fact data must be a JSON object")
	}
	data, err := encodeJSON(fact.Data, "{}")
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	var embedding any
	if len(fact.Embedding) > 0 {
		encoded, err := encodeJSON(fact.Embedding, "[]")
		if err != nil {
			return sq.InsertBuilder{}, err
		}
		embedding = encoded
	}
	now := s.timestamp()
	return sq.Insert("structured_facts").
		Columns("raw_id", "source_url", "category", "language", "data_json", "embedding_json",
			"embedding_hash", "processed", "created_at", "updated_at").
		Values(nullableInt(fact.RawID), strings.TrimSpace(fact.SourceURL), fact.Category, fact.Language, data, embedding,
			nullableString(fact.EmbeddingHash), boolToInt(fact.Processed), now, now), nil
}

// SetFactProcessed records whether generation consumed the fact.
func (s *Store) SetFactProcessed(ctx context.Context, id int64, processed bool) error {
	res, err := s.execBuilder(ctx, sq.Update("structured_facts").
		Set("processed", boolToInt(processed)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set fact processed: %w", err)
	}
	return s.checkAffected(ctx, res, "structured_facts", id)
}

// GetFact fetches a fact by identifier; it returns nil when absent.
func (s *Store) GetFact(ctx context.Context, id int64) (*Fact, error) {
	facts, err := s.QueryFacts(ctx, FactFilter{}, id)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, nil
	}
	return facts[0], nil
}

// QueryFacts lists facts oldest first.
func (s *Store) QueryFacts(ctx context.Context, filter FactFilter, ids ...int64) ([]*Fact, error) {
	builder := sq.Select(factColumns).From("structured_facts").OrderBy("created_at", "id")
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}
	if filter.Language != "" {
		builder = builder.Where(sq.Eq{"language": filter.Language})
	}
	if filter.Processed != nil {
		builder = builder.Where(sq.Eq{"processed": boolToInt(*filter.Processed)})
	}
	builder = applyWindow(builder, "created_at", filter.Since, filter.Limit)
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	return collect(rows, scanFact)
}

// EmbeddingHashExists reports whether an equivalent fact was already captured.
func (s *Store) EmbeddingHashExists(ctx context.Context, hash string) (bool, error) {
	if strings.TrimSpace(hash) == "" {
		return false, nil
	}
	return s.exists(ctx, "structured_facts", "embedding_hash", hash)
}

// FactByEmbeddingHash returns the fact holding hash, or nil.
func (s *Store) FactByEmbeddingHash(ctx context.Context, hash string) (*Fact, error) {
	if strings.TrimSpace(hash) == "" {
		return nil, nil
	}
	rows, err := s.queryBuilder(ctx, sq.Select(factColumns).From("structured_facts").Where(sq.Eq{"embedding_hash": hash}).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("fact by embedding hash: %w", err)
	}
	facts, err := collect(rows, scanFact)
	if err != nil || len(facts) == 0 {
		return nil, err
	}
	return facts[0], nil
}

// FactsReadyForGeneration returns up to limit unprocessed facts, oldest first.
func (s *Store) FactsReadyForGeneration(ctx context.Context, limit int) ([]*Fact, error) {
	processed := false
	return s.QueryFacts(ctx, FactFilter{Processed: &processed, Limit: limit})
}

func scanFact(row scanner) (*Fact, error) {
	var (
		fact       Fact
		rawID      sql.NullInt64
		data       sql.NullString
		embedding  sql.NullString
		hash       sql.NullString
		processed  int
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&fact.ID, &rawID, &fact.SourceURL, &fact.Category, &fact.Language,
		&data, &embedding, &hash, &processed, &createdRaw, &updatedRaw); err != nil {
		return nil, fmt.Errorf("scan fact: %w", err)
	}
	fact.RawID = rawID.Int64
	fact.EmbeddingHash = hash.String
	fact.Processed = processed != 0
	fact.CreatedAt = parseTime(createdRaw)
	fact.UpdatedAt = parseTime(updatedRaw)
	if err := decodeJSON(data, &fact.Data); err != nil {
		return nil, err
	}
	if fact.Data == nil {
		fact.Data = map[string]any{}
	}
	if err := decodeJSON(embedding, &fact.Embedding); err != nil {
		return nil, err
	}
	return &fact, nil
}
