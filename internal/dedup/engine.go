package dedup

import (
	"context"
	"errors"
	"fmt"

	"alchemist/internal/store"
)

// Verdict is the outcome of a duplicate gate.
type Verdict int

const (
	// Unique means no equivalent record exists yet.
	Unique Verdict = iota
	// Duplicate means an equivalent record was already stored.
	Duplicate
)

func (v Verdict) String() string {
	if v == Duplicate {
		return "duplicate"
	}
	return "unique"
}

// Index is the store surface the gates consult.
type Index interface {
	ContentHashExists(ctx context.Context, hash string) (bool, error)
	EmbeddingHashExists(ctx context.Context, hash string) (bool, error)
}

// Engine runs the exact and near-duplicate gates against an Index.
type Engine struct {
	index Index
}

// NewEngine wraps idx.
func NewEngine(idx Index) *Engine {
	return &Engine{index: idx}
}

// CheckContent runs the exact gate for a content hash.
func (e *Engine) CheckContent(ctx context.Context, hash string) (Verdict, error) {
	found, err := e.index.ContentHashExists(ctx, hash)
	if err != nil {
		return Unique, fmt.Errorf("content hash gate: %w", err)
	}
	return verdict(found), nil
}

// CheckEmbedding runs the near-duplicate gate for an embedding hash. An empty
// hash is always Unique.
func (e *Engine) CheckEmbedding(ctx context.Context, hash string) (Verdict, error) {
	if hash == "" {
		return Unique, nil
	}
	found, err := e.index.EmbeddingHashExists(ctx, hash)
	if err != nil {
		return Unique, fmt.Errorf("embedding hash gate: %w", err)
	}
	return verdict(found), nil
}

// IsDuplicate reports whether err is a unique constraint violation, which
// callers treat exactly like a Duplicate verdict from a pre-check.
func IsDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicate)
}

func verdict(found bool) Verdict {
	if found {
		return Duplicate
	}
	return Unique
}
