package dedup_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"alchemist/internal/dedup"
	"alchemist/internal/store"
	"alchemist/internal/testsupport"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Solar   PUMP\n\tguide ", "solar pump guide"},
		{"ｆｕｌｌｗｉｄｔｈ", "fullwidth"},
		{"", ""},
		{"पीएम कुसुम   योजना", "पीएम कुसुम योजना"},
	}
	for _, tt := range tests {
		if got := dedup.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentHashIgnoresFormattingNoise(t *testing.T) {
	a := dedup.ContentHash("Solar pumps\n\nsave diesel.")
	b := dedup.ContentHash("  solar PUMPS save   diesel. ")
	if a != b {
		t.Fatalf("expected equal hashes, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected hex md5, got %q", a)
	}
	if a == dedup.ContentHash("Solar pumps save petrol.") {
		t.Fatal("different text must hash differently")
	}
}

func TestNormalizePayloadIsCanonical(t *testing.T) {
	a, err := dedup.NormalizePayload(map[string]any{"pump_model": "X  200", "capacity_hp": 5.0, " scheme ": []any{"PM-KUSUM"}})
	if err != nil {
		t.Fatalf("NormalizePayload: %v", err)
	}
	b, err := dedup.NormalizePayload(map[string]any{"scheme": []any{"pm-kusum"}, "capacity_hp": 5.0, "pump_model": "x 200"})
	if err != nil {
		t.Fatalf("NormalizePayload: %v", err)
	}
	if a != b {
		t.Fatalf("expected canonical forms to match:\n%s\n%s", a, b)
	}
}

func TestEmbeddingHash(t *testing.T) {
	if dedup.EmbeddingHash(nil) != "" {
		t.Fatal("empty vector must have no hash")
	}
	a := dedup.EmbeddingHash([]float64{0.1, 0.2, 0.3})
	if a != dedup.EmbeddingHash([]float64{0.1, 0.2, 0.3}) {
		t.Fatal("hash must be deterministic")
	}
	if a == dedup.EmbeddingHash([]float64{0.1, 0.2, 0.30000001}) {
		t.Fatal("different vectors must hash differently")
	}
}

func TestEngineGates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	engine := dedup.NewEngine(st)

	hash := dedup.ContentHash("body")
	verdict, err := engine.CheckContent(ctx, hash)
	if err != nil || verdict != dedup.Unique {
		t.Fatalf("CheckContent before insert = %v, %v", verdict, err)
	}
	if _, err := st.InsertContent(ctx, &store.Content{ContentHash: hash, Title: "t", Body: "body", Language: "en"}); err != nil {
		t.Fatalf("InsertContent: %v", err)
	}
	verdict, err = engine.CheckContent(ctx, hash)
	if err != nil || verdict != dedup.Duplicate {
		t.Fatalf("CheckContent after insert = %v, %v", verdict, err)
	}

	if v, err := engine.CheckEmbedding(ctx, ""); err != nil || v != dedup.Unique {
		t.Fatalf("empty embedding hash = %v, %v", v, err)
	}
	embHash := dedup.EmbeddingHash([]float64{1, 2})
	if _, err := st.InsertFact(ctx, &store.Fact{SourceURL: "u", Category: "c", Language: "en", Data: map[string]any{}, EmbeddingHash: embHash}); err != nil {
		t.Fatalf("InsertFact: %v", err)
	}
	if v, err := engine.CheckEmbedding(ctx, embHash); err != nil || v != dedup.Duplicate {
		t.Fatalf("CheckEmbedding = %v, %v", v, err)
	}
}

func TestIsDuplicate(t *testing.T) {
	if !dedup.IsDuplicate(fmt.Errorf("insert: %w", store.ErrDuplicate)) {
		t.Fatal("wrapped ErrDuplicate must classify as duplicate")
	}
	if dedup.IsDuplicate(errors.New("disk full")) || dedup.IsDuplicate(nil) {
		t.Fatal("other errors are not duplicates")
	}
}
