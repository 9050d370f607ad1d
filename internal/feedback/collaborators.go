package feedback

import (
	"context"
	"time"

	"alchemist/internal/store"
)

// Sample is one measurement reported by a metrics source.
type Sample struct {
	Type       store.MetricType
	Value      float64
	RecordedAt time.Time
}

// MetricsSource reports samples for a published item.
type MetricsSource interface {
	Fetch(ctx context.Context, published store.Published) ([]Sample, error)
}

// Completer is the language model used for performance analysis.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}
