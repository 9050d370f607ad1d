package workflow

import (
	"math/rand/v2"
	"time"

	"alchemist/internal/config"
)

// Backoff returns the delay before retry number attempt (1-based) of a task
// with the given criticality: base * 2^(attempt-1), capped at max_backoff.
func Backoff(cfg config.Scheduler, criticality Criticality, attempt int) time.Duration {
	base := cfg.BackoffMedium
	switch criticality {
	case CriticalityLow:
		base = cfg.BackoffLow
	case CriticalityHigh:
		base = cfg.BackoffHigh
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(base) * time.Second
	limit := time.Duration(cfg.MaxBackoff) * time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if limit > 0 && delay >= limit {
			return limit
		}
	}
	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}

// Jitter returns cumulative dispatch offsets for n items. The first item is
// due immediately and each later one waits a further random delay drawn from
// r. A nil random source uses math/rand.
func Jitter(r config.JitterRange, n int, random func() float64) []time.Duration {
	if random == nil {
		random = rand.Float64
	}
	offsets := make([]time.Duration, n)
	var total float64
	for i := range n {
		if i > 0 {
			total += r.Min + random()*(r.Max-r.Min)
		}
		offsets[i] = time.Duration(total * float64(time.Second))
	}
	return offsets
}
