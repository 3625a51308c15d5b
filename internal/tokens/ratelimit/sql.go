package ratelimit

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/store"
)

// StoreCounters keeps the counters in the credential database so every
// node sees the same windows.
type StoreCounters struct {
	Store store.Store
}

func (s StoreCounters) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	return s.Store.RateCounters().IncrementRateCounter(ctx, key, window, now)
}
