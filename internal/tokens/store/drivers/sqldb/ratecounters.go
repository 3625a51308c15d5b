package sqldb

import (
	"context"
	"time"
)

type rateCountersRepo struct{ c conn }

// IncrementRateCounter is a single upsert so concurrent callers on different
// nodes never lose an increment. A lapsed window restarts at 1.
func (r *rateCountersRepo) IncrementRateCounter(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	nowMs := millis(now)
	resetMs := millis(now.Add(window))

	var (
		hits      int64
		expiresAt int64
	)
	err := r.c.queryRow(ctx, `
		INSERT INTO rate_limit_counters (counter_key, hits, expires_at) VALUES (?, 1, ?)
		ON CONFLICT (counter_key) DO UPDATE SET
			hits = CASE WHEN rate_limit_counters.expires_at <= ? THEN 1
			            ELSE rate_limit_counters.hits + 1 END,
			expires_at = CASE WHEN rate_limit_counters.expires_at <= ? THEN excluded.expires_at
			                  ELSE rate_limit_counters.expires_at END
		RETURNING hits, expires_at`,
		key, resetMs, nowMs, nowMs).Scan(&hits, &expiresAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return hits, fromMillis(expiresAt), nil
}

func (r *rateCountersRepo) DeleteExpiredRateCounters(ctx context.Context, now time.Time) (int64, error) {
	return r.c.execCount(ctx, `DELETE FROM rate_limit_counters WHERE expires_at <= ?`, millis(now))
}
