// Package ratelimit implements fixed-window request limits evaluated against
// a counter store shared by every node, with an in-process fallback for when
// that store cannot be reached.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// Window is one fixed window: at most Limit hits per Period.
type Window struct {
	Limit  int           `koanf:"limit"`
	Period time.Duration `koanf:"period"`
}

// Counters increments key within a window of the given length and returns
// the post-increment count and the instant the window closes. The increment
// and the window start must be a single atomic operation.
type Counters interface {
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error)
}

// Limiter checks keys against every configured window in order.
type Limiter struct {
	Shared  Counters
	Local   *MemoryCounters
	Windows []Window
	Logger  *slog.Logger
	Now     func() time.Time

	// Timeout bounds each call to the shared store.
	Timeout time.Duration

	degraded atomic.Bool
}

// New builds a limiter. Windows with a non-positive limit or period are
// ignored, so a zero config disables limiting.
func New(shared Counters, logger *slog.Logger, windows ...Window) *Limiter {
	active := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Limit > 0 && w.Period > 0 {
			active = append(active, w)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		Shared:  shared,
		Local:   NewMemoryCounters(),
		Windows: active,
		Logger:  logger,
		Now:     time.Now,
		Timeout: 500 * time.Millisecond,
	}
}

// Allow counts one hit for key. When a window is exceeded it reports false
// with the time left until that window closes; later windows are not
// charged.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	now := l.Now()
	for i, w := range l.Windows {
		count, reset := l.incr(ctx, windowKey(key, i, w), w.Period, now)
		if count > int64(w.Limit) {
			retry := reset.Sub(now)
			if retry <= 0 {
				retry = time.Second
			}
			return false, retry
		}
	}
	return true, 0
}

// Degraded reports whether the last shared-store call failed.
func (l *Limiter) Degraded() bool { return l.degraded.Load() }

func (l *Limiter) incr(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time) {
	if l.Shared != nil {
		cctx := ctx
		if l.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, l.Timeout)
			defer cancel()
		}

		count, reset, err := l.Shared.Incr(cctx, key, window, now)
		if err == nil {
			if l.degraded.CompareAndSwap(true, false) {
				l.Logger.Info("rate limiter shared store recovered")
			}
			return count, reset
		}
		if l.degraded.CompareAndSwap(false, true) {
			l.Logger.Warn("rate limiter shared store unavailable, using local counters",
				slog.String("error", err.Error()))
		}
	}

	count, reset, _ := l.Local.Incr(ctx, key, window, now)
	return count, reset
}

// windowKey gives every configured window its own counter, including two
// windows of equal or sub-second period.
func windowKey(key string, i int, w Window) string {
	return key + ":w" + strconv.Itoa(i) + ":" + strconv.FormatInt(w.Period.Milliseconds(), 10) + "ms"
}
