package ratelimit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type brokenCounters struct{ calls int }

func (b *brokenCounters) Incr(context.Context, string, time.Duration, time.Time) (int64, time.Time, error) {
	b.calls++
	return 0, time.Time{}, errors.New("connection refused")
}

func TestLimiter_BurstWindow(t *testing.T) {
	clock := newClock()
	l := ratelimit.New(ratelimit.NewMemoryCounters(), nil, ratelimit.Window{Limit: 5, Period: time.Minute})
	l.Now = clock.Now

	ctx := context.Background()
	for i := range 5 {
		ok, _ := l.Allow(ctx, "k")
		require.True(t, ok, "call %d", i+1)
		clock.Advance(time.Second)
	}

	ok, retry := l.Allow(ctx, "k")
	require.False(t, ok)
	require.Greater(t, retry, time.Duration(0))
	require.LessOrEqual(t, retry, time.Minute)

	ok, _ = l.Allow(ctx, "other")
	require.True(t, ok, "keys are independent")

	clock.Advance(retry)
	ok, _ = l.Allow(ctx, "k")
	require.True(t, ok, "window elapsed")
}

func TestLimiter_FirstExceededWindowWins(t *testing.T) {
	clock := newClock()
	l := ratelimit.New(ratelimit.NewMemoryCounters(), nil,
		ratelimit.Window{Limit: 2, Period: 10 * time.Second},
		ratelimit.Window{Limit: 3, Period: time.Hour},
	)
	l.Now = clock.Now

	ctx := context.Background()
	for range 2 {
		ok, _ := l.Allow(ctx, "k")
		require.True(t, ok)
	}

	ok, retry := l.Allow(ctx, "k")
	require.False(t, ok)
	require.Equal(t, 10*time.Second, retry, "burst window reported")

	clock.Advance(10 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	require.True(t, ok, "third hit against the hourly window")

	clock.Advance(10 * time.Second)
	ok, retry = l.Allow(ctx, "k")
	require.False(t, ok)
	require.Greater(t, retry, 10*time.Second, "sustained window reported")
}

func TestLimiter_ZeroConfigDisables(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryCounters(), nil, ratelimit.Window{})
	for range 100 {
		ok, _ := l.Allow(context.Background(), "k")
		require.True(t, ok)
	}
}

func TestLimiter_FailsOpenToLocalCounters(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	broken := &brokenCounters{}
	clock := newClock()
	l := ratelimit.New(broken, logger, ratelimit.Window{Limit: 2, Period: time.Minute})
	l.Now = clock.Now

	ctx := context.Background()
	ok, _ := l.Allow(ctx, "k")
	require.True(t, ok)
	require.True(t, l.Degraded())

	ok, _ = l.Allow(ctx, "k")
	require.True(t, ok)

	ok, retry := l.Allow(ctx, "k")
	require.False(t, ok, "local counters still enforce the limit")
	require.Equal(t, time.Minute, retry)

	require.Equal(t, 3, broken.calls, "shared store is retried on every call")
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("using local counters")), "degradation logged once")
}

func TestStoreCounters_SharedAcrossLimiters(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	clock := newClock()
	shared := ratelimit.StoreCounters{Store: s}
	w := ratelimit.Window{Limit: 4, Period: time.Minute}

	// Two limiters stand in for two nodes sharing the database.
	a := ratelimit.New(shared, nil, w)
	b := ratelimit.New(shared, nil, w)
	nodes := []*ratelimit.Limiter{a, b}
	for _, l := range nodes {
		l.Now = clock.Now
		l.Timeout = 0
	}

	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 8 {
		wg.Add(1)
		go func(l *ratelimit.Limiter) {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "k"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(nodes[i%2])
	}
	wg.Wait()

	require.Equal(t, 4, allowed, "no slip-through across nodes")
	require.False(t, a.Degraded())
	require.False(t, b.Degraded())
}

func TestLimiter_WindowsCountSeparately(t *testing.T) {
	ctx := context.Background()

	t.Run("equal periods", func(t *testing.T) {
		clock := newClock()
		l := ratelimit.New(ratelimit.NewMemoryCounters(), nil,
			ratelimit.Window{Limit: 3, Period: time.Minute},
			ratelimit.Window{Limit: 3, Period: time.Minute},
		)
		l.Now = clock.Now

		for i := range 3 {
			ok, _ := l.Allow(ctx, "k")
			require.True(t, ok, "call %d", i+1)
		}
		ok, _ := l.Allow(ctx, "k")
		require.False(t, ok)
	})

	t.Run("sub-second periods", func(t *testing.T) {
		clock := newClock()
		l := ratelimit.New(ratelimit.NewMemoryCounters(), nil,
			ratelimit.Window{Limit: 2, Period: 500 * time.Millisecond},
			ratelimit.Window{Limit: 2, Period: 200 * time.Millisecond},
		)
		l.Now = clock.Now

		for i := range 2 {
			ok, _ := l.Allow(ctx, "k")
			require.True(t, ok, "call %d", i+1)
		}
		ok, retry := l.Allow(ctx, "k")
		require.False(t, ok)
		require.LessOrEqual(t, retry, 500*time.Millisecond)
	})
}
