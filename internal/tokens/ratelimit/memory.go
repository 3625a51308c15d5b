package ratelimit

import (
	"context"
	"sync"
	"time"
)

// purgeThreshold bounds how many keys accumulate before lapsed windows are
// dropped.
const purgeThreshold = 10_000

type memoryWindow struct {
	count int64
	reset time.Time
}

// MemoryCounters is a process-local Counters. It is the fallback when the
// shared store is down, and a complete store on single-node deployments.
type MemoryCounters struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{windows: make(map[string]*memoryWindow)}
}

func (m *MemoryCounters) Incr(_ context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		if len(m.windows) >= purgeThreshold {
			m.purge(now)
		}
		w = &memoryWindow{reset: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.reset, nil
}

func (m *MemoryCounters) purge(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, k)
		}
	}
}
