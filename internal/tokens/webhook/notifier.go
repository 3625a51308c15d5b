// Package webhook delivers signed lifecycle notifications to a single
// configured endpoint.
package webhook

import (
	"context"
	"maps"
	"sync"
)

// Notifier is how services announce credential lifecycle events. Dispatch
// never reports failure: delivery problems stay inside the notifier.
type Notifier interface {
	Dispatch(ctx context.Context, event string, payload map[string]any)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Dispatch(context.Context, string, map[string]any) {}

// Delivery is one event captured by a Recorder.
type Delivery struct {
	Event   string
	Payload map[string]any
}

// Recorder captures events in memory. Used by tests.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *Recorder) Dispatch(_ context.Context, event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Event: event, Payload: maps.Clone(payload)})
}

func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Events lists the recorded event names in dispatch order.
func (r *Recorder) Events() []string {
	var out []string
	for _, d := range r.Deliveries() {
		out = append(out, d.Event)
	}
	return out
}
