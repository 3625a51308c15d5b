// Package audit records security-relevant outcomes. Storage of the trail is
// owned elsewhere; this package only defines the hand-off.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/tokens/pkg/slogx"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Event is one audit record. IPHash is the peppered client IP digest, never
// the address itself.
type Event struct {
	PrincipalID string
	Action      string
	ObjectType  string
	ObjectID    string
	IPHash      string
	Status      Status
	Metadata    map[string]any
}

type Sink interface {
	Record(ctx context.Context, ev Event)
}

// LogSink writes events to the structured log under the "audit" group.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Record(ctx context.Context, ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = slogx.FromContext(ctx)
	}

	attrs := []any{
		slog.String("action", ev.Action),
		slog.String("status", string(ev.Status)),
		slog.String("principal_id", ev.PrincipalID),
		slog.String("object_type", ev.ObjectType),
		slog.String("object_id", ev.ObjectID),
		slog.String("ip_hash", ev.IPHash),
	}
	if len(ev.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", ev.Metadata))
	}

	level := slog.LevelInfo
	if ev.Status == StatusFailure {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "audit", slog.Group("audit", attrs...))
}

// MemorySink keeps events in memory. Used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Record(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Find returns the recorded events with the given action.
func (s *MemorySink) Find(action string) []Event {
	var out []Event
	for _, ev := range s.Events() {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}
