package webhook

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/tokens/internal/tokens/store"
)

// Sweeper retries stored events. Overlapping sweeps are safe: the delivered
// flag flips once and attempt counts only advance from the value read.
type Sweeper struct {
	Dispatcher *Dispatcher
	Store      store.Store
	Batch      int
	Logger     *slog.Logger
}

func NewSweeper(d *Dispatcher, st store.Store, batch int, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{Dispatcher: d, Store: st, Batch: batch, Logger: logger}
}

// SweepResult summarises one pass.
type SweepResult struct {
	Attempted int
	Delivered int
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}

	pending, err := s.Store.WebhookEvents().ListPendingWebhookEvents(ctx, batch)
	if err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	for _, ev := range pending {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++

		ok, tried := s.Dispatcher.Redeliver(ctx, ev)
		now := s.Dispatcher.Now().UTC()
		logger := s.Logger.With(slog.String("webhook_event_id", ev.ID), slog.String("event", ev.EventType))

		if ok {
			won, err := s.Store.WebhookEvents().MarkWebhookEventDelivered(ctx, ev.ID, ev.Attempts+tried, now)
			if err != nil {
				logger.Error("webhook redelivery bookkeeping failed", slog.String("error", err.Error()))
				continue
			}
			if won {
				res.Delivered++
				logger.Info("webhook redelivered", slog.Int("attempts", ev.Attempts+tried))
			}
			continue
		}

		if tried == 0 {
			continue
		}
		if _, err := s.Store.WebhookEvents().RecordWebhookEventAttempts(ctx, ev.ID, ev.Attempts, ev.Attempts+tried, now); err != nil {
			logger.Error("webhook redelivery bookkeeping failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}
