package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
)

// WebhookSweeper retries undelivered webhook events.
type WebhookSweeper interface {
	Sweep(ctx context.Context) (webhook.SweepResult, error)
}

// HousekeepingService periodically deletes credentials and bookkeeping rows
// that are past retention, and drives the webhook redelivery sweep on its
// own interval.
type HousekeepingService struct {
	Store     store.Store
	Sweeper   WebhookSweeper // optional
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// SweepInterval is how often undelivered webhooks are retried.
	SweepInterval time.Duration
	Clock         Clock

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService fills in defaults: hourly cleanup, 30 day
// retention, webhook sweep every minute.
func NewHousekeepingService(st store.Store, sweeper WebhookSweeper, logger *slog.Logger, interval, retention, sweepInterval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Store:         st,
		Sweeper:       sweeper,
		Logger:        logger,
		Interval:      interval,
		Retention:     retention,
		SweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		"interval", s.Interval,
		"retention", s.Retention,
		"webhook_sweep_interval", s.SweepInterval,
	)
}

// Stop blocks until any in-progress pass has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	cleanup := time.NewTicker(s.Interval)
	defer cleanup.Stop()
	sweep := time.NewTicker(s.SweepInterval)
	defer sweep.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(ctx)

	for {
		select {
		case <-cleanup.C:
			s.Cleanup(ctx)
		case <-sweep.C:
			s.SweepWebhooks(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// CleanupReport counts the rows each step removed.
type CleanupReport struct {
	Invites       int64
	APITokens     int64
	WebhookEvents int64
	RateCounters  int64
	AuthCodes     int64
	Failed        int
}

// Cleanup runs one retention pass. Each deletion is independent; a failure
// in one is logged and counted and does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) CleanupReport {
	now := s.Clock.now()
	cutoff := now.Add(-s.Retention)
	s.Logger.Info("starting housekeeping cleanup", "cutoff", cutoff)

	var report CleanupReport
	steps := []struct {
		name string
		dst  *int64
		fn   func() (int64, error)
	}{
		{"terminal invites", &report.Invites, func() (int64, error) {
			return s.Store.Invites().DeleteTerminalInvites(ctx, cutoff)
		}},
		{"stale api tokens", &report.APITokens, func() (int64, error) {
			return s.Store.APITokens().DeleteStaleAPITokens(ctx, cutoff)
		}},
		{"delivered webhook events", &report.WebhookEvents, func() (int64, error) {
			return s.Store.WebhookEvents().DeleteDeliveredWebhookEvents(ctx, cutoff)
		}},
		{"expired rate counters", &report.RateCounters, func() (int64, error) {
			return s.Store.RateCounters().DeleteExpiredRateCounters(ctx, now)
		}},
		{"expired auth codes", &report.AuthCodes, func() (int64, error) {
			return s.Store.AuthCodes().DeleteExpiredAuthCodes(ctx, now)
		}},
	}

	for _, step := range steps {
		n, err := step.fn()
		if err != nil {
			s.Logger.Error("failed to delete "+step.name, "error", err)
			report.Failed++
			continue
		}
		*step.dst = n
		s.Logger.Debug("deleted "+step.name, "count", n)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"invites", report.Invites,
		"api_tokens", report.APITokens,
		"webhook_events", report.WebhookEvents,
		"rate_counters", report.RateCounters,
		"auth_codes", report.AuthCodes,
		"failed", report.Failed,
	)
	return report
}

// SweepWebhooks runs one redelivery pass if a sweeper is configured.
func (s *HousekeepingService) SweepWebhooks(ctx context.Context) webhook.SweepResult {
	if s.Sweeper == nil {
		return webhook.SweepResult{}
	}
	res, err := s.Sweeper.Sweep(ctx)
	if err != nil {
		s.Logger.Error("webhook sweep failed", "error", err)
		return res
	}
	if res.Attempted > 0 {
		s.Logger.Info("webhook sweep completed", "attempted", res.Attempted, "delivered", res.Delivered)
	}
	return res
}
