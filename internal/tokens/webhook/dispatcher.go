package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/metrics"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/tasks"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	SignatureHeader = "X-Signature"
	EventHeader     = "X-Webhook-Event"
)

// Enqueuer hands work to a deferred task runner.
type Enqueuer interface {
	Enqueue(name string, fn tasks.Func) error
}

type Config struct {
	URL         string        `koanf:"url"`
	Secret      string        `koanf:"secret"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
}

// Dispatcher POSTs events to Config.URL. The first attempt happens in the
// caller; the rest run on the task runner when one is available. Events
// that exhaust their attempts are stored for the redelivery sweep.
type Dispatcher struct {
	URL         string
	Secret      []byte
	MaxAttempts int
	BaseDelay   time.Duration

	Client  *http.Client
	Store   store.Store
	Tasks   Enqueuer
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(cfg Config, st store.Store, runner Enqueuer, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var secret []byte
	if cfg.Secret != "" {
		secret = []byte(cfg.Secret)
	}

	return &Dispatcher{
		URL:         cfg.URL,
		Secret:      secret,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Client:      &http.Client{Timeout: cfg.Timeout},
		Store:       st,
		Tasks:       runner,
		Metrics:     m,
		Logger:      logger,
		Now:         time.Now,
		Sleep:       sleep,
	}
}

// Dispatch never blocks the caller for more than one attempt when a task
// runner is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload map[string]any) {
	if d.URL == "" {
		return
	}

	body, err := Encode(event, payload)
	if err != nil {
		d.Logger.Error("webhook payload encode failed", slog.String("event", event), slog.String("error", err.Error()))
		return
	}

	if d.attempt(ctx, d.URL, event, body) {
		return
	}

	target := d.URL
	retry := func(ctx context.Context) error {
		ok, tried := d.run(ctx, target, event, body, 2)
		if !ok {
			d.persist(ctx, target, event, body, 1+tried)
		}
		return nil
	}

	if d.Tasks != nil {
		err := d.Tasks.Enqueue("webhook:"+event, retry)
		if err == nil {
			return
		}
		d.Logger.Warn("webhook retry not queued, retrying inline",
			slog.String("event", event), slog.String("error", err.Error()))
	}
	_ = retry(context.WithoutCancel(ctx))
}

// Redeliver makes a fresh round of attempts for a stored event. It reports
// whether delivery succeeded and how many attempts were made.
func (d *Dispatcher) Redeliver(ctx context.Context, ev domain.WebhookEvent) (bool, int) {
	return d.run(ctx, ev.TargetURL, ev.EventType, ev.Payload, 1)
}

// run makes attempts from..MaxAttempts. Each attempt after the first
// overall waits the backoff delay of its position in the schedule.
func (d *Dispatcher) run(ctx context.Context, url, event string, body []byte, from int) (bool, int) {
	schedule := d.schedule()
	tried := 0
	for n := 1; n <= d.MaxAttempts; n++ {
		var delay time.Duration
		if n > 1 {
			delay = schedule.NextBackOff()
		}
		if n < from {
			continue
		}
		if n > 1 {
			if err := d.Sleep(ctx, delay); err != nil {
				return false, tried
			}
		}
		tried++
		if d.attempt(ctx, url, event, body) {
			return true, tried
		}
	}
	return false, tried
}

// schedule yields BaseDelay, 2*BaseDelay, 4*BaseDelay, ... without jitter.
func (d *Dispatcher) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = d.BaseDelay << d.MaxAttempts
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (d *Dispatcher) attempt(ctx context.Context, url, event string, body []byte) bool {
	start := time.Now()
	err := d.post(ctx, url, event, body)
	d.Metrics.WebhookLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		d.Metrics.WebhooksFailed.WithLabelValues(event).Inc()
		d.Logger.Warn("webhook delivery failed", slog.String("event", event), slog.String("error", err.Error()))
		return false
	}
	d.Metrics.WebhooksSent.WithLabelValues(event).Inc()
	return true
}

func (d *Dispatcher) post(ctx context.Context, url, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, event)
	if len(d.Secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(d.Secret, body))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) persist(ctx context.Context, url, event string, body []byte, attempts int) {
	ctx = context.WithoutCancel(ctx)
	now := d.Now().UTC()

	ev := domain.WebhookEvent{
		ID:            uuid.NewString(),
		EventType:     event,
		TargetURL:     url,
		Payload:       body,
		Attempts:      attempts,
		LastAttemptAt: &now,
		CreatedAt:     now,
	}
	if d.Store == nil {
		d.Logger.Error("webhook dropped, no store for redelivery", slog.String("event", event))
		return
	}
	if err := d.Store.WebhookEvents().CreateWebhookEvent(ctx, ev); err != nil {
		d.Logger.Error("webhook event persist failed", slog.String("event", event), slog.String("error", err.Error()))
		return
	}
	d.Logger.Info("webhook queued for redelivery",
		slog.String("event", event), slog.String("webhook_event_id", ev.ID), slog.Int("attempts", attempts))
}

// Encode renders the wire body: payload plus the "event" field. Map keys
// are emitted in sorted order, so equal payloads encode to equal bytes.
func Encode(event string, payload map[string]any) ([]byte, error) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["event"] = event
	return json.Marshal(body)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
