package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/metrics"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokens/internal/tokens/tasks"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const secret = "whsec-test"

type capture struct {
	Signature string
	Event     string
	Body      []byte
}

// receiver answers with status() and records every request.
type receiver struct {
	*httptest.Server

	mu       sync.Mutex
	requests []capture
	status   atomic.Int32
}

func newReceiver(t *testing.T, status int) *receiver {
	t.Helper()
	r := &receiver{}
	r.status.Store(int32(status))
	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.requests = append(r.requests, capture{
			Signature: req.Header.Get(webhook.SignatureHeader),
			Event:     req.Header.Get(webhook.EventHeader),
			Body:      body,
		})
		r.mu.Unlock()
		w.WriteHeader(int(r.status.Load()))
	}))
	t.Cleanup(r.Close)
	return r
}

func (r *receiver) Requests() []capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture(nil), r.requests...)
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (l *sleepLog) Sleep(_ context.Context, d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delays = append(l.delays, d)
	return nil
}

func (l *sleepLog) Delays() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Duration(nil), l.delays...)
}

func newDispatcher(t *testing.T, url string, st store.Store, runner webhook.Enqueuer) (*webhook.Dispatcher, *sleepLog) {
	t.Helper()
	d := webhook.NewDispatcher(webhook.Config{URL: url, Secret: secret}, st, runner, metrics.New(nil), nil)
	sl := &sleepLog{}
	d.Sleep = sl.Sleep
	return d, sl
}

func TestDispatch_SignedCanonicalBody(t *testing.T) {
	rcv := newReceiver(t, http.StatusNoContent)
	d, sl := newDispatcher(t, rcv.URL, newStore(t), nil)

	d.Dispatch(context.Background(), "invite.created", map[string]any{
		"id":          "0b6f3c1e-3f55-4c55-9a43-2d7a1e8b9c10",
		"code":        "raw-code",
		"target_role": "guest",
	})

	reqs := rcv.Requests()
	require.Len(t, reqs, 1)
	require.Empty(t, sl.Delays())
	require.Equal(t, "invite.created", reqs[0].Event)
	require.Equal(t, webhook.Sign([]byte(secret), reqs[0].Body), reqs[0].Signature)
	require.Equal(t,
		`{"code":"raw-code","event":"invite.created","id":"0b6f3c1e-3f55-4c55-9a43-2d7a1e8b9c10","target_role":"guest"}`,
		string(reqs[0].Body), "keys sorted, event field added")

	require.Equal(t, 1.0, testutil.ToFloat64(d.Metrics.WebhooksSent.WithLabelValues("invite.created")))
}

func TestDispatch_NoURLIsNoop(t *testing.T) {
	d, _ := newDispatcher(t, "", nil, nil)
	d.Dispatch(context.Background(), "created", map[string]any{"id": "x"})
	require.Zero(t, testutil.ToFloat64(d.Metrics.WebhooksFailed.WithLabelValues("created")))
}

func TestDispatch_UnsignedWithoutSecret(t *testing.T) {
	rcv := newReceiver(t, http.StatusOK)
	d := webhook.NewDispatcher(webhook.Config{URL: rcv.URL}, nil, nil, nil, nil)

	d.Dispatch(context.Background(), "revoked", map[string]any{"id": "x"})
	require.Len(t, rcv.Requests(), 1)
	require.Empty(t, rcv.Requests()[0].Signature)
}

func TestDispatch_ExhaustedAttemptsPersistEvent(t *testing.T) {
	rcv := newReceiver(t, http.StatusBadGateway)
	st := newStore(t)
	d, sl := newDispatcher(t, rcv.URL, st, nil)

	d.Dispatch(context.Background(), "invite.used", map[string]any{"id": "inv-1"})

	require.Len(t, rcv.Requests(), 3)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sl.Delays())
	require.Equal(t, 3.0, testutil.ToFloat64(d.Metrics.WebhooksFailed.WithLabelValues("invite.used")))

	pending, err := st.WebhookEvents().ListPendingWebhookEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 3, pending[0].Attempts)
	require.False(t, pending[0].Delivered)
	require.Equal(t, rcv.URL, pending[0].TargetURL)
	require.Equal(t, "invite.used", pending[0].EventType)
	require.Equal(t, rcv.Requests()[0].Body, pending[0].Payload)
}

func TestDispatch_RetriesOnTaskRunner(t *testing.T) {
	rcv := newReceiver(t, http.StatusInternalServerError)
	st := newStore(t)

	runner := tasks.NewRunner(1, 4, nil)
	runner.Start(context.Background())

	d, _ := newDispatcher(t, rcv.URL, st, runner)
	d.Dispatch(context.Background(), "rotated", map[string]any{"id": "tok"})

	// Stop drains the queued retry.
	require.NoError(t, runner.Stop(context.Background()))

	require.Len(t, rcv.Requests(), 3)
	pending, err := st.WebhookEvents().ListPendingWebhookEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 3, pending[0].Attempts)
}

func TestDispatch_RecoversOnSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	st := newStore(t)
	d, sl := newDispatcher(t, srv.URL, st, nil)
	d.Dispatch(context.Background(), "created", map[string]any{"id": "tok"})

	require.EqualValues(t, 2, calls.Load())
	require.Equal(t, []time.Duration{time.Second}, sl.Delays())

	pending, err := st.WebhookEvents().ListPendingWebhookEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSweeper_RedeliversAndStops(t *testing.T) {
	rcv := newReceiver(t, http.StatusBadGateway)
	st := newStore(t)
	d, _ := newDispatcher(t, rcv.URL, st, nil)

	d.Dispatch(context.Background(), "invite.revoked", map[string]any{"id": "inv-2"})
	require.Len(t, rcv.Requests(), 3)

	sweeper := webhook.NewSweeper(d, st, 10, nil)

	t.Run("failed sweep advances attempts", func(t *testing.T) {
		res, err := sweeper.Sweep(context.Background())
		require.NoError(t, err)
		require.Equal(t, webhook.SweepResult{Attempted: 1}, res)

		pending, err := st.WebhookEvents().ListPendingWebhookEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, 6, pending[0].Attempts)
	})

	t.Run("successful sweep marks delivered", func(t *testing.T) {
		rcv.status.Store(http.StatusOK)
		before := len(rcv.Requests())

		res, err := sweeper.Sweep(context.Background())
		require.NoError(t, err)
		require.Equal(t, webhook.SweepResult{Attempted: 1, Delivered: 1}, res)
		require.Len(t, rcv.Requests(), before+1)

		last := rcv.Requests()[len(rcv.Requests())-1]
		require.Equal(t, webhook.Sign([]byte(secret), last.Body), last.Signature, "re-signed on redelivery")

		var body map[string]any
		require.NoError(t, json.Unmarshal(last.Body, &body))
		require.Equal(t, "invite.revoked", body["event"])
	})

	t.Run("delivered events are not retried", func(t *testing.T) {
		before := len(rcv.Requests())
		res, err := sweeper.Sweep(context.Background())
		require.NoError(t, err)
		require.Zero(t, res.Attempted)
		require.Len(t, rcv.Requests(), before)
	})
}

func TestSweeper_OverlappingRunsMarkOnce(t *testing.T) {
	rcv := newReceiver(t, http.StatusOK)
	st := newStore(t)
	d, _ := newDispatcher(t, rcv.URL, st, nil)

	now := time.Now().UTC()
	ev := domain.WebhookEvent{
		ID: "4c1c1f0e-57a8-4f0e-9d6c-0c3c1c54a3a1", EventType: "created", TargetURL: rcv.URL,
		Payload: []byte(`{"event":"created","id":"tok"}`), Attempts: 3, LastAttemptAt: &now, CreatedAt: now,
	}
	require.NoError(t, st.WebhookEvents().CreateWebhookEvent(context.Background(), ev))

	// Both sweeps read the row before either marks it.
	ok, tried := d.Redeliver(context.Background(), ev)
	require.True(t, ok)

	first, err := st.WebhookEvents().MarkWebhookEventDelivered(context.Background(), ev.ID, ev.Attempts+tried, now)
	require.NoError(t, err)
	second, err := st.WebhookEvents().MarkWebhookEventDelivered(context.Background(), ev.ID, ev.Attempts+tried, now)
	require.NoError(t, err)
	require.True(t, first)
	require.False(t, second)

	got, err := st.WebhookEvents().GetWebhookEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.Attempts)
}

func TestRecorder(t *testing.T) {
	var r webhook.Recorder
	var n webhook.Notifier = &r

	payload := map[string]any{"id": "a"}
	n.Dispatch(context.Background(), "created", payload)
	payload["id"] = "mutated"
	n.Dispatch(context.Background(), "revoked", map[string]any{"id": "a"})

	require.Equal(t, []string{"created", "revoked"}, r.Events())
	require.Equal(t, "a", r.Deliveries()[0].Payload["id"], "payload copied at dispatch")

	webhook.Noop{}.Dispatch(context.Background(), "created", nil)
}

func TestDispatch_ShutdownMidBackoffPersistsEvent(t *testing.T) {
	rcv := newReceiver(t, http.StatusServiceUnavailable)

	path := filepath.Join(t.TempDir(), "tokens.db")
	st, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	runner := tasks.NewRunner(1, 4, nil)
	runner.Start(context.Background())

	d := webhook.NewDispatcher(webhook.Config{URL: rcv.URL, Secret: secret, BaseDelay: 200 * time.Millisecond}, st, runner, metrics.New(nil), nil)
	d.Dispatch(context.Background(), "invite.created", map[string]any{"id": "inv-1", "code": "raw"})
	require.Len(t, rcv.Requests(), 1, "first attempt is inline")

	// The retry is asleep in its backoff when the grace period runs out.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, runner.Stop(ctx), context.DeadlineExceeded)
	require.NoError(t, st.Close())

	reopened, err := sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	pending, err := reopened.WebhookEvents().ListPendingWebhookEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "the undelivered event survives shutdown")
	require.Equal(t, "invite.created", pending[0].EventType)
	require.Equal(t, 1, pending[0].Attempts)
}
