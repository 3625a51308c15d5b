// Package metrics defines the Prometheus collectors for the credential
// lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tokens"

// Metrics holds every collector. A nil *Metrics is not valid; use
// New(nil) for unregistered collectors in tests.
type Metrics struct {
	InvitesCreated prometheus.Counter
	InvitesUsed    prometheus.Counter
	InvitesRevoked prometheus.Counter

	// ValidationFail is labelled by credential kind and reason.
	ValidationFail    *prometheus.CounterVec
	ValidationLatency *prometheus.HistogramVec

	// RateLimited is labelled by limiter scope (invite, auth).
	RateLimited *prometheus.CounterVec

	WebhooksSent   *prometheus.CounterVec
	WebhooksFailed *prometheus.CounterVec
	WebhookLatency prometheus.Histogram

	APITokensUsed prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		InvitesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invites_created_total",
			Help: "Invites issued.",
		}),
		InvitesUsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invites_used_total",
			Help: "Invites redeemed.",
		}),
		InvitesRevoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invites_revoked_total",
			Help: "Invites revoked.",
		}),
		ValidationFail: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "validation_fail_total",
			Help: "Presented credentials that did not validate.",
		}, []string{"kind", "reason"}),
		ValidationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "validation_latency_seconds",
			Help:    "Time spent validating a presented credential.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"kind"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
		WebhooksSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "webhooks_sent_total",
			Help: "Webhook deliveries acknowledged with a 2xx.",
		}, []string{"event"}),
		WebhooksFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "webhooks_failed_total",
			Help: "Webhook delivery attempts that failed.",
		}, []string{"event"}),
		WebhookLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "webhook_latency_seconds",
			Help:    "Duration of a single webhook POST.",
			Buckets: prometheus.DefBuckets,
		}),
		APITokensUsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_tokens_used_total",
			Help: "Successful API token authentications.",
		}),
	}
}
