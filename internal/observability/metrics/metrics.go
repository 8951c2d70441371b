// Package metrics exposes Prometheus instruments for the billing webhook path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutridesk",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nutridesk",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// SubscriptionTransitionsTotal counts applied subscription state transitions.
	SubscriptionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutridesk",
		Subsystem: "billing",
		Name:      "subscription_transitions_total",
		Help:      "Subscription status transitions applied by the reconciler.",
	}, []string{"from", "to"})
)
