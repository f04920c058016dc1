package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopay_payment_attempts_total",
			Help: "Payment attempts by entry kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopay_notifications_dispatched_total",
			Help: "Notifications delivered through the bus by type and priority",
		},
		[]string{"type", "priority"},
	)

	SubscriberErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autopay_notification_subscriber_errors_total",
			Help: "Notification handlers that returned an error or panicked",
		},
	)

	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopay_tick_duration_seconds",
			Help:    "Duration of monitor ticks",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"monitor"},
	)

	TicksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopay_ticks_skipped_total",
			Help: "Ticks abandoned because the schedule store could not be read",
		},
		[]string{"monitor"},
	)
)
