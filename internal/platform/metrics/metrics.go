package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CustodyEventsTotal cuenta transiciones confirmadas por tipo de evento.
	CustodyEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_events_total",
		Help: "Total number of committed custody lifecycle events by type.",
	},
		[]string{"type"},
	)

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custody_notifications_sent_total",
		Help: "Total number of notifications handed to the sender.",
	})

	NotificationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_notification_errors_total",
		Help: "Total number of notifications that failed to send.",
	},
		[]string{"type"},
	)

	PlacementsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custody_placement_requests_expired_total",
		Help: "Total number of placement requests expired by the background job.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custody_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "route", "status"},
	)
)
