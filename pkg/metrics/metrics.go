package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifystream_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// NotificationsCreated counts notification records written by fan-out.
	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifystream_notifications_created_total",
			Help: "Total number of notification records created by fan-out",
		},
	)

	// NotificationActions counts applied recipient actions by kind and result (ok|error).
	NotificationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifystream_notification_actions_total",
			Help: "Total number of notification actions applied",
		},
		[]string{"action", "result"},
	)

	// RealtimePublishes counts events handed to the broadcast layer by result (ok|error).
	RealtimePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifystream_realtime_publishes_total",
			Help: "Total number of realtime events published",
		},
		[]string{"result"},
	)

	// RealtimeSessions tracks open realtime sessions in this process.
	RealtimeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifystream_realtime_sessions",
			Help: "Number of open realtime sessions",
		},
	)

	// RealtimeDrops counts subscribers dropped for falling behind.
	RealtimeDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifystream_realtime_dropped_subscribers_total",
			Help: "Total number of slow realtime subscribers dropped",
		},
	)

	// GateRejections counts refused realtime connection attempts by reason.
	GateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifystream_gate_rejections_total",
			Help: "Total number of rejected realtime connection attempts",
		},
		[]string{"reason"},
	)
)
