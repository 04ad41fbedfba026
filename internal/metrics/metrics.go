package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campusnotify"

var (
	// FanoutsTotal counts fan-out runs by outcome ("ok", "partial").
	FanoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "runs_total",
			Help:      "Total number of notice fan-outs",
		},
		[]string{"outcome"},
	)

	// FanoutRecipients counts recipients per fan-out stage ("resolved", "recorded", "alertable", "realtime").
	FanoutRecipients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "recipients_total",
			Help:      "Recipients processed by fan-out stage",
		},
		[]string{"stage"},
	)

	// PushResults counts per-token push outcomes by provider and result ("success", "transient", "permanent").
	PushResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "results_total",
			Help:      "Per-token push results",
		},
		[]string{"provider", "result"},
	)

	// PushBatchDuration observes provider multicast latency.
	PushBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "batch_duration_seconds",
			Help:      "Provider multicast call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// RealtimeConnections is the number of open realtime connections in this process.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open realtime connections",
		},
	)

	// RealtimeEvents counts realtime frames by direction ("in", "out") and event name.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Realtime events by direction and name",
		},
		[]string{"direction", "event"},
	)

	// RealtimeRejected counts handshakes rejected during authentication.
	RealtimeRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "rejected_total",
			Help:      "Realtime handshakes rejected during authentication",
		},
	)
)
