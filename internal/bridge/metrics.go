package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "connections",
			Help:      "Number of registered plugin connections",
		},
	)

	evictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "evictions_total",
			Help:      "Plugin connections evicted by the liveness supervisor",
		},
	)

	protocolViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "protocol_violations_total",
			Help:      "Rejected handshakes and skipped inbound messages",
		},
		[]string{"reason"},
	)

	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "generations_total",
			Help:      "Generate requests by origin and outcome",
		},
		[]string{"origin", "result"},
	)

	generationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the generation provider",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"origin"},
	)

	pushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "pushes_total",
			Help:      "Dashboard-to-plugin pushes by outcome",
		},
		[]string{"result"},
	)

	notifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hideout",
			Subsystem: "bridge",
			Name:      "notify_failures_total",
			Help:      "Dashboard notifications that returned an error or panicked",
		},
	)
)
