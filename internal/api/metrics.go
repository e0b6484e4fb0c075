package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hideout",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hideout",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
	}, []string{"route"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hideout",
		Subsystem: "http",
		Name:      "sse_events_dropped_total",
		Help:      "Dashboard events dropped because a subscriber fell behind",
	})
)

// instrument records request counts and latency per matched route.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		requestSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
