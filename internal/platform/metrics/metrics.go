// Package metrics exposes the process Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transitions counts request/offer state transitions by name.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepshare",
		Subsystem: "engine",
		Name:      "transitions_total",
		Help:      "State transitions applied, by transition name.",
	}, []string{"transition"})

	// NotificationsDispatched counts notifications written successfully.
	NotificationsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prepshare",
		Subsystem: "notify",
		Name:      "dispatched_total",
		Help:      "Notifications dispatched.",
	})

	// NotificationsFailed counts notification deliveries that were dropped.
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prepshare",
		Subsystem: "notify",
		Name:      "failed_total",
		Help:      "Notification deliveries that failed and were swallowed.",
	})

	// HTTPRequestDuration observes request latency by method, route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prepshare",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
