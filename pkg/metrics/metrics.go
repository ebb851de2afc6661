// Package metrics holds prometheus collectors for the announcement monitor
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchAttempts counts single strategy attempts by strategy, target kind and status
	FetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "announcer_fetch_attempts_total",
		Help: "Fetch strategy attempts",
	}, []string{"strategy", "kind", "status"})

	// FetchDuration observes single strategy attempt duration
	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "announcer_fetch_duration_seconds",
		Help:    "Fetch strategy attempt duration",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"strategy", "kind"})

	// PollCycles counts completed poll cycles by status
	PollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "announcer_poll_cycles_total",
		Help: "Completed poll cycles",
	}, []string{"status"})

	// ItemsProcessed counts feed items by outcome: new, downloaded, failed, seen
	ItemsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "announcer_items_total",
		Help: "Feed items by outcome",
	}, []string{"outcome"})

	// SeenItems reports the size of the seen-items cache
	SeenItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "announcer_seen_items",
		Help: "Number of items in the seen cache",
	})

	// Registrations counts register and login calls by status
	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "announcer_auth_requests_total",
		Help: "Register and login requests",
	}, []string{"operation", "status"})
)

// MustRegister registers all collectors
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FetchAttempts,
		FetchDuration,
		PollCycles,
		ItemsProcessed,
		SeenItems,
		Registrations,
	)
}

// ObserveFetch records a single strategy attempt
func ObserveFetch(strategy, kind string, duration time.Duration, ok bool) {
	if strategy == "" {
		strategy = "unknown"
	}
	status := "success"
	if !ok {
		status = "error"
	}
	FetchAttempts.WithLabelValues(strategy, kind, status).Inc()
	FetchDuration.WithLabelValues(strategy, kind).Observe(duration.Seconds())
}

// ObserveCycle records a finished poll cycle
func ObserveCycle(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PollCycles.WithLabelValues(status).Inc()
}

// ObserveAuth records a register or login call
func ObserveAuth(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	Registrations.WithLabelValues(operation, status).Inc()
}
