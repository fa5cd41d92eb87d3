// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlab_runs_total",
			Help: "Total number of sandboxed runs",
		},
		[]string{"outcome"}, // success, timed_out, runtime_error
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vlab_run_duration_ms",
			Help:    "Sandboxed run duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	GradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vlab_grades_total",
			Help: "Total number of graded submissions",
		},
		[]string{"result"}, // pass, fail
	)

	SavesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vlab_saves_total",
			Help: "Total number of save-only submissions",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vlab_active_ws_connections",
			Help: "Number of open live-run WebSocket connections",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vlab_rate_limit_hits_total",
			Help: "Total number of submissions rejected by the rate limiter",
		},
	)
)
