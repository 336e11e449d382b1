// Package metrics defines the agent's Prometheus collectors. All collectors
// register with the default registry at init and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenelocate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scenelocate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenelocate_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Scene search metrics
var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenelocate_searches_total",
			Help: "Total number of scene searches by outcome",
		},
		[]string{"outcome"}, // "found", "not_found", "failed", "unreachable"
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scenelocate_search_duration_seconds",
			Help:    "Time spent waiting on the search backend, upload included",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	BackendUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenelocate_backend_up",
			Help: "Whether the search backend answered the last reachability probe (1 = yes)",
		},
	)
)

// Seek metrics
var (
	SeeksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenelocate_seeks_total",
			Help: "Total number of resolved seek requests by outcome",
		},
		[]string{"outcome"}, // "ok", "out_of_range", "timeout", "unavailable", "canceled", "error"
	)

	SeekAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scenelocate_seek_attempts",
			Help:    "Number of player polls a seek request needed before it resolved",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
)

// Library metrics
var (
	LibraryVideos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenelocate_library_videos",
			Help: "Number of videos saved in the local library",
		},
	)

	LibraryPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scenelocate_library_pruned_total",
			Help: "Total number of library entries dropped to stay under the entry cap",
		},
	)
)
