// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_search_requests_total",
			Help: "Bus searches by outcome (found, empty, invalid, failed)",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bus_search_duration_seconds",
			Help:    "Duration of bus searches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	SearchCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_search_cache_total",
			Help: "Search result cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	SearchRowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_search_rows_dropped_total",
			Help: "Rows discarded for violating listing invariants",
		},
	)

	CatalogLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_load_failures_total",
			Help: "Per-state route files that could not be loaded",
		},
		[]string{"state"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
