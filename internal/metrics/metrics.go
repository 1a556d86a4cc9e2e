// Package metrics exposes the prometheus collectors the builder and
// router report against. Purely observational: nothing in the engine's
// control flow reads these back.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildStageDuration tracks wall-clock build time by stage label.
	// BuildAll observes a single "ingest" stage covering one feed's
	// Ingest and Finish.
	BuildStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "solari",
		Subsystem: "builder",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each timetable build stage.",
	}, []string{"stage"})

	// FeedRecordsIngested counts parsed feed records consumed by the
	// builder, by table.
	FeedRecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solari",
		Subsystem: "builder",
		Name:      "feed_records_ingested_total",
		Help:      "Feed records ingested by the timetable builder.",
	}, []string{"table"})

	// RouteQueryLatency tracks RAPTOR query wall-clock latency.
	RouteQueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "solari",
		Subsystem: "raptor",
		Name:      "query_latency_seconds",
		Help:      "End-to-end RAPTOR query latency.",
	})

	// RoundsExecuted tracks how many RAPTOR rounds a query ran before
	// termination.
	RoundsExecuted = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "solari",
		Subsystem: "raptor",
		Name:      "rounds_executed",
		Help:      "Number of RAPTOR rounds executed per query.",
		Buckets:   prometheus.LinearBuckets(0, 1, 12),
	})

	// MatrixRetries counts retry attempts against the external
	// pedestrian-matrix service.
	MatrixRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "solari",
		Subsystem: "transfermatrix",
		Name:      "matrix_service_retries_total",
		Help:      "Retry attempts against the external pedestrian matrix service.",
	})
)
