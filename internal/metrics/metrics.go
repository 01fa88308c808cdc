package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query-side metrics.
var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodepos_queries_total",
		Help: "Read queries served, by endpoint.",
	}, []string{"endpoint"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodepos_cache_hits_total",
		Help: "Result-cache hits, by endpoint.",
	}, []string{"endpoint"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodepos_cache_misses_total",
		Help: "Result-cache misses, by endpoint.",
	}, []string{"endpoint"})
)

// Import-side metrics.
var (
	ImportJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodepos_import_jobs_total",
		Help: "Import jobs reaching a terminal status.",
	}, []string{"status"})

	ImportRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodepos_import_records_total",
		Help: "Import records processed, by outcome.",
	}, []string{"outcome"})

	ImportBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kodepos_import_batch_duration_seconds",
		Help:    "Wall-clock duration of one insert batch slice.",
		Buckets: prometheus.DefBuckets,
	})
)
