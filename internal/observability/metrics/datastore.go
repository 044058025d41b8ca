// Package metrics provides datastore metrics for observability
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/strainbot/internal/logger"
)

// DatastoreMetrics contains Prometheus metrics for the record store
type DatastoreMetrics struct {
	registry *prometheus.Registry

	// Backend call metrics
	operationsTotal      *prometheus.CounterVec
	operationDuration    *prometheus.HistogramVec
	operationErrorsTotal *prometheus.CounterVec

	// Worker metrics
	jobsTotal        *prometheus.CounterVec
	jobDuration      prometheus.Histogram
	queueWaitSeconds prometheus.Histogram
	limiterWait      prometheus.Histogram

	// Cache metrics
	cacheHits    prometheus.CounterFunc
	cacheMisses  prometheus.CounterFunc
	cacheEntries prometheus.GaugeFunc

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_backend_operations_total",
			Help: "Total number of backend calls made by the record store",
		},
		[]string{"operation", "table", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_backend_operation_duration_seconds",
			Help:    "Time taken for backend calls",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.operationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_backend_operation_errors_total",
			Help: "Total number of failed backend calls",
		},
		[]string{"operation", "table", "error_type"},
	)

	m.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_jobs_total",
			Help: "Total number of jobs run by the store worker",
		},
		[]string{"status"},
	)

	m.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "datastore_job_duration_seconds",
		Help:    "Time a job held the store worker",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	})

	m.queueWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "datastore_queue_wait_seconds",
		Help:    "Time a job waited in the queue before it ran",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	})

	m.limiterWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "datastore_limiter_wait_seconds",
		Help:    "Time a job waited for the store call quota",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.operationErrorsTotal,
		m.jobsTotal,
		m.jobDuration,
		m.queueWaitSeconds,
		m.limiterWait,
	}
}

// TrackCache exports cache counters read from stats on every scrape
func (m *DatastoreMetrics) TrackCache(stats func() (hits, misses uint64, entries int)) error {
	m.cacheHits = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "datastore_cache_hits_total",
		Help: "Total number of cache hits for derived reads",
	}, func() float64 {
		h, _, _ := stats()
		return float64(h)
	})
	m.cacheMisses = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "datastore_cache_misses_total",
		Help: "Total number of cache misses for derived reads",
	}, func() float64 {
		_, miss, _ := stats()
		return float64(miss)
	})
	m.cacheEntries = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "datastore_cache_entries",
		Help: "Number of entries currently held in the cache",
	}, func() float64 {
		_, _, n := stats()
		return float64(n)
	})
	for _, c := range []prometheus.Collector{m.cacheHits, m.cacheMisses, m.cacheEntries} {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// parseTableFromOperation splits "operation:table"
func parseTableFromOperation(operation string) (op, table string) {
	parts := strings.SplitN(operation, ":", SplitPartsCount)
	if len(parts) == SplitPartsCount {
		return parts[0], parts[1]
	}
	return operation, ""
}

// RecordOperation implements the Recorder interface.
// Backend calls use "operation:table" (e.g. "append:Ratings"); worker jobs use "job".
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpRead, OpAppend, OpUpdate, OpDelete, OpCreateTable, OpReplace, OpPing:
		m.operationsTotal.WithLabelValues(op, table, status).Inc()
	case OpJob:
		m.jobsTotal.WithLabelValues(status).Inc()
	default:
		getLogger().Debug("unknown datastore operation", logger.String("operation", operation))
	}
}

// RecordDuration implements the Recorder interface.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpRead, OpAppend, OpUpdate, OpDelete, OpCreateTable, OpReplace, OpPing:
		m.operationDuration.WithLabelValues(op, table).Observe(seconds)
	case OpJob:
		m.jobDuration.Observe(seconds)
	case OpQueueWait:
		m.queueWaitSeconds.Observe(seconds)
	case OpLimiterWait:
		m.limiterWait.Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	op, table := parseTableFromOperation(operation)

	switch op {
	case OpRead, OpAppend, OpUpdate, OpDelete, OpCreateTable, OpReplace, OpPing:
		m.operationErrorsTotal.WithLabelValues(op, table, errorType).Inc()
		m.operationsTotal.WithLabelValues(op, table, StatusError).Inc()
	case OpJob:
		m.jobsTotal.WithLabelValues(StatusError).Inc()
	}
}

var _ Recorder = (*DatastoreMetrics)(nil)
