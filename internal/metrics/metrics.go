// Package metrics provides Prometheus metrics for taskman
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for taskman. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	RowsMatched   prometheus.Histogram

	// Connection metrics
	ConnectionsBuilt prometheus.Counter
	ConnectFailures  prometheus.Counter

	// Storage metrics
	StorageOperationsTotal *prometheus.CounterVec
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskman_queries_total",
			Help: "Total number of executed queries",
		},
		[]string{"status"},
	)

	m.QueryDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskman_query_duration_seconds",
			Help:    "Duration of query execution in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	m.RowsMatched = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskman_query_rows_matched",
			Help:    "Number of documents matched per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	m.ConnectionsBuilt = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "taskman_connections_built_total",
			Help: "Total number of storage connections built",
		},
	)

	m.ConnectFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "taskman_connect_failures_total",
			Help: "Total number of failed connection attempts",
		},
	)

	m.StorageOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskman_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	return m
}

// RecordQuery records one query execution
func (m *Metrics) RecordQuery(matched int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status(err)).Inc()
	m.QueryDuration.Observe(duration.Seconds())
	if err == nil {
		m.RowsMatched.Observe(float64(matched))
	}
}

// RecordConnect records the outcome of a connection build
func (m *Metrics) RecordConnect(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ConnectFailures.Inc()
		return
	}
	m.ConnectionsBuilt.Inc()
}

// RecordStorageOperation records one storage operation
func (m *Metrics) RecordStorageOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
