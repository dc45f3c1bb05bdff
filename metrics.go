package vecfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    mutations *prometheus.CounterVec
//	    queries   prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordMutation(op string, d time.Duration, err error) {
//	    p.mutations.WithLabelValues(op).Inc()
//	}
type MetricsCollector interface {
	// RecordMutation is called after each structural mutation
	// (create, write, truncate, remove, attribute changes).
	// op names the operation, err is nil if successful.
	RecordMutation(op string, duration time.Duration, err error)

	// RecordQuery is called after each query. kind is "compare" or
	// "similarity", matches is the result count.
	RecordQuery(kind string, matches int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMutation(string, time.Duration, error)   {}
func (NoopMetricsCollector) RecordQuery(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MutationCount      atomic.Int64
	MutationErrors     atomic.Int64
	MutationTotalNanos atomic.Int64
	QueryCount         atomic.Int64
	QueryErrors        atomic.Int64
	QueryMatches       atomic.Int64
	QueryTotalNanos    atomic.Int64
}

// RecordMutation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMutation(_ string, duration time.Duration, err error) {
	b.MutationCount.Add(1)
	b.MutationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MutationErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ string, matches int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	b.QueryMatches.Add(int64(matches))
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MutationCount:    b.MutationCount.Load(),
		MutationErrors:   b.MutationErrors.Load(),
		MutationAvgNanos: avg(b.MutationTotalNanos.Load(), b.MutationCount.Load()),
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryMatches:     b.QueryMatches.Load(),
		QueryAvgNanos:    avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MutationCount    int64
	MutationErrors   int64
	MutationAvgNanos int64
	QueryCount       int64
	QueryErrors      int64
	QueryMatches     int64
	QueryAvgNanos    int64
}
