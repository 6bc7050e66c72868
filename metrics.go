package vecspace

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
//	    upsertCounter  prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(topK, results int, d time.Duration, err error) {
//	    p.queryHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordUpsert is called after each upsert batch.
	// count is the number of records attempted, failed the number rejected.
	RecordUpsert(count, failed int, duration time.Duration)

	// RecordQuery is called after each query vector is answered.
	RecordQuery(topK, results int, duration time.Duration, err error)

	// RecordFetch is called after each fetch.
	RecordFetch(requested, found int, duration time.Duration)

	// RecordDelete is called after each delete operation.
	RecordDelete(removed int, duration time.Duration, err error)

	// RecordUpdate is called after each update operation.
	RecordUpdate(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(int, int, time.Duration)       {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFetch(int, int, time.Duration)        {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	UpsertCount     atomic.Int64
	UpsertRecords   atomic.Int64
	UpsertFailed    atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	FetchCount      atomic.Int64
	FetchFound      atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	DeletedRecords  atomic.Int64
	UpdateCount     atomic.Int64
	UpdateErrors    atomic.Int64
}

// RecordUpsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpsert(count, failed int, _ time.Duration) {
	b.UpsertCount.Add(1)
	b.UpsertRecords.Add(int64(count))
	b.UpsertFailed.Add(int64(failed))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_, _ int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(_, found int, _ time.Duration) {
	b.FetchCount.Add(1)
	b.FetchFound.Add(int64(found))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(removed int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeletedRecords.Add(int64(removed))
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(_ time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		UpsertCount:    b.UpsertCount.Load(),
		UpsertRecords:  b.UpsertRecords.Load(),
		UpsertFailed:   b.UpsertFailed.Load(),
		QueryCount:     b.QueryCount.Load(),
		QueryErrors:    b.QueryErrors.Load(),
		QueryAvgNanos:  b.getAvgQueryNanos(),
		FetchCount:     b.FetchCount.Load(),
		FetchFound:     b.FetchFound.Load(),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		DeletedRecords: b.DeletedRecords.Load(),
		UpdateCount:    b.UpdateCount.Load(),
		UpdateErrors:   b.UpdateErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	UpsertCount    int64
	UpsertRecords  int64
	UpsertFailed   int64
	QueryCount     int64
	QueryErrors    int64
	QueryAvgNanos  int64
	FetchCount     int64
	FetchFound     int64
	DeleteCount    int64
	DeleteErrors   int64
	DeletedRecords int64
	UpdateCount    int64
	UpdateErrors   int64
}
