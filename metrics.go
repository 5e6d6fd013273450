package pathgo

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
//	    queryCounter   prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordFindPath(outcome string, duration time.Duration, explored int, err error) {
//	    p.queryCounter.Inc()
//	    // ... record outcome, duration, etc.
//	}
type MetricsCollector interface {
	// RecordFindPath is called after each path query.
	// outcome is the search outcome ("found", "exhausted", ...), explored is
	// the number of identities expanded, err is nil if successful.
	RecordFindPath(outcome string, duration time.Duration, explored int, err error)

	// RecordBatch is called after each batch path query.
	// count is the number of queries attempted, failed is the number that
	// failed, duration is the total time taken.
	RecordBatch(count, failed int, duration time.Duration)

	// RecordMutation is called after each graph mutation.
	// op names the mutation ("add_identity", "add_connection", ...).
	RecordMutation(op string, duration time.Duration, err error)

	// RecordSuggest is called after each suggestion query.
	RecordSuggest(duration time.Duration, err error)

	// RecordCacheLookup is called for each result cache probe.
	RecordCacheLookup(hit bool)

	// RecordSnapshot is called after each snapshot operation.
	// op is "save", "load", "checkpoint" or "restore"; size is the encoded
	// byte count, or zero when the snapshot store handles the encoding.
	RecordSnapshot(op string, size int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFindPath(string, time.Duration, int, error) {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration)              {}
func (NoopMetricsCollector) RecordMutation(string, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSuggest(time.Duration, error)               {}
func (NoopMetricsCollector) RecordCacheLookup(bool)                           {}
func (NoopMetricsCollector) RecordSnapshot(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FindPathCount      atomic.Int64
	FindPathErrors     atomic.Int64
	FindPathTotalNanos atomic.Int64
	NodesExplored      atomic.Int64
	BatchCount         atomic.Int64
	BatchQueries       atomic.Int64
	BatchFailed        atomic.Int64
	MutationCount      atomic.Int64
	MutationErrors     atomic.Int64
	MutationTotalNanos atomic.Int64
	SuggestCount       atomic.Int64
	SuggestErrors      atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotBytes      atomic.Int64
}

// RecordFindPath implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFindPath(outcome string, duration time.Duration, explored int, err error) {
	b.FindPathCount.Add(1)
	b.FindPathTotalNanos.Add(duration.Nanoseconds())
	b.NodesExplored.Add(int64(explored))
	if err != nil {
		b.FindPathErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(count, failed int, duration time.Duration) {
	b.BatchCount.Add(1)
	b.BatchQueries.Add(int64(count))
	b.BatchFailed.Add(int64(failed))
}

// RecordMutation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMutation(op string, duration time.Duration, err error) {
	b.MutationCount.Add(1)
	b.MutationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MutationErrors.Add(1)
	}
}

// RecordSuggest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSuggest(duration time.Duration, err error) {
	b.SuggestCount.Add(1)
	if err != nil {
		b.SuggestErrors.Add(1)
	}
}

// RecordCacheLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheLookup(hit bool) {
	if hit {
		b.CacheHits.Add(1)
	} else {
		b.CacheMisses.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(op string, size int, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotBytes.Add(int64(size))
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FindPathCount:    b.FindPathCount.Load(),
		FindPathErrors:   b.FindPathErrors.Load(),
		FindPathAvgNanos: b.getAvgFindPathNanos(),
		NodesExplored:    b.NodesExplored.Load(),
		BatchCount:       b.BatchCount.Load(),
		BatchQueries:     b.BatchQueries.Load(),
		BatchFailed:      b.BatchFailed.Load(),
		MutationCount:    b.MutationCount.Load(),
		MutationErrors:   b.MutationErrors.Load(),
		MutationAvgNanos: b.getAvgMutationNanos(),
		SuggestCount:     b.SuggestCount.Load(),
		SuggestErrors:    b.SuggestErrors.Load(),
		CacheHits:        b.CacheHits.Load(),
		CacheMisses:      b.CacheMisses.Load(),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
		SnapshotBytes:    b.SnapshotBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFindPathNanos() int64 {
	count := b.FindPathCount.Load()
	if count == 0 {
		return 0
	}
	return b.FindPathTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgMutationNanos() int64 {
	count := b.MutationCount.Load()
	if count == 0 {
		return 0
	}
	return b.MutationTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FindPathCount    int64
	FindPathErrors   int64
	FindPathAvgNanos int64
	NodesExplored    int64
	BatchCount       int64
	BatchQueries     int64
	BatchFailed      int64
	MutationCount    int64
	MutationErrors   int64
	MutationAvgNanos int64
	SuggestCount     int64
	SuggestErrors    int64
	CacheHits        int64
	CacheMisses      int64
	SnapshotCount    int64
	SnapshotErrors   int64
	SnapshotBytes    int64
}
