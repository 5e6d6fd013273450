// Package pathgo provides functionalities for a sharded social graph database.
//
// This file implements a fluent builder API for creating and configuring PathGo instances.
// The builder is immutable - each method returns a new builder with the updated configuration.
package pathgo

import (
	"time"

	"github.com/hupe1980/pathgo/engine"
	"github.com/hupe1980/pathgo/graphstore"
	"github.com/hupe1980/pathgo/internal/resource"
	"github.com/hupe1980/pathgo/snapshot"
)

// Graph creates a new builder for a graph spanning numShards shards.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents accidental
// state sharing.
//
// Example:
//
//	pg, err := pathgo.Graph(8).
//	    RingReplicas(256).
//	    CacheCapacity(4096).
//	    MaxDepth(5).
//	    Build()
func Graph(numShards int) GraphBuilder {
	return GraphBuilder{
		numShards: numShards,
	}
}

// GraphBuilder is an immutable fluent builder for creating PathGo instances.
// Each method returns a new builder with the updated configuration.
type GraphBuilder struct {
	numShards            int
	ringReplicas         int
	cacheCapacity        int
	cacheTTL             time.Duration
	timeBudget           time.Duration
	maxDepth             int
	retryAttempts        int
	retryBackoff         time.Duration
	workers              int
	maxConcurrentQueries int64
	mutationsPerSec      float64
	snapshotBytesPerSec  int64
	compression          *snapshot.Compression
	graphStore           graphstore.Store
	snapshotStore        snapshot.Store
	snapshotOptions      []func(*snapshot.ManagerOptions)
	logger               *Logger
	metrics              MetricsCollector
}

// RingReplicas sets the number of virtual nodes per shard on the placement
// ring. Higher values smooth identity distribution across shards.
// Default: 128. Recommended range: 64-512.
func (b GraphBuilder) RingReplicas(n int) GraphBuilder {
	b.ringReplicas = n
	return b
}

// CacheCapacity sets the maximum number of cached path results.
// Default: 1024.
func (b GraphBuilder) CacheCapacity(n int) GraphBuilder {
	b.cacheCapacity = n
	return b
}

// CacheTTL sets the maximum age of a cached path result.
// Default: 1 minute.
func (b GraphBuilder) CacheTTL(ttl time.Duration) GraphBuilder {
	b.cacheTTL = ttl
	return b
}

// TimeBudget sets the default wall-clock budget per search.
// Default: 5s. Per-query options still override this.
func (b GraphBuilder) TimeBudget(d time.Duration) GraphBuilder {
	b.timeBudget = d
	return b
}

// MaxDepth sets the default combined expansion depth of both frontiers,
// i.e. the longest degree of separation a search reports.
// Default: 6.
func (b GraphBuilder) MaxDepth(depth int) GraphBuilder {
	b.maxDepth = depth
	return b
}

// Retry sets the try budget and initial backoff for failing shard lookups.
// The backoff doubles after each failed attempt. Attempts and backoff are
// applied independently; a non-positive value keeps that field's default.
// Default: 3 attempts, 10ms backoff.
func (b GraphBuilder) Retry(attempts int, backoff time.Duration) GraphBuilder {
	b.retryAttempts = attempts
	b.retryBackoff = backoff
	return b
}

// Workers sets the size of the per-search fan-out worker pool.
// Default: one worker per shard, or GOMAXPROCS if that is larger.
func (b GraphBuilder) Workers(n int) GraphBuilder {
	b.workers = n
	return b
}

// MaxConcurrentQueries caps the number of in-flight searches.
// Default: 0 (unlimited).
func (b GraphBuilder) MaxConcurrentQueries(n int64) GraphBuilder {
	b.maxConcurrentQueries = n
	return b
}

// MutationRateLimit throttles graph mutations to perSec per second.
// Default: 0 (unlimited). Replica event application is never throttled.
func (b GraphBuilder) MutationRateLimit(perSec float64) GraphBuilder {
	b.mutationsPerSec = perSec
	return b
}

// SnapshotRateLimit caps snapshot IO throughput in bytes per second.
// Default: 0 (unlimited).
func (b GraphBuilder) SnapshotRateLimit(bytesPerSec int64) GraphBuilder {
	b.snapshotBytesPerSec = bytesPerSec
	return b
}

// Compression sets the codec for snapshot payloads.
// Default: zstd.
func (b GraphBuilder) Compression(c snapshot.Compression) GraphBuilder {
	b.compression = &c
	return b
}

// GraphStore enables write-through persistence of graph mutations and
// hydration from the store at build time.
// The caller retains ownership of the store and closes it after Close.
func (b GraphBuilder) GraphStore(store graphstore.Store) GraphBuilder {
	b.graphStore = store
	return b
}

// SnapshotStore enables Checkpoint and Restore against the given store.
func (b GraphBuilder) SnapshotStore(store snapshot.Store, optFns ...func(*snapshot.ManagerOptions)) GraphBuilder {
	b.snapshotStore = store
	b.snapshotOptions = optFns
	return b
}

// Logger sets the structured logger for operation tracing.
func (b GraphBuilder) Logger(l *Logger) GraphBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b GraphBuilder) Metrics(mc MetricsCollector) GraphBuilder {
	b.metrics = mc
	return b
}

// Build creates the PathGo instance.
func (b GraphBuilder) Build() (*PathGo, error) {
	return New(b.numShards, b.options()...)
}

// options converts the accumulated configuration into constructor
// options. Zero fields stay unset so the constructor defaults apply.
func (b GraphBuilder) options() []Option {
	var optFns []Option

	if b.ringReplicas > 0 {
		optFns = append(optFns, WithRingReplicas(b.ringReplicas))
	}
	if b.cacheCapacity > 0 || b.cacheTTL > 0 {
		optFns = append(optFns, WithCache(b.cacheCapacity, b.cacheTTL))
	}
	if b.timeBudget > 0 || b.maxDepth > 0 || b.retryAttempts > 0 || b.retryBackoff > 0 || b.workers > 0 {
		optFns = append(optFns, WithSearchOptions(func(o *engine.Options) {
			if b.timeBudget > 0 {
				o.TimeBudget = b.timeBudget
			}
			if b.maxDepth > 0 {
				o.MaxDepth = b.maxDepth
			}
			if b.retryAttempts > 0 {
				o.RetryAttempts = b.retryAttempts
			}
			if b.retryBackoff > 0 {
				o.RetryBackoff = b.retryBackoff
			}
			if b.workers > 0 {
				o.Workers = b.workers
			}
		}))
	}
	if b.maxConcurrentQueries > 0 || b.mutationsPerSec > 0 || b.snapshotBytesPerSec > 0 {
		optFns = append(optFns, WithResourceLimits(resource.Config{
			MaxConcurrentQueries: b.maxConcurrentQueries,
			MutationsPerSec:      b.mutationsPerSec,
			SnapshotBytesPerSec:  b.snapshotBytesPerSec,
		}))
	}
	if b.compression != nil {
		optFns = append(optFns, WithCompression(*b.compression))
	}
	if b.graphStore != nil {
		optFns = append(optFns, WithGraphStore(b.graphStore))
	}
	if b.snapshotStore != nil {
		optFns = append(optFns, WithSnapshotStore(b.snapshotStore, b.snapshotOptions...))
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}

	return optFns
}

// MustBuild creates the PathGo instance, panicking on error.
func (b GraphBuilder) MustBuild() *PathGo {
	pg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return pg
}
