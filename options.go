package pathgo

import (
	"log/slog"
	"time"

	"github.com/hupe1980/pathgo/engine"
	"github.com/hupe1980/pathgo/graphstore"
	"github.com/hupe1980/pathgo/internal/resource"
	"github.com/hupe1980/pathgo/snapshot"
)

type options struct {
	ringReplicas     int
	cacheCapacity    int
	cacheTTL         time.Duration
	searchOptions    []func(*engine.Options)
	resourceConfig   resource.Config
	compression      snapshot.Compression
	graphStore       graphstore.Store
	snapshotStore    snapshot.Store
	snapshotOptions  []func(*snapshot.ManagerOptions)
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures PathGo constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. store-specific constructor variants).
type Option func(*options)

// WithRingReplicas configures the number of virtual nodes each shard
// contributes to the placement ring. More replicas smooth out identity
// distribution at the cost of a larger ring.
//
// If replicas <= 0, the default is used.
func WithRingReplicas(replicas int) Option {
	return func(o *options) {
		o.ringReplicas = replicas
	}
}

// WithCache configures the path result cache. capacity bounds the number
// of cached paths, ttl bounds their age. Non-positive values select the
// defaults.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheCapacity = capacity
		o.cacheTTL = ttl
	}
}

// WithSearchOptions configures the default search behavior (time budget,
// depth limit, retries, workers). Per-query options still override these.
//
// Example:
//
//	pg, _ := pathgo.New(8, pathgo.WithSearchOptions(func(o *engine.Options) {
//	    o.TimeBudget = 2 * time.Second
//	    o.MaxDepth = 4
//	}))
func WithSearchOptions(optFns ...func(*engine.Options)) Option {
	return func(o *options) {
		o.searchOptions = append(o.searchOptions, optFns...)
	}
}

// WithResourceLimits configures global admission control: concurrent query
// slots, mutation rate, and snapshot IO throughput. Zero values disable the
// matching limit.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithCompression configures the codec used for snapshot payloads.
func WithCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithGraphStore configures write-through persistence for graph mutations.
// On construction the shards are hydrated from the store; afterwards every
// mutation lands in memory first and its end state is then written to the
// store. A persist failure surfaces as an error while memory keeps the
// mutation; reissuing the mutation retries the write.
//
// The caller retains ownership of the store and closes it after Close.
func WithGraphStore(store graphstore.Store) Option {
	return func(o *options) {
		o.graphStore = store
	}
}

// WithSnapshotStore configures a store for checkpoint snapshots, enabling
// Checkpoint and Restore.
//
// Example:
//
//	pg, _ := pathgo.New(8,
//	    pathgo.WithSnapshotStore(store, func(o *snapshot.ManagerOptions) {
//	        o.Prefix = "prod/graph"
//	    }),
//	)
func WithSnapshotStore(store snapshot.Store, optFns ...func(*snapshot.ManagerOptions)) Option {
	return func(o *options) {
		o.snapshotStore = store
		o.snapshotOptions = optFns
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pathgo.BasicMetricsCollector{}
//	pg, _ := pathgo.New(8, pathgo.WithMetricsCollector(metrics))
//	// ... use pg ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.FindPathCount, stats.FindPathAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := pathgo.NewJSONLogger(slog.LevelInfo)
//	pg, _ := pathgo.New(8, pathgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression:      snapshot.CompressionZSTD,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
