package pathgo

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/engine"
	"github.com/hupe1980/pathgo/internal/cache"
	"github.com/hupe1980/pathgo/internal/resource"
	"github.com/hupe1980/pathgo/snapshot"
)

// PathGo is a sharded social graph with bidirectional shortest-path search,
// connection suggestions, result caching, and snapshot persistence.
type PathGo struct {
	router    *engine.Router
	shards    []*engine.Shard
	eng       *engine.Engine
	coord     *engine.Coordinator
	pathCache *cache.PathCache
	resources *resource.Controller
	snapshots *snapshot.Manager // nil unless a snapshot store is configured

	compression snapshot.Compression
	metrics     MetricsCollector
	logger      *Logger

	queries   atomic.Int64
	mutations atomic.Int64
	closed    atomic.Bool
}

// New creates a PathGo instance spanning numShards in-process shards.
//
// When a graph store is configured, the shards are hydrated from it before
// New returns, and every applied mutation is written through afterwards.
func New(numShards int, optFns ...Option) (*PathGo, error) {
	opts := applyOptions(optFns)

	router, err := engine.NewRouter(numShards, func(o *engine.RingOptions) {
		if opts.ringReplicas > 0 {
			o.Replicas = opts.ringReplicas
		}
	})
	if err != nil {
		return nil, translateError(err)
	}

	shards := make([]*engine.Shard, numShards)
	graphShards := make([]engine.GraphShard, numShards)
	for i := range numShards {
		shards[i] = engine.NewShard(i, opts.graphStore)
		graphShards[i] = shards[i]
	}

	if opts.graphStore != nil {
		if err := engine.LoadShards(context.Background(), opts.graphStore, shards); err != nil {
			return nil, fmt.Errorf("pathgo: failed to hydrate shards: %w", err)
		}
	}

	engineOpts := make([]engine.Option, 0, len(opts.searchOptions))
	for _, fn := range opts.searchOptions {
		engineOpts = append(engineOpts, engine.Option(fn))
	}

	eng, err := engine.New(router, graphShards, engineOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	pathCache := cache.New(opts.cacheCapacity, opts.cacheTTL)

	coord, err := engine.NewCoordinator(router, graphShards, pathCache, engineOpts...)
	if err != nil {
		_ = eng.Close()
		return nil, translateError(err)
	}

	pg := &PathGo{
		router:      router,
		shards:      shards,
		eng:         eng,
		coord:       coord,
		pathCache:   pathCache,
		resources:   resource.NewController(opts.resourceConfig),
		compression: opts.compression,
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
	}

	if opts.snapshotStore != nil {
		// The configured compression is the manager default; explicit
		// manager options win.
		managerOptFns := append([]func(*snapshot.ManagerOptions){
			func(o *snapshot.ManagerOptions) {
				o.Compression = opts.compression
			},
		}, opts.snapshotOptions...)
		pg.snapshots = snapshot.NewManager(opts.snapshotStore, managerOptFns...)
	}

	return pg, nil
}

// PathResult is the outcome of one path query.
type PathResult struct {
	engine.PathResult

	// FromCache marks a result served from the result cache.
	FromCache bool
}

// DepthLimited reports whether the depth budget ended the search before
// the frontiers could meet.
func (r *PathResult) DepthLimited() bool {
	return r.Outcome == engine.OutcomeDepthLimited
}

// TimedOut reports whether the time budget ended the search.
func (r *PathResult) TimedOut() bool {
	return r.Outcome == engine.OutcomeTimedOut
}

// FindPathOptions contains per-query overrides.
type FindPathOptions struct {
	// TimeBudget bounds the wall-clock search time.
	// Default: 0 (use configured default, typically 5s)
	TimeBudget time.Duration

	// MaxDepth bounds the combined expansion depth of both frontiers.
	// Default: 0 (use configured default, typically 6)
	MaxDepth int

	// SkipCache bypasses the result cache for this query. The result is
	// neither served from nor written to the cache.
	SkipCache bool
}

// FindPath searches for a shortest chain of connections between start and
// target. A miss within the configured budgets is a result, not an error.
func (pg *PathGo) FindPath(ctx context.Context, start, target core.Identity, optFns ...func(o *FindPathOptions)) (*PathResult, error) {
	began := time.Now()
	if pg.closed.Load() {
		return nil, ErrClosed
	}

	var opts FindPathOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if start == "" || target == "" {
		err := ErrEmptyIdentity
		pg.metrics.RecordFindPath("error", time.Since(began), 0, err)
		pg.logger.LogFindPath(ctx, start, target, "", 0, false, err)
		return nil, err
	}

	if !opts.SkipCache {
		if path, ok := pg.pathCache.Get(start, target); ok {
			pg.metrics.RecordCacheLookup(true)
			pg.queries.Add(1)
			result := &PathResult{
				PathResult: engine.PathResult{
					Found:   true,
					Path:    path,
					Degrees: len(path) - 1,
					Outcome: engine.OutcomeFound,
					Elapsed: time.Since(began),
				},
				FromCache: true,
			}
			pg.metrics.RecordFindPath(result.Outcome.String(), result.Elapsed, 0, nil)
			pg.logger.LogFindPath(ctx, start, target, result.Outcome.String(), result.Degrees, true, nil)
			return result, nil
		}
		pg.metrics.RecordCacheLookup(false)
	}

	if err := pg.resources.AcquireQuery(ctx); err != nil {
		pg.metrics.RecordFindPath("error", time.Since(began), 0, err)
		pg.logger.LogFindPath(ctx, start, target, "", 0, false, err)
		return nil, err
	}
	defer pg.resources.ReleaseQuery()

	res, err := pg.eng.FindPath(ctx, start, target, queryOptions(opts)...)
	duration := time.Since(began)
	if err != nil {
		err = translateError(err)
		pg.metrics.RecordFindPath("error", duration, 0, err)
		pg.logger.LogFindPath(ctx, start, target, "", 0, false, err)
		return nil, err
	}

	pg.queries.Add(1)
	if res.Found && !opts.SkipCache {
		pg.pathCache.Put(start, target, res.Path)
	}

	result := &PathResult{PathResult: *res}
	pg.metrics.RecordFindPath(res.Outcome.String(), duration, res.NodesExplored, nil)
	pg.logger.LogFindPath(ctx, start, target, res.Outcome.String(), result.Degrees, false, nil)
	return result, nil
}

// BatchResult pairs one query of a batch with its result or error.
type BatchResult struct {
	Start  core.Identity
	Target core.Identity
	Result *PathResult
	Err    error
}

// FindPathBatch runs multiple path queries with bounded concurrency.
// Individual query failures do not abort the batch; each slot carries its
// own result or error.
func (pg *PathGo) FindPathBatch(ctx context.Context, queries []engine.PairQuery, optFns ...func(o *FindPathOptions)) ([]BatchResult, error) {
	began := time.Now()
	if pg.closed.Load() {
		return nil, ErrClosed
	}

	results := make([]BatchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, q := range queries {
		g.Go(func() error {
			res, err := pg.FindPath(gctx, q.Start, q.Target, optFns...)
			results[i] = BatchResult{Start: q.Start, Target: q.Target, Result: res, Err: err}
			return nil
		})
	}
	// Workers never return errors; failures stay in their slot.
	_ = g.Wait()

	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	pg.metrics.RecordBatch(len(queries), failed, time.Since(began))
	pg.logger.LogBatch(ctx, len(queries), failed)
	return results, nil
}

// AddIdentity registers an identity with no connections. It reports whether
// the graph changed; adding an existing identity is a no-op.
func (pg *PathGo) AddIdentity(ctx context.Context, id core.Identity) (bool, error) {
	return pg.mutate(ctx, "add_identity", id, "", func(ctx context.Context) (bool, error) {
		return pg.coord.AddIdentity(ctx, id)
	})
}

// RemoveIdentity removes an identity and all its connections. Removing an
// unknown identity is a no-op.
func (pg *PathGo) RemoveIdentity(ctx context.Context, id core.Identity) (bool, error) {
	return pg.mutate(ctx, "remove_identity", id, "", func(ctx context.Context) (bool, error) {
		return pg.coord.RemoveIdentity(ctx, id)
	})
}

// AddConnection connects two existing identities bidirectionally.
// Both endpoints must exist and must differ.
func (pg *PathGo) AddConnection(ctx context.Context, a, b core.Identity) (bool, error) {
	return pg.mutate(ctx, "add_connection", a, b, func(ctx context.Context) (bool, error) {
		return pg.coord.AddEdge(ctx, a, b)
	})
}

// RemoveConnection disconnects two identities. Removing an absent
// connection is a no-op.
func (pg *PathGo) RemoveConnection(ctx context.Context, a, b core.Identity) (bool, error) {
	return pg.mutate(ctx, "remove_connection", a, b, func(ctx context.Context) (bool, error) {
		return pg.coord.RemoveEdge(ctx, a, b)
	})
}

// mutate funnels every direct mutation through admission control,
// error translation, metrics, and logging.
func (pg *PathGo) mutate(ctx context.Context, op string, a, b core.Identity, fn func(ctx context.Context) (bool, error)) (bool, error) {
	start := time.Now()
	if pg.closed.Load() {
		return false, ErrClosed
	}

	if err := pg.resources.WaitMutation(ctx); err != nil {
		pg.metrics.RecordMutation(op, time.Since(start), err)
		pg.logger.LogMutation(ctx, op, a, b, err)
		return false, err
	}

	changed, err := fn(ctx)
	duration := time.Since(start)
	err = translateError(err)
	if err == nil && changed {
		pg.mutations.Add(1)
	}
	pg.metrics.RecordMutation(op, duration, err)
	pg.logger.LogMutation(ctx, op, a, b, err)
	return changed, err
}

// ApplyEvent applies a replicated mutation event. Events whose sequence
// number is not newer than what an affected identity has already seen are
// dropped silently; ApplyEvent reports whether the graph changed.
//
// Replica catch-up is not subject to the mutation rate limit.
func (pg *PathGo) ApplyEvent(ctx context.Context, ev core.MutationEvent) (bool, error) {
	start := time.Now()
	if pg.closed.Load() {
		return false, ErrClosed
	}

	applied, err := pg.coord.ApplyEvent(ctx, ev)
	duration := time.Since(start)
	err = translateError(err)
	if err == nil && applied {
		pg.mutations.Add(1)
	}
	pg.metrics.RecordMutation("apply_event", duration, err)
	pg.logger.LogEvent(ctx, ev.Seq, ev.Op.String(), applied, err)
	return applied, err
}

// SuggestConnections recommends up to limit new connections for id, ranked
// by mutual connection count (highest first, ties by identity).
func (pg *PathGo) SuggestConnections(ctx context.Context, id core.Identity, limit int) ([]engine.Suggestion, error) {
	start := time.Now()
	if pg.closed.Load() {
		return nil, ErrClosed
	}

	suggestions, err := pg.eng.SuggestConnections(ctx, id, limit)
	duration := time.Since(start)
	err = translateError(err)
	pg.metrics.RecordSuggest(duration, err)
	pg.logger.LogSuggest(ctx, id, len(suggestions), err)
	return suggestions, err
}

// MutualConnections returns the identities directly connected to both a and b.
func (pg *PathGo) MutualConnections(ctx context.Context, a, b core.Identity) ([]core.Identity, error) {
	if pg.closed.Load() {
		return nil, ErrClosed
	}
	mutuals, err := pg.eng.MutualConnections(ctx, a, b)
	return mutuals, translateError(err)
}

// Degree returns the number of direct connections of id.
func (pg *PathGo) Degree(ctx context.Context, id core.Identity) (int, error) {
	if pg.closed.Load() {
		return 0, ErrClosed
	}
	degree, err := pg.eng.Degree(ctx, id)
	return degree, translateError(err)
}

// HasIdentity reports whether id is present in the graph.
func (pg *PathGo) HasIdentity(id core.Identity) (bool, error) {
	if pg.closed.Load() {
		return false, ErrClosed
	}
	if id == "" {
		return false, ErrEmptyIdentity
	}
	ok, err := pg.shards[pg.router.Route(id)].HasIdentity(id)
	return ok, translateError(err)
}

// Connections returns the direct connections of id.
func (pg *PathGo) Connections(id core.Identity) ([]core.Identity, error) {
	if pg.closed.Load() {
		return nil, ErrClosed
	}
	if id == "" {
		return nil, ErrEmptyIdentity
	}

	shard := pg.shards[pg.router.Route(id)]
	ok, err := shard.HasIdentity(id)
	if err != nil {
		return nil, translateError(err)
	}
	if !ok {
		return nil, &ErrUnknownIdentity{ID: id}
	}

	neighbors, err := shard.Neighbors(id)
	return neighbors, translateError(err)
}

// Seq returns the highest mutation sequence number applied so far.
func (pg *PathGo) Seq() uint64 {
	return pg.coord.Seq()
}

// PlanReshard computes which identities would move when changing the shard
// count to numShards. It only plans; the running topology is not touched.
func (pg *PathGo) PlanReshard(numShards int) (*engine.Remap, error) {
	if pg.closed.Load() {
		return nil, ErrClosed
	}
	_, remap, err := pg.router.Reshard(numShards)
	return remap, translateError(err)
}

// Stats describes graph sizes, cache efficiency, and serving counters.
type Stats struct {
	ShardCount         int
	Identities         int
	Edges              int
	IdentitiesPerShard []int
	Shards             []engine.ShardStats

	CacheSize    int
	CacheHits    int64
	CacheMisses  int64
	CacheHitRate float64

	QueriesServed    int64
	MutationsApplied int64
	InFlightQueries  int64
	Seq              uint64
}

// Stats returns statistics about the graph and its serving state.
func (pg *PathGo) Stats() Stats {
	if pg.closed.Load() {
		return Stats{}
	}

	es := pg.eng.Stats()
	hits, misses := pg.pathCache.Stats()

	perShard := make([]int, len(es.Shards))
	for i, s := range es.Shards {
		perShard[i] = s.Identities
	}

	st := Stats{
		ShardCount:         len(es.Shards),
		Identities:         es.Identities,
		Edges:              es.Edges,
		IdentitiesPerShard: perShard,
		Shards:             es.Shards,
		CacheSize:          pg.pathCache.Len(),
		CacheHits:          hits,
		CacheMisses:        misses,
		QueriesServed:      pg.queries.Load(),
		MutationsApplied:   pg.mutations.Load(),
		InFlightQueries:    pg.resources.InFlightQueries(),
		Seq:                pg.coord.Seq(),
	}
	if total := hits + misses; total > 0 {
		st.CacheHitRate = float64(hits) / float64(total)
	}
	return st
}

// queryOptions converts per-query overrides to engine options. Zero fields
// keep the engine defaults.
func queryOptions(opts FindPathOptions) []engine.Option {
	var optFns []engine.Option
	if opts.TimeBudget > 0 {
		optFns = append(optFns, engine.WithTimeBudget(opts.TimeBudget))
	}
	if opts.MaxDepth > 0 {
		optFns = append(optFns, engine.WithMaxDepth(opts.MaxDepth))
	}
	return optFns
}
