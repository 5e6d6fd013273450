package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pathgo/core"
)

// Engine answers pathfinding queries across a set of graph shards.
//
// The engine is read-only with respect to the graph; mutations go
// through the Coordinator. Both may share the same shards concurrently.
type Engine struct {
	router *Router
	shards []GraphShard
	pool   *WorkerPool
	opts   Options
	closed atomic.Bool
}

// New creates an engine over shards. The router's shard count must match
// the number of shards.
func New(router *Router, shards []GraphShard, optFns ...Option) (*Engine, error) {
	if router == nil || len(shards) == 0 || router.NumShards() != len(shards) {
		return nil, &ErrInvalidTopology{ShardCount: len(shards)}
	}
	opts := applyOptions(optFns...)

	// One worker per shard keeps a full fan-out from queueing behind
	// itself; extra cores raise the floor for concurrent searches.
	poolSize := opts.Workers
	if poolSize <= 0 {
		poolSize = len(shards)
		if procs := runtime.GOMAXPROCS(0); procs > poolSize {
			poolSize = procs
		}
	}

	return &Engine{
		router: router,
		shards: shards,
		pool:   NewWorkerPool(poolSize),
		opts:   opts,
	}, nil
}

// Router returns the engine's shard router.
func (e *Engine) Router() *Router { return e.router }

// FindPath runs a bidirectional breadth-first search from start to
// target and returns the shortest connection path between them.
//
// The search stops at the first of: frontiers meeting, a frontier going
// empty, the combined depth budget, or the time budget. Budget stops
// yield a result with Found=false, not an error; only caller
// cancellation and unusable endpoints surface as errors.
func (e *Engine) FindPath(ctx context.Context, start, target core.Identity, optFns ...Option) (*PathResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if start == "" || target == "" {
		return nil, ErrEmptyIdentity
	}
	opts := e.searchOptions(optFns...)
	began := time.Now()

	// The trivial query answers itself before any shard is consulted,
	// so it succeeds even for identities the graph has never seen.
	if start == target {
		return &PathResult{
			Found:         true,
			Path:          []core.Identity{start},
			Degrees:       0,
			NodesExplored: 1,
			Outcome:       OutcomeFound,
			Elapsed:       time.Since(began),
		}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.TimeBudget)
	defer cancel()

	for _, id := range []core.Identity{start, target} {
		ok, err := e.identityExists(runCtx, id, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if runCtx.Err() != nil {
				return &PathResult{Outcome: OutcomeTimedOut, Degrees: -1, Elapsed: time.Since(began)}, nil
			}
			return nil, err
		}
		if !ok {
			return nil, &ErrUnknownIdentity{ID: id}
		}
	}

	res, err := newSearch(e, ctx, opts, start, target).run(runCtx)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(began)
	return res, nil
}

// PairQuery names one start/target pair of a batch.
type PairQuery struct {
	Start  core.Identity
	Target core.Identity
}

// FindPathBatch resolves several queries concurrently. Results align
// with the input order. The batch fails fast: the first query error
// cancels the remaining searches.
func (e *Engine) FindPathBatch(ctx context.Context, queries []PairQuery, optFns ...Option) ([]*PathResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if len(queries) == 0 {
		return nil, nil
	}

	results := make([]*PathResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		g.Go(func() error {
			res, err := e.FindPath(gctx, q.Start, q.Target, optFns...)
			if err != nil {
				return fmt.Errorf("query %d (%q -> %q): %w", i, q.Start, q.Target, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close stops the fan-out pool. In-flight searches finish their current
// shard lookups and return.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.pool.Close()
	return nil
}

func (e *Engine) searchOptions(optFns ...Option) Options {
	opts := e.opts
	for _, fn := range optFns {
		fn(&opts)
	}
	return normalizeOptions(opts)
}

// identityExists routes id to its owning shard and asks for residency,
// retrying transient failures.
func (e *Engine) identityExists(ctx context.Context, id core.Identity, opts Options) (bool, error) {
	shardID := e.router.Route(id)
	ok, err := withRetry(ctx, opts.RetryAttempts, opts.RetryBackoff, func() (bool, error) {
		return e.shards[shardID].HasIdentity(id)
	})
	if err != nil {
		return false, fmt.Errorf("shard %d: %w", shardID, err)
	}
	return ok, nil
}

// neighborsWithRetry asks one shard for a batch of neighbor rows.
func (e *Engine) neighborsWithRetry(ctx context.Context, shardID int, ids []core.Identity, opts Options) (map[core.Identity][]core.Identity, error) {
	rows, err := withRetry(ctx, opts.RetryAttempts, opts.RetryBackoff, func() (map[core.Identity][]core.Identity, error) {
		return e.shards[shardID].NeighborsBatch(ids)
	})
	if err != nil {
		return nil, fmt.Errorf("shard %d: %w", shardID, err)
	}
	return rows, nil
}

// neighborsOf resolves a single identity's neighbor list.
func (e *Engine) neighborsOf(ctx context.Context, id core.Identity, opts Options) ([]core.Identity, error) {
	shardID := e.router.Route(id)
	neighbors, err := withRetry(ctx, opts.RetryAttempts, opts.RetryBackoff, func() ([]core.Identity, error) {
		return e.shards[shardID].Neighbors(id)
	})
	if err != nil {
		return nil, fmt.Errorf("shard %d: %w", shardID, err)
	}
	return neighbors, nil
}

// withRetry runs fn until it succeeds or the attempt budget is spent,
// doubling the backoff after each failure.
func withRetry[T any](ctx context.Context, attempts int, backoff time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, lastErr
}
