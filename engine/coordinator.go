package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/internal/cache"
)

// Coordinator serializes graph mutations across shards and keeps cached
// paths honest.
//
// Every mutation is stamped with a sequence number per affected
// identity. Replayed events whose sequence number is stale for all
// affected identities are dropped, so at-least-once delivery converges
// on the same graph. Direct mutations draw their stamps from the same
// monotonic source that replayed events advance.
//
// Mutations sharing an affected identity are applied one at a time,
// holding the identity locks from the staleness check through the
// shard writes, so their writes land in sequence order. The ledger
// commits a replayed event only after its writes succeed; a failed
// apply leaves the ledger untouched and the redelivery retries.
type Coordinator struct {
	router *Router
	shards []GraphShard
	cache  *cache.PathCache // optional, nil disables invalidation

	locks identityLocks // serializes mutations per affected identity

	mu   sync.Mutex
	last map[core.Identity]uint64
	seq  uint64

	retryAttempts int
	retryBackoff  time.Duration

	closed atomic.Bool
}

// identityLocks stripes mutation ordering across a fixed set of
// mutexes. 64 stripes so one uint64 covers the acquisition mask.
type identityLocks struct {
	stripes [64]sync.Mutex
}

// lock acquires the stripes covering ids and returns the matching
// unlock. The mask collapses duplicates and identities sharing a
// stripe; taking stripes in index order keeps concurrent
// multi-identity mutations deadlock free.
func (l *identityLocks) lock(ids ...core.Identity) func() {
	var mask uint64
	for _, id := range ids {
		mask |= 1 << (xxhash.Sum64String(string(id)) & 63)
	}
	for i := range l.stripes {
		if mask&(1<<i) != 0 {
			l.stripes[i].Lock()
		}
	}
	return func() {
		for i := len(l.stripes) - 1; i >= 0; i-- {
			if mask&(1<<i) != 0 {
				l.stripes[i].Unlock()
			}
		}
	}
}

// NewCoordinator creates a mutation coordinator over shards. pathCache
// may be nil when no cache is in play.
func NewCoordinator(router *Router, shards []GraphShard, pathCache *cache.PathCache, optFns ...Option) (*Coordinator, error) {
	if router == nil || len(shards) == 0 || router.NumShards() != len(shards) {
		return nil, &ErrInvalidTopology{ShardCount: len(shards)}
	}
	opts := applyOptions(optFns...)

	return &Coordinator{
		router:        router,
		shards:        shards,
		cache:         pathCache,
		last:          make(map[core.Identity]uint64),
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
	}, nil
}

// Seq returns the highest sequence number the coordinator has issued or
// accepted.
func (c *Coordinator) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// AddIdentity registers id in the graph. It reports whether the graph
// changed.
func (c *Coordinator) AddIdentity(ctx context.Context, id core.Identity) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if id == "" {
		return false, ErrEmptyIdentity
	}
	defer c.locks.lock(id)()
	c.stamp(id)
	return c.applyAddIdentity(ctx, id)
}

// RemoveIdentity removes id and every edge incident to it. It reports
// whether the graph changed.
func (c *Coordinator) RemoveIdentity(ctx context.Context, id core.Identity) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if id == "" {
		return false, ErrEmptyIdentity
	}
	defer c.locks.lock(id)()
	c.stamp(id)
	return c.applyRemoveIdentity(ctx, id)
}

// AddEdge connects a and b. Both identities must exist; self-edges are
// rejected. The edge is recorded on both endpoint shards.
func (c *Coordinator) AddEdge(ctx context.Context, a, b core.Identity) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if a == "" || b == "" {
		return false, ErrEmptyIdentity
	}
	defer c.locks.lock(a, b)()
	c.stamp(a, b)
	return c.applyAddEdge(ctx, a, b)
}

// RemoveEdge disconnects a and b. Removing an absent edge is a no-op.
func (c *Coordinator) RemoveEdge(ctx context.Context, a, b core.Identity) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if a == "" || b == "" {
		return false, ErrEmptyIdentity
	}
	defer c.locks.lock(a, b)()
	c.stamp(a, b)
	return c.applyRemoveEdge(ctx, a, b)
}

// ApplyEvent replays one sequenced mutation. It reports whether the
// event was applied; events stale for every affected identity are
// dropped with no error. Sequence numbers start at 1, an unstamped
// event is always stale.
//
// The ledger records the event only after its shard writes succeed,
// so a failed apply can be retried by redelivering the event.
func (c *Coordinator) ApplyEvent(ctx context.Context, ev core.MutationEvent) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	affected := ev.Affected()
	for _, id := range affected {
		if id == "" {
			return false, ErrEmptyIdentity
		}
	}

	// The identity locks span staleness check, shard writes, and
	// ledger commit; a concurrent event on a shared identity cannot
	// land its writes in between.
	defer c.locks.lock(affected...)()

	if c.stale(ev.Seq, affected) {
		return false, nil
	}

	applied, err := c.apply(ctx, ev)
	if err != nil {
		return applied, err
	}

	c.mu.Lock()
	for _, id := range affected {
		if ev.Seq > c.last[id] {
			c.last[id] = ev.Seq
		}
	}
	if ev.Seq > c.seq {
		c.seq = ev.Seq
	}
	c.mu.Unlock()
	return applied, nil
}

// stale reports whether seq is no newer than what every affected
// identity has already seen.
func (c *Coordinator) stale(seq uint64, affected []core.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range affected {
		if seq > c.last[id] {
			return false
		}
	}
	return true
}

// AdvanceSeq raises the sequence floor to seq, so mutations issued after
// a snapshot restore stamp past everything the snapshot already covers.
// It never lowers the current value.
func (c *Coordinator) AdvanceSeq(seq uint64) {
	c.mu.Lock()
	if seq > c.seq {
		c.seq = seq
	}
	c.mu.Unlock()
}

// Close marks the coordinator closed. Shards and cache are shared and
// stay untouched.
func (c *Coordinator) Close() error {
	c.closed.Store(true)
	return nil
}

// stamp issues the next sequence number to the affected identities.
// The caller holds the identity locks covering affected.
func (c *Coordinator) stamp(affected ...core.Identity) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	for _, id := range affected {
		c.last[id] = c.seq
	}
	return c.seq
}

func (c *Coordinator) apply(ctx context.Context, ev core.MutationEvent) (bool, error) {
	switch ev.Op {
	case core.OpAddIdentity:
		return c.applyAddIdentity(ctx, ev.A)
	case core.OpRemoveIdentity:
		return c.applyRemoveIdentity(ctx, ev.A)
	case core.OpAddEdge:
		return c.applyAddEdge(ctx, ev.A, ev.B)
	case core.OpRemoveEdge:
		return c.applyRemoveEdge(ctx, ev.A, ev.B)
	default:
		return false, fmt.Errorf("unknown mutation op %d", ev.Op)
	}
}

func (c *Coordinator) applyAddIdentity(ctx context.Context, id core.Identity) (bool, error) {
	shard := c.shards[c.router.Route(id)]
	return c.retryMutation(ctx, func() (bool, error) {
		return shard.AddIdentity(ctx, id)
	})
}

func (c *Coordinator) applyRemoveIdentity(ctx context.Context, id core.Identity) (bool, error) {
	home := c.shards[c.router.Route(id)]
	neighbors, err := withRetry(ctx, c.retryAttempts, c.retryBackoff, func() ([]core.Identity, error) {
		return home.Neighbors(id)
	})
	if err != nil {
		return false, fmt.Errorf("shard %d: %w", c.router.Route(id), err)
	}

	// Detach every incident edge first so no shard keeps a dangling
	// reference to the removed identity.
	changed := false
	for _, n := range neighbors {
		removed, err := c.applyRemoveEdge(ctx, id, n)
		changed = changed || removed
		if err != nil {
			return changed, err
		}
	}

	removed, err := c.retryMutation(ctx, func() (bool, error) {
		_, ok, err := home.RemoveIdentity(ctx, id)
		return ok, err
	})
	changed = changed || removed
	if changed {
		c.invalidate(append(slices.Clone(neighbors), id)...)
	}
	return changed, err
}

func (c *Coordinator) applyAddEdge(ctx context.Context, a, b core.Identity) (bool, error) {
	if a == b {
		return false, &ErrInvalidEdge{A: a, B: b, Reason: "self edge"}
	}
	for _, id := range []core.Identity{a, b} {
		shardID := c.router.Route(id)
		ok, err := withRetry(ctx, c.retryAttempts, c.retryBackoff, func() (bool, error) {
			return c.shards[shardID].HasIdentity(id)
		})
		if err != nil {
			return false, fmt.Errorf("shard %d: %w", shardID, err)
		}
		if !ok {
			return false, &ErrUnknownIdentity{ID: id}
		}
	}

	// The edge is mirrored on both endpoint shards so either side can
	// answer neighbor lookups locally.
	addedA, errA := c.retryMutation(ctx, func() (bool, error) {
		return c.shards[c.router.Route(a)].AddNeighbor(ctx, a, b)
	})
	addedB, errB := c.retryMutation(ctx, func() (bool, error) {
		return c.shards[c.router.Route(b)].AddNeighbor(ctx, b, a)
	})

	changed := addedA || addedB
	if changed {
		// A new edge can shorten existing paths, so cached entries
		// touching either endpoint are stale too.
		c.invalidate(a, b)
	}
	if errA != nil {
		return changed, errA
	}
	return changed, errB
}

func (c *Coordinator) applyRemoveEdge(ctx context.Context, a, b core.Identity) (bool, error) {
	if a == b {
		return false, &ErrInvalidEdge{A: a, B: b, Reason: "self edge"}
	}
	removedA, errA := c.retryMutation(ctx, func() (bool, error) {
		return c.shards[c.router.Route(a)].RemoveNeighbor(ctx, a, b)
	})
	removedB, errB := c.retryMutation(ctx, func() (bool, error) {
		return c.shards[c.router.Route(b)].RemoveNeighbor(ctx, b, a)
	})

	changed := removedA || removedB
	if changed {
		c.invalidate(a, b)
	}
	if errA != nil {
		return changed, errA
	}
	return changed, errB
}

// retryMutation retries an idempotent shard write, reporting whether
// any attempt changed the shard.
func (c *Coordinator) retryMutation(ctx context.Context, fn func() (bool, error)) (bool, error) {
	changed := false
	_, err := withRetry(ctx, c.retryAttempts, c.retryBackoff, func() (struct{}, error) {
		ok, err := fn()
		changed = changed || ok
		return struct{}{}, err
	})
	return changed, err
}

// invalidate drops every cached path whose key or hops touch one of ids.
// A key-only match is not enough: a cached path keyed (u1,u4) may route
// through u2, and removing u2's edge must evict it.
func (c *Coordinator) invalidate(ids ...core.Identity) {
	if c.cache == nil {
		return
	}
	c.cache.Invalidate(func(key core.Pair, path []core.Identity) bool {
		for _, id := range ids {
			if key.Touches(id) || slices.Contains(path, id) {
				return true
			}
		}
		return false
	})
}
