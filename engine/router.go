package engine

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/pathgo/core"
)

// DefaultRingReplicas is the number of virtual nodes each shard projects
// onto the hash ring. More replicas smooth the key distribution at the
// cost of a larger ring.
const DefaultRingReplicas = 128

// Router maps identities onto shards with consistent hashing.
//
// The ring is immutable once built, so routing needs no locks. Reshard
// returns a fresh router plus a Remap describing which identities change
// owners, letting callers plan a migration while the old ring keeps
// serving lookups.
type Router struct {
	numShards int
	replicas  int
	ring      []uint64       // sorted virtual node hashes
	owner     map[uint64]int // virtual node hash -> shard
}

// RingOptions configure ring construction.
type RingOptions struct {
	// Replicas is the number of virtual nodes per shard. Non-positive
	// values select DefaultRingReplicas.
	Replicas int
}

// NewRouter builds a router spanning numShards shards.
func NewRouter(numShards int, optFns ...func(o *RingOptions)) (*Router, error) {
	opts := RingOptions{Replicas: DefaultRingReplicas}
	for _, fn := range optFns {
		fn(&opts)
	}
	return newRouter(numShards, opts.Replicas)
}

func newRouter(numShards, replicas int) (*Router, error) {
	if numShards < 1 {
		return nil, &ErrInvalidTopology{ShardCount: numShards}
	}
	if replicas < 1 {
		replicas = DefaultRingReplicas
	}

	r := &Router{
		numShards: numShards,
		replicas:  replicas,
		ring:      make([]uint64, 0, numShards*replicas),
		owner:     make(map[uint64]int, numShards*replicas),
	}
	for shard := 0; shard < numShards; shard++ {
		for v := 0; v < replicas; v++ {
			h := hashKey(fmt.Sprintf("shard-%d-vnode-%d", shard, v))
			// Hash collisions between virtual nodes are resolved
			// first-writer-wins, keeping the ring deterministic.
			if _, taken := r.owner[h]; taken {
				continue
			}
			r.owner[h] = shard
			r.ring = append(r.ring, h)
		}
	}
	sort.Slice(r.ring, func(i, j int) bool { return r.ring[i] < r.ring[j] })
	return r, nil
}

// NumShards returns the number of shards the router spans.
func (r *Router) NumShards() int { return r.numShards }

// Route returns the shard that owns id.
func (r *Router) Route(id core.Identity) int {
	h := hashKey(string(id))
	idx := sort.Search(len(r.ring), func(i int) bool { return r.ring[i] >= h })
	if idx == len(r.ring) {
		idx = 0
	}
	return r.owner[r.ring[idx]]
}

// Group partitions ids by owning shard, preserving input order within
// each shard's batch.
func (r *Router) Group(ids []core.Identity) map[int][]core.Identity {
	grouped := make(map[int][]core.Identity)
	for _, id := range ids {
		shard := r.Route(id)
		grouped[shard] = append(grouped[shard], id)
	}
	return grouped
}

// Reshard builds a router for numShards shards and the remap from r.
// Virtual node hashes depend only on shard and replica indexes, so
// identities keep their owners wherever the old and new rings agree.
func (r *Router) Reshard(numShards int) (*Router, *Remap, error) {
	next, err := newRouter(numShards, r.replicas)
	if err != nil {
		return nil, nil, err
	}
	return next, &Remap{prev: r, next: next}, nil
}

// Remap describes ownership changes between two ring layouts.
type Remap struct {
	prev *Router
	next *Router
}

// Moved reports the old and new owner of id and whether they differ.
func (m *Remap) Moved(id core.Identity) (from, to int, moved bool) {
	from = m.prev.Route(id)
	to = m.next.Route(id)
	return from, to, from != to
}

// hashKey positions keys on the ring. xxhash mixes the trailing bytes
// that distinguish virtual node labels; weaker hashes cluster the
// vnodes and skew shard ownership. The hash is seedless, so placement
// survives process restarts.
func hashKey(s string) uint64 {
	return xxhash.Sum64String(s)
}
