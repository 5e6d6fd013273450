package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/graphstore"
)

// GraphShard is the neighbor and mutation surface searches run against.
// Local shards answer reads with nil errors; remote transports surface
// ErrShardUnavailable so searches can degrade instead of failing.
type GraphShard interface {
	// HasIdentity reports whether id is resident on this shard.
	HasIdentity(id core.Identity) (bool, error)

	// Neighbors returns the identities adjacent to id. Unknown
	// identities yield an empty result, not an error.
	Neighbors(id core.Identity) ([]core.Identity, error)

	// NeighborsBatch resolves several identities in one call.
	NeighborsBatch(ids []core.Identity) (map[core.Identity][]core.Identity, error)

	// AddIdentity registers id as resident. It reports whether the
	// shard changed.
	AddIdentity(ctx context.Context, id core.Identity) (bool, error)

	// RemoveIdentity withdraws residency for id and clears its rows on
	// this shard. It returns the neighbors the identity had here so the
	// caller can cascade removals on the opposite endpoints.
	RemoveIdentity(ctx context.Context, id core.Identity) ([]core.Identity, bool, error)

	// AddNeighbor records neighbor in owner's adjacency row.
	AddNeighbor(ctx context.Context, owner, neighbor core.Identity) (bool, error)

	// RemoveNeighbor deletes neighbor from owner's adjacency row.
	RemoveNeighbor(ctx context.Context, owner, neighbor core.Identity) (bool, error)

	// IdentityCount returns the number of resident identities.
	IdentityCount() int

	// EdgeEndpoints returns the summed degree of resident identities.
	EdgeEndpoints() int
}

// Shard holds one partition of the graph in memory.
//
// Identities are interned into dense uint32 slots; each slot's neighbor
// set is a roaring bitmap over slots. A slot exists for every identity
// the shard has seen, including neighbors owned by other shards, while
// the owned bitmap marks the residents.
//
// Write-through persistence records the desired end state even when the
// in-memory change was a no-op, so retrying after a failed persist
// converges. Memory is never rolled back on a persist failure.
type Shard struct {
	id int

	mu        sync.RWMutex
	slots     map[core.Identity]core.Slot
	ids       []core.Identity   // slot -> identity
	adjacency []*roaring.Bitmap // slot -> neighbor slots
	owned     *roaring.Bitmap   // slots resident on this shard

	store graphstore.Store // optional write-through, nil disables

	reads  atomic.Int64
	writes atomic.Int64
}

var _ GraphShard = (*Shard)(nil)

// NewShard creates an empty shard. A nil store disables write-through.
func NewShard(id int, store graphstore.Store) *Shard {
	return &Shard{
		id:    id,
		slots: make(map[core.Identity]core.Slot),
		owned: roaring.New(),
		store: store,
	}
}

// ID returns the shard's position in the topology.
func (s *Shard) ID() int { return s.id }

// slotFor interns id, growing the arena on first sight.
// Callers must hold mu for writing.
func (s *Shard) slotFor(id core.Identity) core.Slot {
	if slot, ok := s.slots[id]; ok {
		return slot
	}
	slot := core.Slot(len(s.ids))
	s.slots[id] = slot
	s.ids = append(s.ids, id)
	s.adjacency = append(s.adjacency, roaring.New())
	return slot
}

// HasIdentity implements GraphShard.
func (s *Shard) HasIdentity(id core.Identity) (bool, error) {
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	return ok && s.owned.Contains(uint32(slot)), nil
}

// Neighbors implements GraphShard.
func (s *Shard) Neighbors(id core.Identity) ([]core.Identity, error) {
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.neighborsLocked(id), nil
}

// NeighborsBatch implements GraphShard. It resolves the whole batch
// under a single lock acquisition.
func (s *Shard) NeighborsBatch(ids []core.Identity) (map[core.Identity][]core.Identity, error) {
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make(map[core.Identity][]core.Identity, len(ids))
	for _, id := range ids {
		rows[id] = s.neighborsLocked(id)
	}
	return rows, nil
}

func (s *Shard) neighborsLocked(id core.Identity) []core.Identity {
	slot, ok := s.slots[id]
	if !ok {
		return nil
	}
	row := s.adjacency[slot]
	if row.IsEmpty() {
		return nil
	}
	neighbors := make([]core.Identity, 0, row.GetCardinality())
	it := row.Iterator()
	for it.HasNext() {
		neighbors = append(neighbors, s.ids[it.Next()])
	}
	return neighbors
}

// AddIdentity implements GraphShard.
func (s *Shard) AddIdentity(ctx context.Context, id core.Identity) (bool, error) {
	s.writes.Add(1)
	s.mu.Lock()
	slot := s.slotFor(id)
	added := s.owned.CheckedAdd(uint32(slot))
	s.mu.Unlock()

	return added, s.persistIdentity(ctx, id, true)
}

// RemoveIdentity implements GraphShard.
func (s *Shard) RemoveIdentity(ctx context.Context, id core.Identity) ([]core.Identity, bool, error) {
	s.writes.Add(1)
	s.mu.Lock()
	slot, known := s.slots[id]
	if !known {
		s.mu.Unlock()
		return nil, false, s.persistIdentity(ctx, id, false)
	}
	removed := s.owned.CheckedRemove(uint32(slot))
	former := s.neighborsLocked(id)
	s.adjacency[slot].Clear()
	// Drop the reverse rows held on this shard. Rows on other shards
	// are the coordinator's to clean up.
	for _, neighbor := range former {
		if nslot, ok := s.slots[neighbor]; ok {
			s.adjacency[nslot].Remove(uint32(slot))
		}
	}
	s.mu.Unlock()

	var err error
	for _, neighbor := range former {
		if e := s.persistEdge(ctx, id, neighbor, false); e != nil && err == nil {
			err = e
		}
		if e := s.persistEdge(ctx, neighbor, id, false); e != nil && err == nil {
			err = e
		}
	}
	if e := s.persistIdentity(ctx, id, false); e != nil && err == nil {
		err = e
	}
	return former, removed, err
}

// AddNeighbor implements GraphShard. Both identities are interned on
// first sight; the owner does not need to be resident, which lets bulk
// loaders replay rows in any order.
func (s *Shard) AddNeighbor(ctx context.Context, owner, neighbor core.Identity) (bool, error) {
	s.writes.Add(1)
	s.mu.Lock()
	ownerSlot := s.slotFor(owner)
	neighborSlot := s.slotFor(neighbor)
	added := s.adjacency[ownerSlot].CheckedAdd(uint32(neighborSlot))
	s.mu.Unlock()

	return added, s.persistEdge(ctx, owner, neighbor, true)
}

// RemoveNeighbor implements GraphShard.
func (s *Shard) RemoveNeighbor(ctx context.Context, owner, neighbor core.Identity) (bool, error) {
	s.writes.Add(1)
	s.mu.Lock()
	removed := false
	if ownerSlot, ok := s.slots[owner]; ok {
		if neighborSlot, ok := s.slots[neighbor]; ok {
			removed = s.adjacency[ownerSlot].CheckedRemove(uint32(neighborSlot))
		}
	}
	s.mu.Unlock()

	return removed, s.persistEdge(ctx, owner, neighbor, false)
}

// IdentityCount implements GraphShard.
func (s *Shard) IdentityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int(s.owned.GetCardinality())
}

// EdgeEndpoints implements GraphShard. Each undirected edge contributes
// one endpoint per resident side, so the total across all shards is
// twice the edge count.
func (s *Shard) EdgeEndpoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	it := s.owned.Iterator()
	for it.HasNext() {
		total += int(s.adjacency[it.Next()].GetCardinality())
	}
	return total
}

// ReadOps returns the cumulative read operation count.
func (s *Shard) ReadOps() int64 { return s.reads.Load() }

// WriteOps returns the cumulative write operation count.
func (s *Shard) WriteOps() int64 { return s.writes.Load() }

// Reset drops the shard's in-memory state. A write-through store is not
// touched; callers restoring from a snapshot own reconciling it.
func (s *Shard) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots = make(map[core.Identity]core.Slot)
	s.ids = nil
	s.adjacency = nil
	s.owned = roaring.New()
}

// Load replays a persisted adjacency record into the shard. Keys are
// applied in sorted order so slot assignment, and with it neighbor
// iteration order, is reproducible across restarts.
func (s *Shard) Load(rec graphstore.Record) {
	keys := make([]core.Identity, 0, len(rec))
	for id := range rec {
		keys = append(keys, id)
	}
	slices.Sort(keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range keys {
		slot := s.slotFor(id)
		s.owned.Add(uint32(slot))
		for _, neighbor := range rec[id] {
			s.adjacency[slot].Add(uint32(s.slotFor(neighbor)))
		}
	}
}

// Export copies the shard's owned adjacency rows into a record suitable
// for persisting or snapshotting. Rows referencing non-resident
// identities are included; the record mirrors exactly what Load rebuilds.
func (s *Shard) Export() graphstore.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := make(graphstore.Record, s.owned.GetCardinality())
	it := s.owned.Iterator()
	for it.HasNext() {
		id := s.ids[it.Next()]
		rec[id] = s.neighborsLocked(id)
	}
	return rec
}

// LoadShards hydrates every shard from its persisted adjacency record.
func LoadShards(ctx context.Context, store graphstore.Store, shards []*Shard) error {
	for _, s := range shards {
		rec, err := store.LoadAdjacency(ctx, s.ID())
		if err != nil {
			return fmt.Errorf("load shard %d: %w", s.ID(), err)
		}
		s.Load(rec)
	}
	return nil
}

func (s *Shard) persistIdentity(ctx context.Context, id core.Identity, present bool) error {
	if s.store == nil {
		return nil
	}
	return s.store.PersistIdentity(ctx, s.id, id, present)
}

func (s *Shard) persistEdge(ctx context.Context, owner, neighbor core.Identity, present bool) error {
	if s.store == nil {
		return nil
	}
	return s.store.PersistEdge(ctx, s.id, owner, neighbor, present)
}
