package graphstore

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/pathgo/core"
)

// MemoryStore is an in-memory implementation of Store using Go maps.
// It's suitable for tests and for deployments that rely on snapshots
// rather than write-through durability.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[int]map[core.Identity]struct{}
	adjacency  map[int]map[core.Identity][]core.Identity
}

// NewMemoryStore creates a new in-memory adjacency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[int]map[core.Identity]struct{}),
		adjacency:  make(map[int]map[core.Identity][]core.Identity),
	}
}

// LoadAdjacency returns a copy of the adjacency record for shardID.
func (m *MemoryStore) LoadAdjacency(ctx context.Context, shardID int) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec := make(Record, len(m.adjacency[shardID]))
	for id := range m.identities[shardID] {
		rec[id] = nil
	}
	for owner, neighbors := range m.adjacency[shardID] {
		rec[owner] = slices.Clone(neighbors)
	}
	return rec, nil
}

// PersistIdentity implements Store.
func (m *MemoryStore) PersistIdentity(ctx context.Context, shardID int, id core.Identity, present bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.identities[shardID]
	if !ok {
		ids = make(map[core.Identity]struct{})
		m.identities[shardID] = ids
	}
	if present {
		ids[id] = struct{}{}
	} else {
		delete(ids, id)
		if adj, ok := m.adjacency[shardID]; ok {
			delete(adj, id)
		}
	}
	return nil
}

// PersistEdge implements Store.
func (m *MemoryStore) PersistEdge(ctx context.Context, shardID int, owner, neighbor core.Identity, present bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	adj, ok := m.adjacency[shardID]
	if !ok {
		adj = make(map[core.Identity][]core.Identity)
		m.adjacency[shardID] = adj
	}

	neighbors := adj[owner]
	idx := slices.Index(neighbors, neighbor)
	if present {
		if idx < 0 {
			adj[owner] = append(neighbors, neighbor)
		}
	} else if idx >= 0 {
		adj[owner] = slices.Delete(neighbors, idx, idx+1)
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
