package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/graphstore"
)

// errAfterStore delegates to a memory store and starts failing every
// persist call once tripped.
type errAfterStore struct {
	*graphstore.MemoryStore
	mu      sync.Mutex
	tripped bool
	failErr error
}

func newErrAfterStore() *errAfterStore {
	return &errAfterStore{
		MemoryStore: graphstore.NewMemoryStore(),
		failErr:     errors.New("backing store down"),
	}
}

func (s *errAfterStore) trip(on bool) {
	s.mu.Lock()
	s.tripped = on
	s.mu.Unlock()
}

func (s *errAfterStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tripped
}

func (s *errAfterStore) PersistIdentity(ctx context.Context, shardID int, id core.Identity, present bool) error {
	if s.failing() {
		return s.failErr
	}
	return s.MemoryStore.PersistIdentity(ctx, shardID, id, present)
}

func (s *errAfterStore) PersistEdge(ctx context.Context, shardID int, owner, neighbor core.Identity, present bool) error {
	if s.failing() {
		return s.failErr
	}
	return s.MemoryStore.PersistEdge(ctx, shardID, owner, neighbor, present)
}

func TestShardAddIdentity(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	added, err := shard.AddIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = shard.AddIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, added, "second add of the same identity is a no-op")

	ok, err := shard.HasIdentity("u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = shard.HasIdentity("u2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, shard.IdentityCount())
}

func TestShardNeighborsOrder(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	_, err := shard.AddIdentity(ctx, "u1")
	require.NoError(t, err)

	for _, peer := range []core.Identity{"u9", "u2", "u5"} {
		added, err := shard.AddNeighbor(ctx, "u1", peer)
		require.NoError(t, err)
		assert.True(t, added)
	}

	// Neighbors come back in slot order, which for live inserts is the
	// order the identities were first seen by this shard.
	neighbors, err := shard.Neighbors("u1")
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"u9", "u2", "u5"}, neighbors)

	added, err := shard.AddNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, added, "duplicate edge row is a no-op")

	neighbors, err = shard.Neighbors("u1")
	require.NoError(t, err)
	assert.Len(t, neighbors, 3)
}

func TestShardNeighborsUnknown(t *testing.T) {
	shard := NewShard(0, nil)

	neighbors, err := shard.Neighbors("ghost")
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestShardNeighborsBatch(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	for _, id := range []core.Identity{"u1", "u2"} {
		_, err := shard.AddIdentity(ctx, id)
		require.NoError(t, err)
	}
	_, err := shard.AddNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = shard.AddNeighbor(ctx, "u2", "u1")
	require.NoError(t, err)
	_, err = shard.AddNeighbor(ctx, "u1", "u7")
	require.NoError(t, err)

	rows, err := shard.NeighborsBatch([]core.Identity{"u1", "u2", "ghost"})
	require.NoError(t, err)

	assert.Equal(t, []core.Identity{"u2", "u7"}, rows["u1"])
	assert.Equal(t, []core.Identity{"u1"}, rows["u2"])
	assert.Empty(t, rows["ghost"])
}

func TestShardRemoveNeighbor(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	_, err := shard.AddIdentity(ctx, "u1")
	require.NoError(t, err)
	_, err = shard.AddNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)

	removed, err := shard.RemoveNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = shard.RemoveNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent row is a no-op")

	neighbors, err := shard.Neighbors("u1")
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestShardRemoveIdentity(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	for _, id := range []core.Identity{"u1", "u2", "u3"} {
		_, err := shard.AddIdentity(ctx, id)
		require.NoError(t, err)
	}
	for _, peer := range []core.Identity{"u2", "u3"} {
		_, err := shard.AddNeighbor(ctx, "u1", peer)
		require.NoError(t, err)
		_, err = shard.AddNeighbor(ctx, peer, "u1")
		require.NoError(t, err)
	}

	former, removed, err := shard.RemoveIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.ElementsMatch(t, []core.Identity{"u2", "u3"}, former)

	ok, err := shard.HasIdentity("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Reverse rows on the same shard are cleaned up as part of the removal.
	for _, peer := range []core.Identity{"u2", "u3"} {
		neighbors, err := shard.Neighbors(peer)
		require.NoError(t, err)
		assert.NotContains(t, neighbors, core.Identity("u1"))
	}

	former, removed, err = shard.RemoveIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, former)
}

func TestShardEdgeEndpoints(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	for _, id := range []core.Identity{"u1", "u2"} {
		_, err := shard.AddIdentity(ctx, id)
		require.NoError(t, err)
	}
	_, err := shard.AddNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = shard.AddNeighbor(ctx, "u2", "u1")
	require.NoError(t, err)

	// Rows owned by non-resident identities do not count.
	_, err = shard.AddNeighbor(ctx, "remote", "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, shard.EdgeEndpoints())
	assert.Equal(t, 2, shard.IdentityCount())
}

func TestShardWriteThrough(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewMemoryStore()
	shard := NewShard(3, store)

	_, err := shard.AddIdentity(ctx, "u1")
	require.NoError(t, err)
	_, err = shard.AddNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)

	rec, err := store.LoadAdjacency(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"u2"}, rec["u1"])

	_, err = shard.RemoveNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)

	rec, err = store.LoadAdjacency(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, rec["u1"])
}

func TestShardPersistFailureConverges(t *testing.T) {
	ctx := context.Background()
	store := newErrAfterStore()
	shard := NewShard(0, store)

	_, err := shard.AddIdentity(ctx, "u1")
	require.NoError(t, err)

	store.trip(true)
	_, err = shard.AddNeighbor(ctx, "u1", "u2")
	require.Error(t, err)

	// The in-memory row landed even though the persist failed.
	neighbors, err := shard.Neighbors("u1")
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"u2"}, neighbors)

	// A retry persists the desired state even though memory no longer
	// changes, so memory and store converge.
	store.trip(false)
	changed, err := shard.AddNeighbor(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, changed)

	rec, err := store.LoadAdjacency(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"u2"}, rec["u1"])
}

func TestShardLoadSortsSlots(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewMemoryStore()

	require.NoError(t, store.PersistIdentity(ctx, 0, "u3", true))
	require.NoError(t, store.PersistIdentity(ctx, 0, "u1", true))
	require.NoError(t, store.PersistIdentity(ctx, 0, "u2", true))
	require.NoError(t, store.PersistEdge(ctx, 0, "u2", "u3", true))
	require.NoError(t, store.PersistEdge(ctx, 0, "u2", "u1", true))

	shard := NewShard(0, store)
	require.NoError(t, LoadShards(ctx, store, []*Shard{shard}))

	assert.Equal(t, 3, shard.IdentityCount())

	// Load interns identities in sorted order, so a rebuilt shard hands
	// out neighbors in a stable order regardless of store row order.
	neighbors, err := shard.Neighbors("u2")
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"u1", "u3"}, neighbors)
}

func TestShardConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	shard := NewShard(0, nil)

	const goroutines = 16
	const opsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()

			for i := 0; i < opsPerGoroutine; i++ {
				owner := core.Identity(fmt.Sprintf("u%d", g))
				peer := core.Identity(fmt.Sprintf("u%d-%d", g, i))

				if _, err := shard.AddIdentity(ctx, owner); err != nil {
					t.Errorf("AddIdentity: %v", err)
				}
				if _, err := shard.AddNeighbor(ctx, owner, peer); err != nil {
					t.Errorf("AddNeighbor: %v", err)
				}
				if _, err := shard.Neighbors(owner); err != nil {
					t.Errorf("Neighbors: %v", err)
				}
			}
		}(g)
	}

	wg.Wait()

	assert.Equal(t, goroutines, shard.IdentityCount())
	assert.Equal(t, goroutines*opsPerGoroutine, shard.EdgeEndpoints())
}
