package pathgo_test

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pathgo"
	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/engine"
	"github.com/hupe1980/pathgo/snapshot"
)

// Helper to populate a ring of n connected members
func populateRing(t *testing.T, pg *pathgo.PathGo, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := pg.AddIdentity(ctx, core.Identity(fmt.Sprintf("member-%d", i)))
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		a := core.Identity(fmt.Sprintf("member-%d", i))
		b := core.Identity(fmt.Sprintf("member-%d", (i+1)%n))
		_, err := pg.AddConnection(ctx, a, b)
		require.NoError(t, err)
	}
}

// TestNoGoroutineLeaks verifies that the search worker pools are properly
// stopped when Close() is called.
//
// This test ensures:
// 1. Engine search workers terminate cleanly
// 2. Closing with resource limits and cache in play leaks nothing
// 3. No goroutines are leaked after Close()
func TestNoGoroutineLeaks(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) *pathgo.PathGo
		maxLeaks int // Allow small variance (runtime background goroutines)
	}{
		{
			name: "single shard",
			setup: func(t *testing.T) *pathgo.PathGo {
				pg, err := pathgo.New(1)
				require.NoError(t, err)
				return pg
			},
			maxLeaks: 2,
		},
		{
			name: "sharded (8 shards)",
			setup: func(t *testing.T) *pathgo.PathGo {
				pg, err := pathgo.New(8, pathgo.WithSearchOptions(func(o *engine.Options) {
					o.Workers = 16
				}))
				require.NoError(t, err)
				return pg
			},
			maxLeaks: 2,
		},
		{
			name: "with cache and resource limits",
			setup: func(t *testing.T) *pathgo.PathGo {
				pg, err := pathgo.Graph(4).
					CacheCapacity(64).
					MaxConcurrentQueries(16).
					MutationRateLimit(100000).
					Build()
				require.NoError(t, err)
				return pg
			},
			maxLeaks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Force GC to clean up any lingering goroutines from previous tests
			runtime.GC()
			time.Sleep(50 * time.Millisecond)

			initial := runtime.NumGoroutine()
			t.Logf("Initial goroutines: %d", initial)

			pg := tt.setup(t)
			populateRing(t, pg, 50)

			// Exercise the search workers
			ctx := context.Background()
			_, err := pg.FindPath(ctx, "member-0", "member-25")
			require.NoError(t, err)

			_, err = pg.FindPathBatch(ctx, []engine.PairQuery{
				{Start: "member-3", Target: "member-40"},
				{Start: "member-10", Target: "member-10"},
				{Start: "member-7", Target: "member-19"},
			})
			require.NoError(t, err)

			afterQueries := runtime.NumGoroutine()
			t.Logf("After queries: %d goroutines (+%d)", afterQueries, afterQueries-initial)

			err = pg.Close()
			require.NoError(t, err)

			// Wait for the workers to fully shut down. This reduces flakiness
			// from asynchronous shutdown timing without weakening leak
			// detection semantics: we still fail if the goroutines don't go
			// away.
			deadline := time.Now().Add(2 * time.Second)
			var final int
			var leaked int
			for {
				runtime.GC()
				time.Sleep(50 * time.Millisecond)

				final = runtime.NumGoroutine()
				leaked = final - initial
				if leaked <= tt.maxLeaks || time.Now().After(deadline) {
					break
				}
			}

			t.Logf("Final goroutines: %d (leaked: %d)", final, leaked)

			if leaked > tt.maxLeaks {
				t.Errorf("Goroutine leak detected: started with %d, ended with %d (leaked: %d, max allowed: %d)",
					initial, final, leaked, tt.maxLeaks)

				// Print goroutine stack traces for debugging
				buf := make([]byte, 1<<20)
				stackSize := runtime.Stack(buf, true)
				t.Logf("Goroutine stacks:\n%s", buf[:stackSize])
			}
		})
	}
}

// TestCloseIdempotent verifies that calling Close() multiple times is safe.
func TestCloseIdempotent(t *testing.T) {
	pg, err := pathgo.Graph(4).
		SnapshotStore(snapshot.NewMemoryStore()).
		Build()
	require.NoError(t, err)

	populateRing(t, pg, 10)

	// Close multiple times should not panic or error
	err1 := pg.Close()
	err2 := pg.Close()
	err3 := pg.Close()

	assert.NoError(t, err1, "First close should succeed")
	assert.NoError(t, err2, "Second close should be idempotent")
	assert.NoError(t, err3, "Third close should be idempotent")
}

// TestCloseWithActiveOperations verifies graceful shutdown during active
// operations.
func TestCloseWithActiveOperations(t *testing.T) {
	pg, err := pathgo.New(4)
	require.NoError(t, err)

	populateRing(t, pg, 20)

	ctx := context.Background()

	// Start concurrent queries and mutations. Errors are expected once
	// the instance closes underneath them.
	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = pg.FindPath(ctx, "member-0", core.Identity(fmt.Sprintf("member-%d", i%20)))
			_, _ = pg.AddIdentity(ctx, core.Identity(fmt.Sprintf("late-%d", i)))
			time.Sleep(1 * time.Millisecond)
		}
		done <- true
	}()

	// Let some operations happen
	time.Sleep(50 * time.Millisecond)

	err = pg.Close()
	assert.NoError(t, err, "Close should succeed even with active operations")

	// Wait for goroutine to finish
	<-done
}

// TestOperationsAfterClose verifies that every operation on a closed
// instance fails with ErrClosed instead of panicking.
func TestOperationsAfterClose(t *testing.T) {
	pg, err := pathgo.Graph(2).
		SnapshotStore(snapshot.NewMemoryStore()).
		Build()
	require.NoError(t, err)

	populateRing(t, pg, 4)
	require.NoError(t, pg.Close())

	ctx := context.Background()

	_, err = pg.FindPath(ctx, "member-0", "member-1")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.FindPathBatch(ctx, []engine.PairQuery{{Start: "member-0", Target: "member-1"}})
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.Path("member-0", "member-1").Execute(ctx)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.AddIdentity(ctx, "x")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.RemoveIdentity(ctx, "member-0")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.AddConnection(ctx, "member-0", "member-2")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.RemoveConnection(ctx, "member-0", "member-1")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.ApplyEvent(ctx, core.MutationEvent{Op: core.OpAddIdentity, A: "y", Seq: 99})
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.SuggestConnections(ctx, "member-0", 5)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.MutualConnections(ctx, "member-0", "member-2")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.Degree(ctx, "member-0")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.HasIdentity("member-0")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.Connections("member-0")
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.PlanReshard(8)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	err = pg.SaveSnapshot(ctx, nil)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	err = pg.LoadSnapshot(ctx, nil)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	_, err = pg.Checkpoint(ctx)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	err = pg.Restore(ctx)
	assert.ErrorIs(t, err, pathgo.ErrClosed)

	assert.Zero(t, pg.Stats(), "Stats on a closed instance should be empty")
}
