package integration_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/pathgo"
	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/engine"
	"github.com/hupe1980/pathgo/testutil"
)

// buildGraph creates an instance and loads the given identities and
// connections into it.
func buildGraph(t *testing.T, numShards int, ids []core.Identity, edges []testutil.Edge) *pathgo.PathGo {
	t.Helper()

	pg, err := pathgo.New(numShards)
	if err != nil {
		t.Fatalf("Failed to create graph: %v", err)
	}

	ctx := context.Background()
	for _, id := range ids {
		if _, err := pg.AddIdentity(ctx, id); err != nil {
			t.Fatalf("Failed to add identity %s: %v", id, err)
		}
	}
	for _, e := range edges {
		if _, err := pg.AddConnection(ctx, e.A, e.B); err != nil {
			t.Fatalf("Failed to add connection %s--%s: %v", e.A, e.B, err)
		}
	}
	return pg
}

// TestShardedPathParity verifies that path queries return the same outcome
// regardless of how the graph is sharded. Shortest-path length is a
// property of the graph, so every shard layout must agree with the
// single-shard baseline on Found and Degrees.
func TestShardedPathParity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		numShards int
		numIDs    int
	}{
		{"1_shard_500_identities", 1, 500},
		{"2_shards_500_identities", 2, 500},
		{"4_shards_500_identities", 4, 500},
		{"8_shards_500_identities", 8, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := testutil.NewRNG(7)
			ids := testutil.Identities("member", tt.numIDs)
			edges := rng.SmallWorld(ids, 4, 0.2)

			baseline := buildGraph(t, 1, ids, edges)
			defer baseline.Close()

			sharded := buildGraph(t, tt.numShards, ids, edges)
			defer sharded.Close()

			adjacent := make(map[core.Identity]map[core.Identity]bool, len(ids))
			for _, e := range edges {
				if adjacent[e.A] == nil {
					adjacent[e.A] = make(map[core.Identity]bool)
				}
				if adjacent[e.B] == nil {
					adjacent[e.B] = make(map[core.Identity]bool)
				}
				adjacent[e.A][e.B] = true
				adjacent[e.B][e.A] = true
			}

			queries := rng.Pairs(ids, 50)
			for _, q := range queries {
				want, err := baseline.FindPath(ctx, q[0], q[1])
				if err != nil {
					t.Fatalf("Baseline query %s->%s failed: %v", q[0], q[1], err)
				}

				got, err := sharded.FindPath(ctx, q[0], q[1])
				if err != nil {
					t.Fatalf("Sharded query %s->%s failed: %v", q[0], q[1], err)
				}

				if got.Found != want.Found {
					t.Errorf("Found mismatch for %s->%s: sharded=%v baseline=%v", q[0], q[1], got.Found, want.Found)
					continue
				}
				if !got.Found {
					continue
				}
				if got.Degrees != want.Degrees {
					t.Errorf("Degrees mismatch for %s->%s: sharded=%d baseline=%d", q[0], q[1], got.Degrees, want.Degrees)
				}

				// Every hop in the returned path must be a real connection.
				for i := 1; i < len(got.Path); i++ {
					if !adjacent[got.Path[i-1]][got.Path[i]] {
						t.Errorf("Path for %s->%s contains non-edge %s--%s", q[0], q[1], got.Path[i-1], got.Path[i])
					}
				}
			}

			t.Logf("Shards=%d: %d queries agreed with baseline", tt.numShards, len(queries))
		})
	}
}

// TestShardedBatchParity verifies that batch resolution agrees with
// one-at-a-time resolution on a sharded graph.
func TestShardedBatchParity(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(11)
	ids := testutil.Identities("member", 400)
	edges := rng.SmallWorld(ids, 6, 0.1)

	pg := buildGraph(t, 4, ids, edges)
	defer pg.Close()

	pairs := rng.Pairs(ids, 30)
	queries := make([]engine.PairQuery, 0, len(pairs))
	for _, p := range pairs {
		queries = append(queries, engine.PairQuery{Start: p[0], Target: p[1]})
	}

	results, err := pg.FindPathBatch(ctx, queries)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(results) != len(pairs) {
		t.Fatalf("Expected %d results, got %d", len(pairs), len(results))
	}

	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("Batch entry %d failed: %v", i, r.Err)
		}
		single, err := pg.FindPath(ctx, pairs[i][0], pairs[i][1])
		if err != nil {
			t.Fatalf("Single query %d failed: %v", i, err)
		}
		if r.Result.Found != single.Found || r.Result.Degrees != single.Degrees {
			t.Errorf("Entry %d mismatch: batch found=%v degrees=%d, single found=%v degrees=%d",
				i, r.Result.Found, r.Result.Degrees, single.Found, single.Degrees)
		}
	}
}

// TestShardedConcurrentQueries verifies that concurrent path queries work
// correctly against a sharded graph.
func TestShardedConcurrentQueries(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(13)
	ids := testutil.Identities("member", 1000)
	edges := rng.SmallWorld(ids, 6, 0.1)

	pg := buildGraph(t, 4, ids, edges)
	defer pg.Close()

	pairs := rng.Pairs(ids, 20)
	errCh := make(chan error, len(pairs))

	for i := range pairs {
		go func(idx int) {
			res, err := pg.FindPath(ctx, pairs[idx][0], pairs[idx][1])
			if err != nil {
				errCh <- err
				return
			}
			if res.Found && len(res.Path) != res.Degrees+1 {
				errCh <- fmt.Errorf("path length %d does not match degrees %d", len(res.Path), res.Degrees)
				return
			}
			errCh <- nil
		}(i)
	}

	for i := 0; i < len(pairs); i++ {
		if err := <-errCh; err != nil {
			t.Errorf("Concurrent query %d failed: %v", i, err)
		}
	}
}
