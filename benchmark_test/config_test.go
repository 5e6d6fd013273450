package benchmark_test

import (
	"context"
	"testing"

	"github.com/hupe1980/pathgo"
	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/testutil"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

// Standard graph sizes used across benchmarks for consistency.
const (
	sizeSmall  = 10_000  // Quick iteration
	sizeMedium = 50_000  // Default CI
	sizeLarge  = 200_000 // Production-scale
)

// Small-world parameters: mean degree and rewiring probability. Six
// neighbors with 10% shortcuts keeps path lengths in the "six degrees"
// regime without degenerating into a clique.
const (
	benchDegree = 6
	benchRewire = 0.1
)

// Seed for deterministic benchmarks - enables reproducible comparisons.
const benchSeed = 42

// ============================================================================
// Benchmark Helpers
// ============================================================================

// BenchGraph wraps graph creation with standardized config.
type BenchGraph struct {
	*pathgo.PathGo
	ids []core.Identity
}

// OpenBenchGraph creates a populated instance for benchmark isolation.
func OpenBenchGraph(b *testing.B, numShards, n int, optFns ...pathgo.Option) *BenchGraph {
	b.Helper()

	pg, err := pathgo.New(numShards, optFns...)
	if err != nil {
		b.Fatalf("failed to create graph: %v", err)
	}
	b.Cleanup(func() { _ = pg.Close() })

	ctx := context.Background()
	rng := testutil.NewRNG(benchSeed)
	ids := testutil.Identities("member", n)

	for _, id := range ids {
		if _, err := pg.AddIdentity(ctx, id); err != nil {
			b.Fatalf("add identity %s: %v", id, err)
		}
	}
	for _, e := range rng.SmallWorld(ids, benchDegree, benchRewire) {
		if _, err := pg.AddConnection(ctx, e.A, e.B); err != nil {
			b.Fatalf("add connection %s--%s: %v", e.A, e.B, err)
		}
	}

	return &BenchGraph{PathGo: pg, ids: ids}
}

// MakePairs generates n query pairs with a seed distinct from the data seed.
func (g *BenchGraph) MakePairs(n int) [][2]core.Identity {
	rng := testutil.NewRNG(benchSeed + 1)
	return rng.Pairs(g.ids, n)
}

// Warmup resolves a few queries so caches and pools are primed before
// the timed region.
func (g *BenchGraph) Warmup(b *testing.B, pairs [][2]core.Identity) {
	b.Helper()
	ctx := context.Background()
	for _, p := range pairs[:min(3, len(pairs))] {
		_, _ = g.FindPath(ctx, p[0], p[1])
	}
}
