package benchmark_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/pathgo"
	"github.com/hupe1980/pathgo/engine"
	"github.com/hupe1980/pathgo/testutil"
)

func BenchmarkFindPath(b *testing.B) {
	benchmarkFindPath(b, false)
}

func BenchmarkFindPath_NoCache(b *testing.B) {
	benchmarkFindPath(b, true)
}

func benchmarkFindPath(b *testing.B, skipCache bool) {
	b.ReportAllocs()

	g := OpenBenchGraph(b, 4, sizeSmall)
	pairs := g.MakePairs(256)
	g.Warmup(b, pairs)

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]
		_, err := g.FindPath(ctx, p[0], p[1], func(o *pathgo.FindPathOptions) {
			o.SkipCache = skipCache
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindPath_Parallel(b *testing.B) {
	b.ReportAllocs()

	g := OpenBenchGraph(b, 4, sizeSmall)
	pairs := g.MakePairs(256)
	g.Warmup(b, pairs)

	ctx := context.Background()

	var qIdx atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p := pairs[qIdx.Add(1)%uint64(len(pairs))]
			if _, err := g.FindPath(ctx, p[0], p[1]); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.StopTimer()
	var found int
	for _, p := range pairs {
		res, err := g.FindPath(ctx, p[0], p[1])
		if err != nil {
			b.Fatal(err)
		}
		if res.Found {
			found++
		}
	}
	b.ReportMetric(float64(found)/float64(len(pairs)), "found_rate")
}

// BenchmarkFindPath_Shards measures how query latency scales with the
// shard count for a fixed graph.
func BenchmarkFindPath_Shards(b *testing.B) {
	for _, numShards := range []int{1, 2, 4, 8} {
		b.Run("shards="+strconv.Itoa(numShards), func(b *testing.B) {
			b.ReportAllocs()

			g := OpenBenchGraph(b, numShards, sizeSmall)
			pairs := g.MakePairs(256)
			g.Warmup(b, pairs)

			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				p := pairs[i%len(pairs)]
				// Skip the cache so every iteration pays for a full search.
				_, err := g.FindPath(ctx, p[0], p[1], func(o *pathgo.FindPathOptions) {
					o.SkipCache = true
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkFindPathBatch(b *testing.B) {
	b.ReportAllocs()

	g := OpenBenchGraph(b, 4, sizeSmall)
	pairs := g.MakePairs(64)
	queries := make([]engine.PairQuery, len(pairs))
	for i, p := range pairs {
		queries[i] = engine.PairQuery{Start: p[0], Target: p[1]}
	}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := g.FindPathBatch(ctx, queries); err != nil {
			b.Fatal(err)
		}
	}

	b.StopTimer()
	b.ReportMetric(float64(len(queries)), "queries/op")
}

func BenchmarkAddConnection(b *testing.B) {
	b.ReportAllocs()

	g := OpenBenchGraph(b, 4, sizeSmall)
	rng := testutil.NewRNG(benchSeed + 2)
	pairs := rng.Pairs(g.ids, 4096)

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]
		if _, err := g.AddConnection(ctx, p[0], p[1]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSuggestConnections(b *testing.B) {
	b.ReportAllocs()

	g := OpenBenchGraph(b, 4, sizeSmall)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := g.ids[i%len(g.ids)]
		if _, err := g.SuggestConnections(ctx, id, 10); err != nil {
			b.Fatal(err)
		}
	}
}
