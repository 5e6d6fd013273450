package benchmark_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/pathgo/testutil"
)

// ============================================================================
// Workload Benchmarks - Realistic Production Patterns
// ============================================================================

// BenchmarkMixedWorkload simulates a social-graph production workload with
// concurrent path queries and connection churn at various ratios.
func BenchmarkMixedWorkload(b *testing.B) {
	// Read:Write ratios (% reads)
	ratios := []int{50, 80, 95, 99}

	for _, readPct := range ratios {
		b.Run("read="+strconv.Itoa(readPct)+"%", func(b *testing.B) {
			g := OpenBenchGraph(b, 4, sizeSmall)
			pairs := g.MakePairs(256)
			g.Warmup(b, pairs)

			ctx := context.Background()
			n := len(g.ids)

			var reads, writes atomic.Int64

			b.ReportAllocs()
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				localRng := testutil.NewRNG(benchSeed + time.Now().UnixNano())
				queryIdx := 0

				for pb.Next() {
					if localRng.Intn(100) < readPct {
						p := pairs[queryIdx%len(pairs)]
						queryIdx++
						if _, err := g.FindPath(ctx, p[0], p[1]); err != nil {
							b.Error(err)
							return
						}
						reads.Add(1)
					} else {
						i := localRng.Intn(n)
						j := localRng.Intn(n - 1)
						if j >= i {
							j++
						}
						if _, err := g.AddConnection(ctx, g.ids[i], g.ids[j]); err != nil {
							b.Error(err)
							return
						}
						writes.Add(1)
					}
				}
			})

			b.StopTimer()
			elapsed := b.Elapsed().Seconds()
			b.ReportMetric(float64(reads.Load()+writes.Load())/elapsed, "ops/sec")
			b.ReportMetric(float64(reads.Load())/elapsed, "reads/sec")
			b.ReportMetric(float64(writes.Load())/elapsed, "writes/sec")
		})
	}
}

// BenchmarkPathAfterMutation measures the latency of queries that immediately
// follow a connection change. This exercises the cache invalidation path,
// which is critical for read-your-writes behavior.
func BenchmarkPathAfterMutation(b *testing.B) {
	g := OpenBenchGraph(b, 4, sizeSmall)
	pairs := g.MakePairs(4096)

	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]

		if _, err := g.AddConnection(ctx, p[0], p[1]); err != nil {
			b.Fatal(err)
		}

		// The direct connection must be visible immediately.
		res, err := g.FindPath(ctx, p[0], p[1])
		if err != nil {
			b.Fatal(err)
		}
		if !res.Found || res.Degrees != 1 {
			b.Fatalf("just-added connection not visible: found=%v degrees=%d", res.Found, res.Degrees)
		}

		if _, err := g.RemoveConnection(ctx, p[0], p[1]); err != nil {
			b.Fatal(err)
		}
	}

	b.StopTimer()
	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "cycles/sec")
}

// BenchmarkThroughputUnderMutationLoad measures sustained query throughput
// with background connection churn.
func BenchmarkThroughputUnderMutationLoad(b *testing.B) {
	g := OpenBenchGraph(b, 4, sizeSmall)
	pairs := g.MakePairs(256)
	g.Warmup(b, pairs)

	ctx := context.Background()
	rng := testutil.NewRNG(benchSeed + 300)
	n := len(g.ids)

	// Background mutator goroutine
	done := make(chan struct{})
	var writeCount atomic.Int64
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				i := rng.Intn(n)
				j := rng.Intn(n - 1)
				if j >= i {
					j++
				}
				_, _ = g.AddConnection(ctx, g.ids[i], g.ids[j])
				_, _ = g.RemoveConnection(ctx, g.ids[i], g.ids[j])
				writeCount.Add(2)
			}
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]
		if _, err := g.FindPath(ctx, p[0], p[1]); err != nil {
			b.Fatal(err)
		}
	}

	b.StopTimer()
	close(done)

	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "qps")
	b.ReportMetric(float64(writeCount.Load())/b.Elapsed().Seconds(), "bg_writes/sec")
}
