package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pathgo"
	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/testutil"
)

var (
	benchIdentities  int
	benchShards      int
	benchDegree      int
	benchRewire      float64
	benchQueries     int
	benchConcurrency int
	benchSkew        float64
	benchSeed        int64
	benchNoCache     bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure query latency and throughput on a synthetic graph",
	Long: `Builds a Watts-Strogatz small-world graph, fires a query workload at
it, and reports throughput and latency percentiles.

With --skew > 0 the start identities follow a Zipfian distribution,
which is how real traffic concentrates on hot accounts and lets the
result cache earn its keep. --no-cache bypasses the cache entirely for
a raw engine number.

Examples:
  pathgo bench
  pathgo bench --queries 20000 --concurrency 64 --skew 1.5
  pathgo bench --no-cache`,
	Args: cobra.NoArgs,
	Run:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchIdentities, "identities", 50000, "Number of identities")
	benchCmd.Flags().IntVar(&benchShards, "shards", 8, "Number of shards")
	benchCmd.Flags().IntVar(&benchDegree, "degree", 6, "Mean connections per identity")
	benchCmd.Flags().Float64Var(&benchRewire, "rewire", 0.1, "Small-world rewire probability")
	benchCmd.Flags().IntVar(&benchQueries, "queries", 10000, "Number of queries to run")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 32, "Concurrent queries")
	benchCmd.Flags().Float64Var(&benchSkew, "skew", 0, "Zipf skew for start identities (0 = uniform)")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "RNG seed")
	benchCmd.Flags().BoolVar(&benchNoCache, "no-cache", false, "Bypass the result cache")

	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	pg, err := pathgo.New(benchShards)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: create graph: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	rng := testutil.NewRNG(benchSeed)
	ids := testutil.Identities("member", benchIdentities)
	edges := rng.SmallWorld(ids, benchDegree, benchRewire)

	fmt.Printf("Loading %d identities and %d connections into %d shards...\n",
		len(ids), len(edges), benchShards)

	loadStart := time.Now()
	for _, id := range ids {
		if _, err := pg.AddIdentity(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: add identity %s: %v\n", id, err)
			os.Exit(1)
		}
	}
	for _, e := range edges {
		if _, err := pg.AddConnection(ctx, e.A, e.B); err != nil {
			fmt.Fprintf(os.Stderr, "Error: add connection %s--%s: %v\n", e.A, e.B, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Loaded in %s\n", time.Since(loadStart).Round(time.Millisecond))

	var pairs [][2]core.Identity
	if benchSkew > 0 {
		pairs = rng.ZipfPairs(ids, benchQueries, benchSkew)
	} else {
		pairs = rng.Pairs(ids, benchQueries)
	}

	var found, noPath, failed atomic.Int64
	latencies := make([]time.Duration, len(pairs))

	fmt.Printf("Running %d queries at concurrency %d...\n", len(pairs), benchConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(benchConcurrency)

	benchStart := time.Now()
	for i, pair := range pairs {
		g.Go(func() error {
			start := time.Now()
			result, err := pg.FindPath(gctx, pair[0], pair[1], func(o *pathgo.FindPathOptions) {
				o.SkipCache = benchNoCache
			})
			latencies[i] = time.Since(start)

			// Failures are counted, not fatal.
			if err != nil {
				failed.Add(1)
				return nil
			}
			if result.Found {
				found.Add(1)
			} else {
				noPath.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(benchStart)

	fmt.Printf("\n%d queries in %s (%.0f qps)\n",
		len(pairs), elapsed.Round(time.Millisecond), float64(len(pairs))/elapsed.Seconds())
	fmt.Printf("found: %d, no path: %d, failed: %d\n", found.Load(), noPath.Load(), failed.Load())
	fmt.Printf("latency p50: %s  p95: %s  p99: %s  max: %s\n",
		testutil.Percentile(latencies, 50).Round(time.Microsecond),
		testutil.Percentile(latencies, 95).Round(time.Microsecond),
		testutil.Percentile(latencies, 99).Round(time.Microsecond),
		testutil.Percentile(latencies, 100).Round(time.Microsecond))

	stats := pg.Stats()
	fmt.Printf("cache hit rate: %.1f%% (%d hits, %d misses)\n",
		stats.CacheHitRate*100, stats.CacheHits, stats.CacheMisses)
}
