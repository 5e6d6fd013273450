// Package testutil provides testing utilities for PathGo.
//
// This package is intended for use in tests, benchmarks, and examples
// only. It provides seeded generators for synthetic social graphs and
// query workloads, so runs are reproducible.
//
// # Graph Generation
//
//	rng := testutil.NewRNG(seed)
//	ids := testutil.Identities("member", 1000)
//	edges := rng.SmallWorld(ids, 6, 0.1) // Watts-Strogatz
//	edges = rng.ScaleFree(ids, 3)        // preferential attachment
//
// # Query Workloads
//
//	pairs := rng.Pairs(ids, 100)         // uniform start/target
//	pairs = rng.ZipfPairs(ids, 100, 1.5) // skewed toward hot identities
//
// # Latency Reporting
//
//	p99 := testutil.Percentile(samples, 99)
package testutil
