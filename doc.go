// Package pathgo provides a sharded social graph database for Go, answering
// degrees-of-separation queries with bidirectional breadth-first search.
//
// Identities are partitioned across shards by consistent hashing. A query
// expands frontiers from both endpoints simultaneously, batching neighbor
// lookups per shard, and stops at the first meeting point, on an empty
// frontier, or when a time or depth budget runs out. Found paths are cached
// with TTL and invalidated by mutations that touch them.
//
// # Quick Start
//
//	ctx := context.Background()
//	pg, err := pathgo.Graph(8).      // 8 shards
//	    RingReplicas(256).           // Virtual nodes per shard
//	    CacheCapacity(4096).         // Cached path results
//	    MaxDepth(5).                 // Degrees-of-separation cutoff
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//	defer pg.Close()
//
// Build the graph:
//
//	pg.AddIdentity(ctx, "alice")
//	pg.AddIdentity(ctx, "bob")
//	pg.AddConnection(ctx, "alice", "bob")
//
// Query with the fluent API:
//
//	result, err := pg.Path("alice", "dave").
//	    MaxDepth(4).
//	    TimeBudget(2 * time.Second).
//	    Execute(ctx)
//	if result.Found {
//	    fmt.Println(result.Degrees, result.Path)
//	}
//
// Batch queries run concurrently, with per-pair outcomes:
//
//	results, _ := pg.FindPathBatch(ctx, []engine.PairQuery{
//	    {Start: "alice", Target: "dave"},
//	    {Start: "bob", Target: "erin"},
//	})
//
// # Mutations and Replication
//
// Direct mutations (AddIdentity, AddConnection, ...) are stamped with the
// next sequence number and applied immediately. Replicated mutations arrive
// as core.MutationEvent values with their own sequence numbers; ApplyEvent
// drops stale or duplicate deliveries so at-least-once, unordered transports
// converge:
//
//	applied, err := pg.ApplyEvent(ctx, core.MutationEvent{
//	    Op: core.OpAddEdge, A: "alice", B: "bob", Seq: 42,
//	})
//
// # Persistence
//
// Mutations can be written through to a graphstore.Store and loaded back on
// startup. Whole-graph snapshots stream to any io.Writer, or checkpoint to a
// snapshot.Store (memory, local disk, S3, MinIO):
//
//	store, _ := snapshot.NewLocalStore("./checkpoints")
//	pg, _ := pathgo.Graph(8).SnapshotStore(store).Build()
//	key, _ := pg.Checkpoint(ctx)
//	_ = pg.Restore(ctx)
//
// # Suggestions
//
// SuggestConnections ranks friends-of-friends by mutual connection count:
//
//	suggestions, _ := pg.SuggestConnections(ctx, "alice", 10)
//	for _, s := range suggestions {
//	    fmt.Println(s.ID, s.Mutual)
//	}
package pathgo
