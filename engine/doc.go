// Package engine provides the sharded graph and search layer for Pathgo.
//
// The engine orchestrates pathfinding over a partitioned social graph,
// integrating:
//   - Shard routing (consistent hashing with virtual nodes)
//   - Per-shard adjacency storage (roaring bitmaps over interned identities)
//   - Bidirectional breadth-first search with per-round shard fan-out
//   - Sequenced update coordination with write-through persistence
//
// # Search Architecture
//
// FindPath grows one frontier from the start identity and one from the
// target, expanding the smaller side each round. Neighbor lookups are
// batched per shard and fanned out through a fixed worker pool, so a
// round costs at most one request per shard regardless of frontier size.
// The frontiers meet at the first identity both sides have visited, which
// yields a shortest path; the expansion order is deterministic, so the
// same graph and the same query produce the same path.
//
// Shards that stay unreachable after retries degrade the search instead
// of failing it: their branches go dark for the round and the result is
// marked partial.
//
// # Update Model
//
// All mutations flow through the Coordinator:
//
//   - AddIdentity/RemoveIdentity: route to the owning shard, apply, write through
//   - AddEdge/RemoveEdge: apply on both endpoint shards, then invalidate cached paths
//   - ApplyEvent: sequence-checked replay; stale events are dropped
//
// Mutations are idempotent, so at-least-once delivery and retries after
// write-through failures converge on the same graph.
package engine
