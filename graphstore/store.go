// Package graphstore defines the durable adjacency backends the engine
// hydrates shards from at startup and optionally writes through to on
// every shard mutation.
//
// Implementations can provide different storage strategies (in-memory,
// embedded SQL, key-value, remote graph database).
package graphstore

import (
	"context"
	"errors"

	"github.com/hupe1980/pathgo/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Record is the adjacency owned by one shard: identity -> neighbor ids.
// Neighbors that live on other shards appear as plain identities.
type Record map[core.Identity][]core.Identity

// Store persists per-shard adjacency.
//
// LoadAdjacency hydrates a shard at startup. The Persist methods are
// write-through hooks invoked after each in-memory shard mutation; they
// must be idempotent because the coordinator retries failed writes
// rather than rolling back.
type Store interface {
	// LoadAdjacency returns the full adjacency record for shardID.
	// A shard with no persisted state yields an empty record, not an error.
	LoadAdjacency(ctx context.Context, shardID int) (Record, error)

	// PersistIdentity records that id is (present=true) or is no longer
	// (present=false) resident on shardID.
	PersistIdentity(ctx context.Context, shardID int, id core.Identity, present bool) error

	// PersistEdge records that neighbor appears (present=true) or no
	// longer appears (present=false) in owner's adjacency on shardID.
	PersistEdge(ctx context.Context, shardID int, owner, neighbor core.Identity, present bool) error

	// Close releases any resources held by the store.
	Close() error
}
