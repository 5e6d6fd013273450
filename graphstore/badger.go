package graphstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/pathgo/core"
)

// Keys are laid out as "i/<shard>/<id>" for identities and
// "e/<shard>/<owner>\x00<neighbor>" for edges, so a single prefix scan
// recovers one shard's adjacency. Identity strings must not contain NUL.
const edgeKeySep = byte(0x00)

// BadgerStore persists adjacency in an embedded BadgerDB key-value store.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB-backed adjacency store at path.
// An empty path opens an in-memory database, useful for testing.
func NewBadgerStore(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func identityKey(shardID int, id core.Identity) []byte {
	return append(identityPrefix(shardID), id...)
}

func identityPrefix(shardID int) []byte {
	return []byte(fmt.Sprintf("i/%d/", shardID))
}

func edgeKey(shardID int, owner, neighbor core.Identity) []byte {
	key := append(edgePrefix(shardID), owner...)
	key = append(key, edgeKeySep)
	return append(key, neighbor...)
}

func edgePrefix(shardID int) []byte {
	return []byte(fmt.Sprintf("e/%d/", shardID))
}

// LoadAdjacency implements Store.
func (s *BadgerStore) LoadAdjacency(ctx context.Context, shardID int) (Record, error) {
	rec := make(Record)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := identityPrefix(shardID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := core.Identity(it.Item().Key()[len(prefix):])
			rec[id] = nil
		}

		prefix = edgePrefix(shardID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := it.Item().Key()[len(prefix):]
			sep := bytes.IndexByte(rest, edgeKeySep)
			if sep < 0 {
				return fmt.Errorf("malformed edge key %q", it.Item().Key())
			}
			owner := core.Identity(rest[:sep])
			neighbor := core.Identity(rest[sep+1:])
			rec[owner] = append(rec[owner], neighbor)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load adjacency for shard %d: %w", shardID, err)
	}
	return rec, nil
}

// PersistIdentity implements Store.
func (s *BadgerStore) PersistIdentity(ctx context.Context, shardID int, id core.Identity, present bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if present {
			return txn.Set(identityKey(shardID, id), nil)
		}
		if err := txn.Delete(identityKey(shardID, id)); err != nil {
			return err
		}
		// Drop the identity's owned edge rows along with it.
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := append(edgePrefix(shardID), id...)
		prefix = append(prefix, edgeKeySep)
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist identity %q: %w", id, err)
	}
	return nil
}

// PersistEdge implements Store.
func (s *BadgerStore) PersistEdge(ctx context.Context, shardID int, owner, neighbor core.Identity, present bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if present {
			return txn.Set(edgeKey(shardID, owner, neighbor), nil)
		}
		return txn.Delete(edgeKey(shardID, owner, neighbor))
	})
	if err != nil {
		return fmt.Errorf("persist edge %q->%q: %w", owner, neighbor, err)
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
