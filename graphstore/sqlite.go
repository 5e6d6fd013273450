package graphstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/hupe1980/pathgo/core"
)

// SQLiteStore persists adjacency in an embedded SQLite database.
// Identities and edges are stored row-per-fact, so write-through hooks
// translate to single upserts/deletes and remain idempotent.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if necessary initializes) a SQLite-backed
// adjacency store at path. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "pathgo.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS identities (
		shard_id INTEGER NOT NULL,
		id TEXT NOT NULL,
		PRIMARY KEY (shard_id, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create identities table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS adjacency (
		shard_id INTEGER NOT NULL,
		owner TEXT NOT NULL,
		neighbor TEXT NOT NULL,
		PRIMARY KEY (shard_id, owner, neighbor)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create adjacency table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadAdjacency implements Store.
func (s *SQLiteStore) LoadAdjacency(ctx context.Context, shardID int) (Record, error) {
	rec := make(Record)

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM identities WHERE shard_id = ?`, shardID)
	if err != nil {
		return nil, fmt.Errorf("select identities: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		rec[core.Identity(id)] = nil
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT owner, neighbor FROM adjacency WHERE shard_id = ? ORDER BY owner, neighbor`, shardID)
	if err != nil {
		return nil, fmt.Errorf("select adjacency: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var owner, neighbor string
		if err := rows.Scan(&owner, &neighbor); err != nil {
			return nil, fmt.Errorf("scan adjacency: %w", err)
		}
		rec[core.Identity(owner)] = append(rec[core.Identity(owner)], core.Identity(neighbor))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjacency: %w", err)
	}
	return rec, nil
}

// PersistIdentity implements Store.
func (s *SQLiteStore) PersistIdentity(ctx context.Context, shardID int, id core.Identity, present bool) error {
	var err error
	if present {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO identities(shard_id, id) VALUES(?, ?) ON CONFLICT(shard_id, id) DO NOTHING`,
			shardID, string(id))
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM identities WHERE shard_id = ? AND id = ?`,
			shardID, string(id))
		if err == nil {
			_, err = s.db.ExecContext(ctx,
				`DELETE FROM adjacency WHERE shard_id = ? AND owner = ?`,
				shardID, string(id))
		}
	}
	if err != nil {
		return fmt.Errorf("persist identity %q: %w", id, err)
	}
	return nil
}

// PersistEdge implements Store.
func (s *SQLiteStore) PersistEdge(ctx context.Context, shardID int, owner, neighbor core.Identity, present bool) error {
	var err error
	if present {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO adjacency(shard_id, owner, neighbor) VALUES(?, ?, ?) ON CONFLICT(shard_id, owner, neighbor) DO NOTHING`,
			shardID, string(owner), string(neighbor))
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM adjacency WHERE shard_id = ? AND owner = ? AND neighbor = ?`,
			shardID, string(owner), string(neighbor))
	}
	if err != nil {
		return fmt.Errorf("persist edge %q->%q: %w", owner, neighbor, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
