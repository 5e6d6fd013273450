package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
)

const (
	// CurrentKey is the mutable pointer naming the latest snapshot.
	CurrentKey = "CURRENT"

	// DefaultPrefix is the key prefix snapshot objects are written under.
	DefaultPrefix = "snapshots"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Prefix is prepended to snapshot object keys.
	Prefix string

	// Compression selects the payload compression for new snapshots.
	Compression Compression
}

// Manager writes versioned snapshot objects and keeps the CURRENT
// pointer on the latest one. Snapshot objects themselves are immutable;
// concurrent-writer safety is the pointer store's concern.
type Manager struct {
	store       Store
	prefix      string
	compression Compression
}

// NewManager creates a snapshot manager on top of store.
func NewManager(store Store, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Prefix:      DefaultPrefix,
		Compression: CompressionZSTD,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		store:       store,
		prefix:      opts.Prefix,
		compression: opts.Compression,
	}
}

// Key returns the object key a snapshot is stored under. Keys order
// lexicographically by capture time.
func (m *Manager) Key(snap *Snapshot) string {
	return path.Join(m.prefix, fmt.Sprintf("%020d-%d.pgsnap", snap.CreatedAt.UnixNano(), snap.Seq))
}

// Save encodes snap, writes it under a versioned key, then points
// CURRENT at it. It returns the key written.
func (m *Manager) Save(ctx context.Context, snap *Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, m.compression); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := m.Key(snap)
	if err := m.store.Put(ctx, key, buf.Bytes()); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	if err := m.store.Put(ctx, CurrentKey, []byte(key)); err != nil {
		return "", fmt.Errorf("update %s: %w", CurrentKey, err)
	}
	return key, nil
}

// Latest loads the snapshot CURRENT points at. It returns ErrNotFound
// when no snapshot has been saved yet.
func (m *Manager) Latest(ctx context.Context) (*Snapshot, error) {
	pointer, err := m.store.Get(ctx, CurrentKey)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(string(pointer))

	data, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	snap, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return snap, nil
}

// Prune deletes the oldest snapshot objects, keeping the most recent
// keep of them. It returns how many objects were deleted. The CURRENT
// pointer is left alone; keep must be at least 1.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	names, err := m.store.List(ctx, m.prefix+"/")
	if err != nil {
		return 0, err
	}
	if len(names) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, name := range names[:len(names)-keep] {
		if err := m.store.Delete(ctx, name); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", name, err)
		}
		deleted++
	}
	return deleted, nil
}
