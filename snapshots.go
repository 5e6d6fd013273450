package pathgo

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/hupe1980/pathgo/graphstore"
	"github.com/hupe1980/pathgo/snapshot"
)

// SaveSnapshot writes a point-in-time snapshot of the whole graph to w,
// using the configured compression.
func (pg *PathGo) SaveSnapshot(ctx context.Context, w io.Writer) error {
	start := time.Now()
	if pg.closed.Load() {
		return ErrClosed
	}

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, pg.exportSnapshot(), pg.compression); err != nil {
		pg.metrics.RecordSnapshot("save", 0, time.Since(start), err)
		pg.logger.LogSnapshot(ctx, "save", 0, err)
		return err
	}

	size := buf.Len()
	if err := pg.resources.AcquireSnapshotIO(ctx, size); err != nil {
		pg.metrics.RecordSnapshot("save", size, time.Since(start), err)
		pg.logger.LogSnapshot(ctx, "save", size, err)
		return err
	}

	_, err := buf.WriteTo(w)
	duration := time.Since(start)
	pg.metrics.RecordSnapshot("save", size, duration, err)
	pg.logger.LogSnapshot(ctx, "save", size, err)
	return err
}

// LoadSnapshot replaces the in-memory graph with a snapshot read from r.
// Identities are re-routed through the current ring, so snapshots taken
// under a different shard count load cleanly.
//
// A write-through graph store is not reconciled; it keeps its own history.
func (pg *PathGo) LoadSnapshot(ctx context.Context, r io.Reader) error {
	start := time.Now()
	if pg.closed.Load() {
		return ErrClosed
	}

	data, err := io.ReadAll(r)
	if err != nil {
		pg.metrics.RecordSnapshot("load", 0, time.Since(start), err)
		pg.logger.LogSnapshot(ctx, "load", 0, err)
		return err
	}

	if err := pg.resources.AcquireSnapshotIO(ctx, len(data)); err != nil {
		pg.metrics.RecordSnapshot("load", len(data), time.Since(start), err)
		pg.logger.LogSnapshot(ctx, "load", len(data), err)
		return err
	}

	snap, err := snapshot.Decode(bytes.NewReader(data))
	if err != nil {
		pg.metrics.RecordSnapshot("load", len(data), time.Since(start), err)
		pg.logger.LogSnapshot(ctx, "load", len(data), err)
		return err
	}

	pg.importSnapshot(snap)
	duration := time.Since(start)
	pg.metrics.RecordSnapshot("load", len(data), duration, nil)
	pg.logger.LogSnapshot(ctx, "load", len(data), nil)
	return nil
}

// Checkpoint saves a snapshot to the configured snapshot store and returns
// the key it was stored under. It returns ErrNoSnapshotStore when the
// instance was built without one.
func (pg *PathGo) Checkpoint(ctx context.Context) (string, error) {
	start := time.Now()
	if pg.closed.Load() {
		return "", ErrClosed
	}
	if pg.snapshots == nil {
		return "", ErrNoSnapshotStore
	}

	key, err := pg.snapshots.Save(ctx, pg.exportSnapshot())
	duration := time.Since(start)
	pg.metrics.RecordSnapshot("checkpoint", 0, duration, err)
	pg.logger.LogSnapshot(ctx, "checkpoint", 0, err)
	return key, err
}

// Restore loads the latest checkpoint from the snapshot store and replaces
// the in-memory graph with it. It returns ErrNoSnapshotStore when the
// instance was built without one, and snapshot.ErrNotFound when the store
// holds no checkpoint yet.
func (pg *PathGo) Restore(ctx context.Context) error {
	start := time.Now()
	if pg.closed.Load() {
		return ErrClosed
	}
	if pg.snapshots == nil {
		return ErrNoSnapshotStore
	}

	snap, err := pg.snapshots.Latest(ctx)
	if err != nil {
		pg.metrics.RecordSnapshot("restore", 0, time.Since(start), err)
		pg.logger.LogSnapshot(ctx, "restore", 0, err)
		return err
	}

	pg.importSnapshot(snap)
	duration := time.Since(start)
	pg.metrics.RecordSnapshot("restore", 0, duration, nil)
	pg.logger.LogSnapshot(ctx, "restore", 0, nil)
	return nil
}

// Snapshots exposes the checkpoint manager for retention housekeeping such
// as Prune. It returns nil when no snapshot store is configured.
func (pg *PathGo) Snapshots() *snapshot.Manager {
	return pg.snapshots
}

// exportSnapshot captures every shard under the current sequence number.
func (pg *PathGo) exportSnapshot() *snapshot.Snapshot {
	records := make(map[int]graphstore.Record, len(pg.shards))
	for _, shard := range pg.shards {
		records[shard.ID()] = shard.Export()
	}
	return &snapshot.Snapshot{
		Seq:       pg.coord.Seq(),
		CreatedAt: time.Now().UTC(),
		Records:   records,
	}
}

// importSnapshot replaces the in-memory graph state with the snapshot
// contents. Identities are re-routed through the current ring, which makes
// the restore independent of the shard count the snapshot was taken under.
func (pg *PathGo) importSnapshot(snap *snapshot.Snapshot) {
	merged := make(graphstore.Record)
	for _, rec := range snap.Records {
		for id, neighbors := range rec {
			merged[id] = neighbors
		}
	}

	regrouped := make([]graphstore.Record, len(pg.shards))
	for i := range regrouped {
		regrouped[i] = make(graphstore.Record)
	}
	for id, neighbors := range merged {
		regrouped[pg.router.Route(id)][id] = neighbors
	}

	for i, shard := range pg.shards {
		shard.Reset()
		shard.Load(regrouped[i])
	}

	pg.pathCache.Purge()
	pg.coord.AdvanceSeq(snap.Seq)
}
