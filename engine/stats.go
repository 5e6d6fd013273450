package engine

// ShardStats describes one shard's footprint.
type ShardStats struct {
	ShardID       int
	Identities    int
	EdgeEndpoints int
	ReadOps       int64
	WriteOps      int64
}

// Stats snapshots the engine topology.
type Stats struct {
	Shards     []ShardStats
	Identities int
	Edges      int
}

// Stats aggregates per-shard counters. The edge total assumes every
// edge is mirrored on both endpoint shards. Operation counters are
// reported for in-process shards only.
func (e *Engine) Stats() Stats {
	st := Stats{Shards: make([]ShardStats, len(e.shards))}
	endpoints := 0
	for i, shard := range e.shards {
		ss := ShardStats{
			ShardID:       i,
			Identities:    shard.IdentityCount(),
			EdgeEndpoints: shard.EdgeEndpoints(),
		}
		if local, ok := shard.(*Shard); ok {
			ss.ReadOps = local.ReadOps()
			ss.WriteOps = local.WriteOps()
		}
		st.Shards[i] = ss
		st.Identities += ss.Identities
		endpoints += ss.EdgeEndpoints
	}
	st.Edges = endpoints / 2
	return st
}
