package prometheusexport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hupe1980/pathgo"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	c, err := NewCollector(func(o *Options) {
		o.Registerer = reg
	})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	return c, reg
}

func TestCollector_RecordFindPath(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordFindPath("found", 10*time.Millisecond, 42, nil)
	c.RecordFindPath("found", 5*time.Millisecond, 8, nil)
	c.RecordFindPath("error", time.Millisecond, 0, errors.New("boom"))

	if got := testutil.ToFloat64(c.queries.WithLabelValues("found")); got != 2 {
		t.Errorf("found queries = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.queries.WithLabelValues("error")); got != 1 {
		t.Errorf("error queries = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.nodesExplored); got != 50 {
		t.Errorf("nodes explored = %f, want 50", got)
	}
	if got := testutil.CollectAndCount(c.opLatency); got != 2 {
		t.Errorf("latency series = %d, want 2", got)
	}
}

func TestCollector_RecordBatch(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordBatch(5, 2, 20*time.Millisecond)

	if got := testutil.ToFloat64(c.batchQueries); got != 5 {
		t.Errorf("batch queries = %f, want 5", got)
	}
	if got := testutil.ToFloat64(c.batchFailures); got != 2 {
		t.Errorf("batch failures = %f, want 2", got)
	}
}

func TestCollector_RecordMutation(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordMutation("add_identity", time.Millisecond, nil)
	c.RecordMutation("add_identity", time.Millisecond, nil)
	c.RecordMutation("add_connection", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c.mutations.WithLabelValues("add_identity", "success")); got != 2 {
		t.Errorf("add_identity success = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.mutations.WithLabelValues("add_connection", "error")); got != 1 {
		t.Errorf("add_connection error = %f, want 1", got)
	}
}

func TestCollector_RecordCacheLookup(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordCacheLookup(true)
	c.RecordCacheLookup(false)
	c.RecordCacheLookup(false)

	if got := testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %f, want 2", got)
	}
}

func TestCollector_RecordSnapshot(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordSnapshot("save", 1024, time.Millisecond, nil)
	c.RecordSnapshot("checkpoint", 0, time.Millisecond, nil)

	if got := testutil.ToFloat64(c.snapshotBytes); got != 1024 {
		t.Errorf("snapshot bytes = %f, want 1024", got)
	}
}

func TestNewCollector_ReregisterAdoptsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewCollector(func(o *Options) { o.Registerer = reg })
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	second, err := NewCollector(func(o *Options) { o.Registerer = reg })
	if err != nil {
		t.Fatalf("second NewCollector failed: %v", err)
	}

	// Both instances must feed the same series.
	first.RecordCacheLookup(true)
	second.RecordCacheLookup(true)

	if got := testutil.ToFloat64(first.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %f, want 2", got)
	}
}

func TestCollector_Close(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordFindPath("found", time.Millisecond, 1, nil)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != 0 {
		t.Errorf("expected no metric families after Close, got %d", len(families))
	}
}

func TestCollector_WithPathGo(t *testing.T) {
	c, _ := newTestCollector(t)

	pg, err := pathgo.Graph(2).Metrics(c).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer pg.Close()

	ctx := context.Background()
	if _, err := pg.AddIdentity(ctx, "alice"); err != nil {
		t.Fatalf("AddIdentity failed: %v", err)
	}
	if _, err := pg.AddIdentity(ctx, "bob"); err != nil {
		t.Fatalf("AddIdentity failed: %v", err)
	}
	if _, err := pg.AddConnection(ctx, "alice", "bob"); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	if _, err := pg.FindPath(ctx, "alice", "bob"); err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}

	if got := testutil.ToFloat64(c.queries.WithLabelValues("found")); got != 1 {
		t.Errorf("found queries = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.mutations.WithLabelValues("add_connection", "success")); got != 1 {
		t.Errorf("add_connection mutations = %f, want 1", got)
	}
}
