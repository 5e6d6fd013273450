// Package prometheusexport exposes pathgo operation metrics as Prometheus
// collectors.
//
// The Collector implements pathgo.MetricsCollector:
//
//	metrics, err := prometheusexport.NewCollector()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pg, err := pathgo.New(8, pathgo.WithMetricsCollector(metrics))
package prometheusexport

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/pathgo"
)

// Options configure the collector.
type Options struct {
	// Namespace prefixes every metric name.
	// Default: "pathgo"
	Namespace string

	// Registerer receives the collectors.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer

	// LatencyBuckets overrides the histogram buckets for operation
	// latency, in seconds.
	// Default: prometheus.DefBuckets
	LatencyBuckets []float64
}

// Collector bridges pathgo metrics onto Prometheus. All label sets are
// bounded: op and outcome values come from a fixed vocabulary.
type Collector struct {
	registerer prometheus.Registerer

	opLatency     *prometheus.HistogramVec
	queries       *prometheus.CounterVec
	nodesExplored prometheus.Counter
	batchQueries  prometheus.Counter
	batchFailures prometheus.Counter
	mutations     *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	snapshotBytes prometheus.Counter
}

var _ pathgo.MetricsCollector = (*Collector)(nil)

// NewCollector creates and registers a Prometheus-backed metrics collector.
// Registering twice on the same registry reuses the existing collectors.
func NewCollector(optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{
		Namespace:      "pathgo",
		Registerer:     prometheus.DefaultRegisterer,
		LatencyBuckets: prometheus.DefBuckets,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{registerer: opts.Registerer}

	var err error
	c.opLatency, err = register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Name:      "operation_latency_seconds",
		Help:      "Latency of graph operations",
		Buckets:   opts.LatencyBuckets,
	}, []string{"op", "status"}))
	if err != nil {
		return nil, err
	}

	c.queries, err = register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "queries_total",
		Help:      "Path queries by outcome",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	c.nodesExplored, err = register(opts.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "nodes_explored_total",
		Help:      "Identities expanded during searches",
	}))
	if err != nil {
		return nil, err
	}

	c.batchQueries, err = register(opts.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "batch_queries_total",
		Help:      "Queries submitted through batches",
	}))
	if err != nil {
		return nil, err
	}

	c.batchFailures, err = register(opts.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "batch_failures_total",
		Help:      "Batch queries that returned an error",
	}))
	if err != nil {
		return nil, err
	}

	c.mutations, err = register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "mutations_total",
		Help:      "Graph mutations by operation",
	}, []string{"op", "status"}))
	if err != nil {
		return nil, err
	}

	c.cacheLookups, err = register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "cache_lookups_total",
		Help:      "Result cache probes",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	c.snapshotBytes, err = register(opts.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Name:      "snapshot_bytes_total",
		Help:      "Bytes moved by snapshot save and load",
	}))
	if err != nil {
		return nil, err
	}

	return c, nil
}

// register adds c to r, adopting an already registered collector of the
// same identity instead of failing.
func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordFindPath implements pathgo.MetricsCollector.
func (c *Collector) RecordFindPath(outcome string, duration time.Duration, explored int, err error) {
	c.opLatency.WithLabelValues("find_path", status(err)).Observe(duration.Seconds())
	c.queries.WithLabelValues(outcome).Inc()
	if explored > 0 {
		c.nodesExplored.Add(float64(explored))
	}
}

// RecordBatch implements pathgo.MetricsCollector.
func (c *Collector) RecordBatch(count, failed int, duration time.Duration) {
	c.opLatency.WithLabelValues("batch", "success").Observe(duration.Seconds())
	c.batchQueries.Add(float64(count))
	c.batchFailures.Add(float64(failed))
}

// RecordMutation implements pathgo.MetricsCollector.
func (c *Collector) RecordMutation(op string, duration time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(duration.Seconds())
	c.mutations.WithLabelValues(op, status(err)).Inc()
}

// RecordSuggest implements pathgo.MetricsCollector.
func (c *Collector) RecordSuggest(duration time.Duration, err error) {
	c.opLatency.WithLabelValues("suggest", status(err)).Observe(duration.Seconds())
}

// RecordCacheLookup implements pathgo.MetricsCollector.
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordSnapshot implements pathgo.MetricsCollector.
func (c *Collector) RecordSnapshot(op string, size int, duration time.Duration, err error) {
	c.opLatency.WithLabelValues("snapshot_"+op, status(err)).Observe(duration.Seconds())
	if size > 0 {
		c.snapshotBytes.Add(float64(size))
	}
}

// Close unregisters the collectors. Using the Collector afterwards still
// records, but nothing scrapes the values.
func (c *Collector) Close() error {
	for _, col := range []prometheus.Collector{
		c.opLatency,
		c.queries,
		c.nodesExplored,
		c.batchQueries,
		c.batchFailures,
		c.mutations,
		c.cacheLookups,
		c.snapshotBytes,
	} {
		c.registerer.Unregister(col)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
