// Package resource provides global admission control for queries,
// mutations, and snapshot IO.
package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrQueryLimitExceeded is returned when no query slot is free.
var ErrQueryLimitExceeded = errors.New("query limit exceeded")

// Config holds resource limits. Zero values disable the matching limit.
type Config struct {
	// MaxConcurrentQueries caps in-flight searches.
	MaxConcurrentQueries int64

	// MutationsPerSec throttles graph mutations.
	MutationsPerSec float64

	// SnapshotBytesPerSec caps snapshot IO throughput.
	SnapshotBytesPerSec int64
}

// Controller manages global resources. All methods are safe on a nil
// receiver, which behaves as unlimited.
type Controller struct {
	cfg Config

	querySem *semaphore.Weighted // nil if unlimited
	inFlight atomic.Int64

	mutLimiter *rate.Limiter
	ioLimiter  *rate.Limiter
}

// NewController creates a resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}
	if cfg.MutationsPerSec > 0 {
		burst := int(cfg.MutationsPerSec)
		if burst < 1 {
			burst = 1
		}
		c.mutLimiter = rate.NewLimiter(rate.Limit(cfg.MutationsPerSec), burst)
	}
	if cfg.SnapshotBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.SnapshotBytesPerSec), int(cfg.SnapshotBytesPerSec))
	}

	return c
}

// AcquireQuery reserves a query slot, blocking until one frees up or
// ctx ends.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireQuery reserves a query slot without blocking.
// Returns ErrQueryLimitExceeded when all slots are busy.
func (c *Controller) TryAcquireQuery() error {
	if c == nil {
		return nil
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return ErrQueryLimitExceeded
	}
	c.inFlight.Add(1)
	return nil
}

// ReleaseQuery releases a query slot.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}
	if c.querySem != nil {
		c.querySem.Release(1)
	}
	c.inFlight.Add(-1)
}

// InFlightQueries returns the number of searches currently admitted.
func (c *Controller) InFlightQueries() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// WaitMutation blocks until the mutation rate limit admits one write.
func (c *Controller) WaitMutation(ctx context.Context) error {
	if c == nil || c.mutLimiter == nil {
		return nil
	}
	return c.mutLimiter.Wait(ctx)
}

// AllowMutation reports whether a mutation may proceed right now.
func (c *Controller) AllowMutation() bool {
	if c == nil || c.mutLimiter == nil {
		return true
	}
	return c.mutLimiter.Allow()
}

// AcquireSnapshotIO waits until the IO limit allows bytes of transfer.
// Requests larger than one second of throughput are drawn in burst-sized
// chunks, so a big snapshot throttles instead of failing.
func (c *Controller) AcquireSnapshotIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireSnapshotIO attempts to acquire IO tokens without blocking.
func (c *Controller) TryAcquireSnapshotIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
