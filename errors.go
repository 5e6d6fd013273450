package pathgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/engine"
)

var (
	// ErrClosed is returned for operations on a closed instance.
	ErrClosed = errors.New("pathgo: closed")

	// ErrEmptyIdentity is returned when an identity argument is empty.
	ErrEmptyIdentity = errors.New("pathgo: empty identity")

	// ErrNoSnapshotStore is returned by Checkpoint and Restore when the
	// instance was built without a snapshot store.
	ErrNoSnapshotStore = errors.New("pathgo: no snapshot store configured")
)

// ErrUnknownIdentity indicates an identity that is not present in the graph.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrUnknownIdentity struct {
	ID    core.Identity
	cause error
}

func (e *ErrUnknownIdentity) Error() string {
	return fmt.Sprintf("unknown identity %q", e.ID)
}

func (e *ErrUnknownIdentity) Unwrap() error { return e.cause }

// ErrInvalidEdge indicates a connection that cannot exist, such as a
// self-edge.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidEdge struct {
	A, B   core.Identity
	Reason string
	cause  error
}

func (e *ErrInvalidEdge) Error() string {
	return fmt.Sprintf("invalid edge %q--%q: %s", e.A, e.B, e.Reason)
}

func (e *ErrInvalidEdge) Unwrap() error { return e.cause }

// ErrInvalidTopology indicates an unusable shard layout.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidTopology struct {
	ShardCount int
	cause      error
}

func (e *ErrInvalidTopology) Error() string {
	return fmt.Sprintf("invalid topology: %d shards", e.ShardCount)
}

func (e *ErrInvalidTopology) Unwrap() error { return e.cause }

// translateError maps engine errors onto the facade error surface.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Sentinel unification.
	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, engine.ErrEmptyIdentity) {
		return fmt.Errorf("%w: %w", ErrEmptyIdentity, err)
	}

	// Typed error normalization.
	var unknown *engine.ErrUnknownIdentity
	if errors.As(err, &unknown) {
		return &ErrUnknownIdentity{ID: unknown.ID, cause: err}
	}
	var edge *engine.ErrInvalidEdge
	if errors.As(err, &edge) {
		return &ErrInvalidEdge{A: edge.A, B: edge.B, Reason: edge.Reason, cause: err}
	}
	var topo *engine.ErrInvalidTopology
	if errors.As(err, &topo) {
		return &ErrInvalidTopology{ShardCount: topo.ShardCount, cause: err}
	}

	return err
}
