package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pathgo/core"
)

var (
	// ErrClosed is returned for operations on a closed engine or coordinator.
	ErrClosed = errors.New("engine closed")

	// ErrShardUnavailable indicates a shard that did not answer. Remote
	// shard transports return it so searches can degrade instead of failing.
	ErrShardUnavailable = errors.New("shard unavailable")

	// ErrEmptyIdentity is returned when an identity argument is empty.
	ErrEmptyIdentity = errors.New("empty identity")
)

// ErrUnknownIdentity indicates an identity that is not present in the graph.
type ErrUnknownIdentity struct {
	ID core.Identity
}

func (e *ErrUnknownIdentity) Error() string {
	return fmt.Sprintf("unknown identity %q", e.ID)
}

// ErrInvalidEdge indicates an edge that cannot exist, such as a self-edge.
type ErrInvalidEdge struct {
	A, B   core.Identity
	Reason string
}

func (e *ErrInvalidEdge) Error() string {
	return fmt.Sprintf("invalid edge %q--%q: %s", e.A, e.B, e.Reason)
}

// ErrInvalidTopology indicates an unusable shard layout.
type ErrInvalidTopology struct {
	ShardCount int
}

func (e *ErrInvalidTopology) Error() string {
	return fmt.Sprintf("invalid topology: %d shards", e.ShardCount)
}
