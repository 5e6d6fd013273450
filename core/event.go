package core

import "fmt"

// MutationOp enumerates the graph mutations a MutationEvent can carry.
type MutationOp uint8

const (
	// OpAddIdentity introduces a new identity with no connections.
	OpAddIdentity MutationOp = iota + 1
	// OpRemoveIdentity removes an identity and cascades removal of all
	// its incident edges.
	OpRemoveIdentity
	// OpAddEdge connects two identities bidirectionally.
	OpAddEdge
	// OpRemoveEdge disconnects two identities.
	OpRemoveEdge
)

// String returns the wire name of the operation.
func (op MutationOp) String() string {
	switch op {
	case OpAddIdentity:
		return "add_identity"
	case OpRemoveIdentity:
		return "remove_identity"
	case OpAddEdge:
		return "add_edge"
	case OpRemoveEdge:
		return "remove_edge"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(op))
	}
}

// MutationEvent is a single graph mutation delivered by an external event
// source. Delivery is assumed at-least-once and unordered; Seq establishes
// a per-affected-identity order so duplicates and stale replays can be
// detected and dropped.
type MutationEvent struct {
	Op  MutationOp
	A   Identity
	B   Identity // zero value for identity-level ops
	Seq uint64
}

// Affected returns the identities whose adjacency or existence this event
// touches. Edge events affect both endpoints.
func (e MutationEvent) Affected() []Identity {
	switch e.Op {
	case OpAddEdge, OpRemoveEdge:
		return []Identity{e.A, e.B}
	default:
		return []Identity{e.A}
	}
}
