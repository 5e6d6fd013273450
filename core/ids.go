package core

// Identity is the opaque unique id of a node in the social graph.
// The engine attaches no meaning to its contents; profile data is an
// external concern.
type Identity string

// Slot is a dense, shard-local identifier for an identity.
// It is strictly 32-bit, allowing max 4 Billion identities per shard.
// Used for all hot-path structures (adjacency bitmaps, owned sets).
type Slot uint32

// Pair is an unordered pair of identities. Lo and Hi are normalized so
// that NewPair(a, b) and NewPair(b, a) compare equal and hash identically.
type Pair struct {
	Lo Identity
	Hi Identity
}

// NewPair returns the normalized unordered pair of a and b.
func NewPair(a, b Identity) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

// Touches reports whether id is one of the pair's endpoints.
func (p Pair) Touches(id Identity) bool {
	return p.Lo == id || p.Hi == id
}
