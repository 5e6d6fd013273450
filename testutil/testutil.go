package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/pathgo/core"
)

// Edge is an undirected connection between two identities.
type Edge struct {
	A core.Identity
	B core.Identity
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Shuffle permutes ids in place.
func (r *RNG) Shuffle(ids []core.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// Identities returns n identities named prefix-0, prefix-1, ... with
// zero padding wide enough for the whole range, so lexical order
// matches numeric order.
func Identities(prefix string, n int) []core.Identity {
	width := 1
	for v := n - 1; v >= 10; v /= 10 {
		width++
	}

	ids := make([]core.Identity, n)
	for i := range ids {
		ids[i] = core.Identity(fmt.Sprintf("%s-%0*d", prefix, width, i))
	}
	return ids
}

// RingLattice connects each identity to its k nearest neighbors on a
// ring (k/2 on each side). This is the regular base graph of the
// Watts-Strogatz model: high clustering, long shortest paths.
func RingLattice(ids []core.Identity, k int) []Edge {
	n := len(ids)
	if n < 2 {
		return nil
	}

	half := k / 2
	if half < 1 {
		half = 1
	}
	if half > (n-1)/2 {
		half = (n - 1) / 2
	}
	if half == 0 {
		// Two nodes: a single edge.
		return []Edge{{A: ids[0], B: ids[1]}}
	}

	edges := make([]Edge, 0, n*half)
	for i := range n {
		for j := 1; j <= half; j++ {
			edges = append(edges, Edge{A: ids[i], B: ids[(i+j)%n]})
		}
	}
	return edges
}

// SmallWorld generates a Watts-Strogatz small-world graph: a ring
// lattice of degree k with each edge rewired to a random endpoint with
// probability beta. Small beta values keep local clustering while
// collapsing the graph diameter, which is the shape real social graphs
// tend to have.
func (r *RNG) SmallWorld(ids []core.Identity, k int, beta float64) []Edge {
	base := RingLattice(ids, k)
	n := len(ids)
	if beta <= 0 || n < 3 {
		return base
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index := make(map[core.Identity]int, n)
	for i, id := range ids {
		index[id] = i
	}

	key := func(a, b int) [2]int {
		if a > b {
			a, b = b, a
		}
		return [2]int{a, b}
	}
	seen := make(map[[2]int]struct{}, len(base))
	for _, e := range base {
		seen[key(index[e.A], index[e.B])] = struct{}{}
	}

	edges := make([]Edge, 0, len(base))
	for _, e := range base {
		a, b := index[e.A], index[e.B]
		if r.rand.Float64() < beta {
			// A few retries; if the node is saturated the original
			// edge stays.
			for range 8 {
				c := r.rand.Intn(n)
				if c == a {
					continue
				}
				if _, dup := seen[key(a, c)]; dup {
					continue
				}
				delete(seen, key(a, b))
				seen[key(a, c)] = struct{}{}
				b = c
				break
			}
		}
		edges = append(edges, Edge{A: ids[a], B: ids[b]})
	}
	return edges
}

// ScaleFree generates a Barabási-Albert preferential-attachment graph:
// a seed clique over the first m+1 identities, then each new identity
// attaches to m existing ones with probability proportional to their
// degree. Produces the heavy-tailed degree distribution of follower
// graphs, with a few very-high-degree hubs.
func (r *RNG) ScaleFree(ids []core.Identity, m int) []Edge {
	n := len(ids)
	if n < 2 {
		return nil
	}
	if m < 1 {
		m = 1
	}
	if m >= n {
		m = n - 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	edges := make([]Edge, 0, n*m)

	// pool holds a node index once per incident edge, so uniform
	// sampling from it is degree-proportional sampling.
	var pool []int
	for i := 0; i <= m && i < n; i++ {
		for j := i + 1; j <= m && j < n; j++ {
			edges = append(edges, Edge{A: ids[i], B: ids[j]})
			pool = append(pool, i, j)
		}
	}

	for i := m + 1; i < n; i++ {
		picked := make([]int, 0, m)
		for len(picked) < m {
			t := pool[r.rand.Intn(len(pool))]
			if t == i || slices.Contains(picked, t) {
				continue
			}
			picked = append(picked, t)
		}
		for _, t := range picked {
			edges = append(edges, Edge{A: ids[i], B: ids[t]})
			pool = append(pool, i, t)
		}
	}
	return edges
}

// Communities generates a planted-partition graph: identities are
// assigned round-robin to groups, pairs inside a group connect with
// probability pIntra, pairs across groups with pInter. Useful for
// exercising mutual-connection suggestions. O(n^2), so keep n in the
// low thousands.
func (r *RNG) Communities(ids []core.Identity, groups int, pIntra, pInter float64) []Edge {
	n := len(ids)
	if n < 2 || groups < 1 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var edges []Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			p := pInter
			if i%groups == j%groups {
				p = pIntra
			}
			if r.rand.Float64() < p {
				edges = append(edges, Edge{A: ids[i], B: ids[j]})
			}
		}
	}
	return edges
}

// Pairs returns count random query pairs with distinct start and
// target, both drawn uniformly.
func (r *RNG) Pairs(ids []core.Identity, count int) [][2]core.Identity {
	n := len(ids)
	if n < 2 || count < 1 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([][2]core.Identity, count)
	for i := range pairs {
		a := r.rand.Intn(n)
		b := r.rand.Intn(n - 1)
		if b >= a {
			b++
		}
		pairs[i] = [2]core.Identity{ids[a], ids[b]}
	}
	return pairs
}

// ZipfPairs returns count query pairs whose start identity follows a
// Zipfian distribution over ids. s=1.0 gives standard Zipf, s=1.5 a
// heavy tail (80/20 rule). This is how real query traffic concentrates
// on celebrity accounts.
func (r *RNG) ZipfPairs(ids []core.Identity, count int, s float64) [][2]core.Identity {
	n := len(ids)
	if n < 2 || count < 1 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([][2]core.Identity, count)
	for i := range pairs {
		a := r.zipfLocked(n, s)
		b := r.rand.Intn(n - 1)
		if b >= a {
			b++
		}
		pairs[i] = [2]core.Identity{ids[a], ids[b]}
	}
	return pairs
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Normalization constant (harmonic number with exponent s).
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform sampling.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Percentile returns the p-th percentile of samples (p in [0, 100]).
// The input slice is sorted in place.
func Percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	slices.Sort(samples)
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	rank := int(math.Ceil(p / 100 * float64(len(samples))))
	if rank < 1 {
		rank = 1
	}
	return samples[rank-1]
}
