// Package cache provides the LRU path cache backing repeated queries.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/pathgo/core"
)

const (
	// DefaultCapacity bounds the number of cached paths.
	DefaultCapacity = 1024

	// DefaultTTL is how long a cached path stays valid after it was
	// computed. Hits do not refresh it.
	DefaultTTL = time.Minute
)

// PathCache is an LRU cache of shortest paths keyed by unordered
// identity pairs, so (a,b) and (b,a) share one entry.
//
// Entries expire a fixed TTL after creation regardless of hits, and are
// dropped lazily on the next Get. Stored paths are shared with callers
// and must be treated as read-only.
type PathCache struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	items     map[core.Pair]*list.Element
	evictList *list.List
	nowFn     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key       core.Pair
	path      []core.Identity
	expiresAt time.Time
}

// New creates a path cache holding up to capacity entries for ttl each.
// Non-positive arguments select the defaults; a zero ttl never happens
// as a result.
func New(capacity int, ttl time.Duration) *PathCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PathCache{
		capacity:  capacity,
		ttl:       ttl,
		items:     make(map[core.Pair]*list.Element),
		evictList: list.New(),
		nowFn:     time.Now,
	}
}

// Get returns the cached path between start and target, oriented to
// begin at start.
func (c *PathCache) Get(start, target core.Identity) ([]core.Identity, bool) {
	key := core.NewPair(start, target)

	c.mu.Lock()
	element, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	ent := element.Value.(*entry)
	if c.nowFn().After(ent.expiresAt) {
		c.removeElement(element)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.evictList.MoveToFront(element)
	path := ent.path
	c.mu.Unlock()
	c.hits.Add(1)

	if len(path) > 0 && path[0] != start {
		reversed := make([]core.Identity, len(path))
		for i, id := range path {
			reversed[len(path)-1-i] = id
		}
		return reversed, true
	}
	return path, true
}

// Put caches a freshly computed path between start and target.
// Rewriting an existing pair restarts its TTL.
func (c *PathCache) Put(start, target core.Identity, path []core.Identity) {
	if len(path) == 0 {
		return
	}
	key := core.NewPair(start, target)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.nowFn().Add(c.ttl)
	if element, ok := c.items[key]; ok {
		c.evictList.MoveToFront(element)
		ent := element.Value.(*entry)
		ent.path = path
		ent.expiresAt = expiresAt
		return
	}

	for c.evictList.Len() >= c.capacity {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		c.removeElement(element)
	}
	c.items[key] = c.evictList.PushFront(&entry{key: key, path: path, expiresAt: expiresAt})
}

// Invalidate removes entries matching the predicate and returns how
// many were dropped. The predicate sees both the key pair and the full
// stored path, so intermediate hops can be matched.
func (c *PathCache) Invalidate(predicate func(key core.Pair, path []core.Identity) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// removeElement mutates the list, so collect matches first.
	var toRemove []*list.Element
	for key, element := range c.items {
		if predicate(key, element.Value.(*entry).path) {
			toRemove = append(toRemove, element)
		}
	}
	for _, element := range toRemove {
		c.removeElement(element)
	}
	return len(toRemove)
}

// Purge drops every entry.
func (c *PathCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[core.Pair]*list.Element)
	c.evictList.Init()
}

// Len returns the number of cached entries, expired ones included.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *PathCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PathCache) removeElement(element *list.Element) {
	c.evictList.Remove(element)
	delete(c.items, element.Value.(*entry).key)
}
