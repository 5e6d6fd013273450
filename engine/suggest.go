package engine

import (
	"context"
	"sort"

	"github.com/hupe1980/pathgo/core"
)

// Suggestion pairs a candidate identity with the number of mutual
// connections it shares with the subject.
type Suggestion struct {
	ID     core.Identity
	Mutual int
}

// SuggestConnections ranks second-degree contacts of id by how many
// mutual connections they share with it. Identities already connected
// to id are skipped. Results are ordered by mutual count descending,
// ties by identity ascending. limit <= 0 returns all candidates.
func (e *Engine) SuggestConnections(ctx context.Context, id core.Identity, limit int, optFns ...Option) ([]Suggestion, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if id == "" {
		return nil, ErrEmptyIdentity
	}
	opts := e.searchOptions(optFns...)

	ok, err := e.identityExists(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ErrUnknownIdentity{ID: id}
	}

	direct, err := e.neighborsOf(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if len(direct) == 0 {
		return nil, nil
	}
	directSet := make(map[core.Identity]struct{}, len(direct))
	for _, n := range direct {
		directSet[n] = struct{}{}
	}

	counts := make(map[core.Identity]int)
	for shardID, ids := range e.router.Group(direct) {
		rows, err := e.neighborsWithRetry(ctx, shardID, ids, opts)
		if err != nil {
			return nil, err
		}
		for _, owner := range ids {
			for _, candidate := range rows[owner] {
				if candidate == id {
					continue
				}
				if _, connected := directSet[candidate]; connected {
					continue
				}
				counts[candidate]++
			}
		}
	}

	suggestions := make([]Suggestion, 0, len(counts))
	for candidate, mutual := range counts {
		suggestions = append(suggestions, Suggestion{ID: candidate, Mutual: mutual})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Mutual != suggestions[j].Mutual {
			return suggestions[i].Mutual > suggestions[j].Mutual
		}
		return suggestions[i].ID < suggestions[j].ID
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// MutualConnections returns the identities adjacent to both a and b,
// sorted ascending.
func (e *Engine) MutualConnections(ctx context.Context, a, b core.Identity, optFns ...Option) ([]core.Identity, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if a == "" || b == "" {
		return nil, ErrEmptyIdentity
	}
	opts := e.searchOptions(optFns...)

	for _, id := range []core.Identity{a, b} {
		ok, err := e.identityExists(ctx, id, opts)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ErrUnknownIdentity{ID: id}
		}
	}

	na, err := e.neighborsOf(ctx, a, opts)
	if err != nil {
		return nil, err
	}
	nb, err := e.neighborsOf(ctx, b, opts)
	if err != nil {
		return nil, err
	}
	if len(nb) < len(na) {
		na, nb = nb, na
	}

	set := make(map[core.Identity]struct{}, len(na))
	for _, n := range na {
		set[n] = struct{}{}
	}
	var mutual []core.Identity
	for _, n := range nb {
		if _, ok := set[n]; ok {
			mutual = append(mutual, n)
		}
	}
	sort.Slice(mutual, func(i, j int) bool { return mutual[i] < mutual[j] })
	return mutual, nil
}

// Degree returns the number of direct connections id has.
func (e *Engine) Degree(ctx context.Context, id core.Identity, optFns ...Option) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if id == "" {
		return 0, ErrEmptyIdentity
	}
	opts := e.searchOptions(optFns...)

	ok, err := e.identityExists(ctx, id, opts)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &ErrUnknownIdentity{ID: id}
	}

	neighbors, err := e.neighborsOf(ctx, id, opts)
	if err != nil {
		return 0, err
	}
	return len(neighbors), nil
}
