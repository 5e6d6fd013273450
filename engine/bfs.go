package engine

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/pathgo/core"
)

// Outcome classifies how a search ended.
type Outcome uint8

const (
	// OutcomeFound means the two frontiers met.
	OutcomeFound Outcome = iota + 1

	// OutcomeExhausted means a frontier emptied without meeting the
	// other side, so no path exists on the reachable graph.
	OutcomeExhausted

	// OutcomeDepthLimited means the depth budget stopped the search
	// while both frontiers were still growing.
	OutcomeDepthLimited

	// OutcomeTimedOut means the time budget expired first.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeDepthLimited:
		return "depth_limited"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// PathResult is the outcome of one FindPath run.
type PathResult struct {
	// Found reports whether a path exists within the search budgets.
	Found bool

	// Path holds the identities from start to target inclusive.
	// Empty unless Found.
	Path []core.Identity

	// Degrees is len(Path)-1, or -1 when no path was found.
	Degrees int

	// NodesExplored sums the frontier sizes at each expansion.
	NodesExplored int

	// Rounds counts frontier expansions.
	Rounds int

	// Partial marks a search that ran with at least one shard dark
	// after retries. A reported miss may still have a path.
	Partial bool

	// Outcome classifies how the search ended.
	Outcome Outcome

	// Elapsed is the wall-clock search duration.
	Elapsed time.Duration
}

// visit records how an identity was reached from one side.
type visit struct {
	parent core.Identity
	depth  int
}

// bfsSearch holds the per-run state of one bidirectional search.
//
// Expansion order is deterministic: the frontier is swept in insertion
// order and each identity's neighbors arrive in shard slot order, so a
// fixed graph yields the same meeting point and the same path every run.
type bfsSearch struct {
	eng    *Engine
	parent context.Context // caller context, distinguishes cancellation from budget expiry
	opts   Options

	fwdVisited map[core.Identity]visit
	bwdVisited map[core.Identity]visit

	fwdFrontier []core.Identity
	bwdFrontier []core.Identity
	fwdDepth    int
	bwdDepth    int

	explored int
	rounds   int
	partial  bool
}

func newSearch(eng *Engine, parent context.Context, opts Options, start, target core.Identity) *bfsSearch {
	return &bfsSearch{
		eng:         eng,
		parent:      parent,
		opts:        opts,
		fwdVisited:  map[core.Identity]visit{start: {}},
		bwdVisited:  map[core.Identity]visit{target: {}},
		fwdFrontier: []core.Identity{start},
		bwdFrontier: []core.Identity{target},
	}
}

func (s *bfsSearch) run(ctx context.Context) (*PathResult, error) {
	for {
		if ctx.Err() != nil {
			return s.interrupted()
		}
		// The depth budget bounds the sum of both expansion depths,
		// which is the longest path the search can still certify.
		if s.fwdDepth+s.bwdDepth >= s.opts.MaxDepth {
			return s.finish(OutcomeDepthLimited, nil), nil
		}

		// Expand the smaller frontier; ties go forward.
		backwardRound := len(s.bwdFrontier) < len(s.fwdFrontier)
		frontier, visited, other := s.fwdFrontier, s.fwdVisited, s.bwdVisited
		depth := s.fwdDepth + 1
		if backwardRound {
			frontier, visited, other = s.bwdFrontier, s.bwdVisited, s.fwdVisited
			depth = s.bwdDepth + 1
		}

		s.rounds++
		s.explored += len(frontier)

		rows := s.expand(ctx, frontier)
		if ctx.Err() != nil {
			return s.interrupted()
		}

		next := make([]core.Identity, 0, len(frontier))
		for _, id := range frontier {
			for _, neighbor := range rows[id] {
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = visit{parent: id, depth: depth}
				if _, met := other[neighbor]; met {
					return s.finish(OutcomeFound, s.buildPath(neighbor)), nil
				}
				next = append(next, neighbor)
			}
		}

		if backwardRound {
			s.bwdFrontier, s.bwdDepth = next, depth
		} else {
			s.fwdFrontier, s.fwdDepth = next, depth
		}
		if len(next) == 0 {
			return s.finish(OutcomeExhausted, nil), nil
		}
	}
}

// expand resolves neighbors for one frontier, one batched request per
// shard, fanned out through the worker pool. Shards that stay dark after
// retries contribute nothing and flip the partial flag.
func (s *bfsSearch) expand(ctx context.Context, frontier []core.Identity) map[core.Identity][]core.Identity {
	grouped := s.eng.router.Group(frontier)

	type lookup struct {
		rows map[core.Identity][]core.Identity
		err  error
	}
	resultCh := make(chan lookup, len(grouped))

	pending := 0
	for shardID, ids := range grouped {
		err := s.eng.pool.Submit(ctx, func() {
			rows, err := s.eng.neighborsWithRetry(ctx, shardID, ids, s.opts)
			select {
			case resultCh <- lookup{rows: rows, err: err}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			s.partial = true
			continue
		}
		pending++
	}

	rows := make(map[core.Identity][]core.Identity, len(frontier))
	for i := 0; i < pending; i++ {
		select {
		case res := <-resultCh:
			if res.err != nil {
				s.partial = true
				continue
			}
			for id, neighbors := range res.rows {
				rows[id] = neighbors
			}
		case <-ctx.Done():
			// Late shard answers are dropped; the round loop turns
			// the expired budget into the final outcome.
			return rows
		}
	}
	return rows
}

// interrupted translates an expired run context into either a caller
// error or a timed-out result, depending on who pulled the plug.
func (s *bfsSearch) interrupted() (*PathResult, error) {
	if err := s.parent.Err(); err != nil {
		return nil, err
	}
	return s.finish(OutcomeTimedOut, nil), nil
}

func (s *bfsSearch) finish(outcome Outcome, path []core.Identity) *PathResult {
	res := &PathResult{
		Outcome:       outcome,
		Degrees:       -1,
		NodesExplored: s.explored,
		Rounds:        s.rounds,
		Partial:       s.partial,
	}
	if outcome == OutcomeFound {
		res.Found = true
		res.Path = path
		res.Degrees = len(path) - 1
	}
	return res
}

// buildPath stitches the two parent chains together at the meeting
// identity. Seeds carry depth zero, which terminates each walk.
func (s *bfsSearch) buildPath(meeting core.Identity) []core.Identity {
	path := []core.Identity{}
	for id := meeting; ; {
		path = append(path, id)
		v := s.fwdVisited[id]
		if v.depth == 0 {
			break
		}
		id = v.parent
	}
	slices.Reverse(path)

	for id := meeting; ; {
		v := s.bwdVisited[id]
		if v.depth == 0 {
			break
		}
		id = v.parent
		path = append(path, id)
	}
	return path
}
