// Package pathgo provides functionalities for a sharded social graph database.
//
// This file implements a fluent query API for PathGo instances.
package pathgo

import (
	"context"
	"time"

	"github.com/hupe1980/pathgo/core"
)

// Path creates a new fluent query builder for the given endpoints.
//
// Example:
//
//	result, err := pg.Path("alice", "dave").
//	    MaxDepth(4).
//	    TimeBudget(2 * time.Second).
//	    Execute(ctx)
//
//	// Or just the separation:
//	degrees, err := pg.Path("alice", "dave").Degrees(ctx)
func (pg *PathGo) Path(start, target core.Identity) *PathQuery {
	return &PathQuery{
		pg:     pg,
		start:  start,
		target: target,
	}
}

// PathQuery is a fluent builder for constructing path queries.
type PathQuery struct {
	pg     *PathGo
	start  core.Identity
	target core.Identity

	timeBudget time.Duration
	maxDepth   int
	skipCache  bool
}

// TimeBudget bounds the wall-clock search time for this query.
func (q *PathQuery) TimeBudget(d time.Duration) *PathQuery {
	q.timeBudget = d
	return q
}

// MaxDepth bounds the combined expansion depth of both frontiers.
// Lower values answer faster but miss longer chains.
func (q *PathQuery) MaxDepth(depth int) *PathQuery {
	q.maxDepth = depth
	return q
}

// SkipCache bypasses the result cache for this query.
func (q *PathQuery) SkipCache() *PathQuery {
	q.skipCache = true
	return q
}

// Execute runs the query and returns the result.
func (q *PathQuery) Execute(ctx context.Context) (*PathResult, error) {
	return q.pg.FindPath(ctx, q.start, q.target, func(o *FindPathOptions) {
		o.TimeBudget = q.timeBudget
		o.MaxDepth = q.maxDepth
		o.SkipCache = q.skipCache
	})
}

// MustExecute runs the query, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (q *PathQuery) MustExecute(ctx context.Context) *PathResult {
	result, err := q.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return result
}

// Degrees returns the degrees of separation between the endpoints,
// or -1 if no path was found within the budgets.
func (q *PathQuery) Degrees(ctx context.Context) (int, error) {
	result, err := q.Execute(ctx)
	if err != nil {
		return -1, err
	}
	return result.Degrees, nil
}

// Exists reports whether any chain of connections links the endpoints
// within the budgets.
func (q *PathQuery) Exists(ctx context.Context) (bool, error) {
	result, err := q.Execute(ctx)
	if err != nil {
		return false, err
	}
	return result.Found, nil
}
