package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pathgo/core"
)

// suggestGraph builds a small network around "me":
//
//	me    -- f1, f2, f3
//	f1    -- c1, c2
//	f2    -- c1, c2
//	f3    -- c1, f1
//
// Candidate c1 shares three mutual connections with me, c2 shares two.
// f1 is a direct connection and never suggested, despite being a
// second-degree contact through f3.
func suggestGraph(t *testing.T) (*Engine, *Coordinator) {
	t.Helper()

	eng, coord := newTestGraph(t, 3)
	ctx := context.Background()

	addIdentities(t, coord, "me", "f1", "f2", "f3", "c1", "c2")
	for _, e := range [][2]core.Identity{
		{"me", "f1"}, {"me", "f2"}, {"me", "f3"},
		{"f1", "c1"}, {"f1", "c2"},
		{"f2", "c1"}, {"f2", "c2"},
		{"f3", "c1"}, {"f3", "f1"},
	} {
		_, err := coord.AddEdge(ctx, e[0], e[1])
		require.NoError(t, err)
	}

	return eng, coord
}

func TestSuggestConnections(t *testing.T) {
	ctx := context.Background()
	eng, _ := suggestGraph(t)

	suggestions, err := eng.SuggestConnections(ctx, "me", 0)
	require.NoError(t, err)

	require.Equal(t, []Suggestion{
		{ID: "c1", Mutual: 3},
		{ID: "c2", Mutual: 2},
	}, suggestions)
}

func TestSuggestConnectionsLimit(t *testing.T) {
	ctx := context.Background()
	eng, _ := suggestGraph(t)

	suggestions, err := eng.SuggestConnections(ctx, "me", 1)
	require.NoError(t, err)

	require.Len(t, suggestions, 1)
	assert.Equal(t, core.Identity("c1"), suggestions[0].ID)
}

func TestSuggestConnectionsTieBreak(t *testing.T) {
	ctx := context.Background()
	eng, coord := newTestGraph(t, 2)

	// Both candidates share exactly one mutual connection.
	addChain(t, coord, "zz", "hub", "aa")
	addIdentities(t, coord, "me")
	_, err := coord.AddEdge(ctx, "me", "hub")
	require.NoError(t, err)

	suggestions, err := eng.SuggestConnections(ctx, "me", 0)
	require.NoError(t, err)

	require.Equal(t, []Suggestion{
		{ID: "aa", Mutual: 1},
		{ID: "zz", Mutual: 1},
	}, suggestions, "equal counts order by identity")
}

func TestSuggestConnectionsIsolated(t *testing.T) {
	ctx := context.Background()
	eng, coord := newTestGraph(t, 2)
	addIdentities(t, coord, "loner")

	suggestions, err := eng.SuggestConnections(ctx, "loner", 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestConnectionsUnknown(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestGraph(t, 2)

	_, err := eng.SuggestConnections(ctx, "ghost", 10)

	var unknownErr *ErrUnknownIdentity
	assert.ErrorAs(t, err, &unknownErr)
}

func TestMutualConnections(t *testing.T) {
	ctx := context.Background()
	eng, _ := suggestGraph(t)

	mutual, err := eng.MutualConnections(ctx, "me", "c1")
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"f1", "f2", "f3"}, mutual)

	mutual, err = eng.MutualConnections(ctx, "me", "c2")
	require.NoError(t, err)
	assert.Equal(t, []core.Identity{"f1", "f2"}, mutual)

	// Symmetric by construction.
	reversed, err := eng.MutualConnections(ctx, "c2", "me")
	require.NoError(t, err)
	assert.Equal(t, mutual, reversed)
}

func TestMutualConnectionsNone(t *testing.T) {
	ctx := context.Background()
	eng, coord := newTestGraph(t, 2)
	addChain(t, coord, "u1", "u2")

	mutual, err := eng.MutualConnections(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Empty(t, mutual)
}

func TestDegree(t *testing.T) {
	ctx := context.Background()
	eng, coord := suggestGraph(t)

	degree, err := eng.Degree(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, 3, degree)

	degree, err = eng.Degree(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 2, degree)

	// Degree drops as incident edges go away.
	_, err = coord.RemoveEdge(ctx, "me", "f1")
	require.NoError(t, err)

	degree, err = eng.Degree(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, 2, degree)

	_, err = eng.Degree(ctx, "ghost")
	var unknownErr *ErrUnknownIdentity
	assert.ErrorAs(t, err, &unknownErr)
}
