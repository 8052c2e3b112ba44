package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// branchingGraph builds
//
//	1 -> 2
//	1 -> 3 -> 4
//	     3 -> 5
func branchingGraph(t *testing.T) Graph {
	t.Helper()
	g := NewGraph(map[string]string{"k": "init"})
	for i := 0; i < 4; i++ {
		g.AddNode(nil)
	}
	require.NoError(t, g.AddEdge(1, 2, 1, "x < 0"))
	require.NoError(t, g.AddEdge(1, 3, 1, "x >= 0"))
	require.NoError(t, g.AddEdge(3, 4, 2, ""))
	require.NoError(t, g.AddEdge(3, 5, 2, ""))
	require.NoError(t, g.SetStatus(1, StatusExpanded, ""))
	require.NoError(t, g.SetStatus(3, StatusExpanded, ""))
	return g
}

func nodeIDs(g Graph) []int {
	ids := make([]int, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestPrune_SubtreeOnlyThroughNode(t *testing.T) {
	g := branchingGraph(t)

	n, err := g.Prune(3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2}, nodeIDs(g))
	assert.Empty(t, g.Edges, "the split at node 1 is dropped as a whole")

	n1, ok := g.Node(1)
	require.True(t, ok)
	assert.Equal(t, StatusPending, n1.Status)
	assert.Equal(t, map[int]bool{1: true}, g.Live())
	assert.Equal(t, []int{1}, g.Frontier(), "the sibling left behind is not explored")
}

func TestPrune_OneBranchOfSplitReopensSource(t *testing.T) {
	g := NewGraph(nil)
	proved := g.AddNode(nil)
	failing := g.AddNode(nil)
	require.NoError(t, g.AddEdge(1, proved, 2, "x <= 10"))
	require.NoError(t, g.AddEdge(1, failing, 2, "x > 10"))
	require.NoError(t, g.SetStatus(1, StatusExpanded, ""))
	require.NoError(t, g.SetStatus(proved, StatusProved, ""))
	require.NoError(t, g.SetStatus(failing, StatusFailing, "assertion failed"))
	require.Equal(t, 1, g.Count(StatusFailing))

	n, err := g.Prune(failing)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, g.Edges)
	assert.Equal(t, 0, g.Count(StatusFailing))
	assert.Equal(t, 0, g.Count(StatusProved), "the surviving sibling is unreachable")
	assert.Equal(t, 1, g.Count(StatusPending))
	assert.Equal(t, []int{1}, g.Frontier())
}

func TestPrune_Leaf(t *testing.T) {
	g := branchingGraph(t)

	n, err := g.Prune(4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1, 2, 3, 5}, nodeIDs(g))
}

func TestPrune_Root(t *testing.T) {
	g := branchingGraph(t)

	n, err := g.Prune(g.Init)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestPrune_KeepsNodesReachableAnotherWay(t *testing.T) {
	// 1 -> 2 -> 4, 1 -> 3 -> 4: pruning 2 must keep 4, which 3 still reaches.
	g := NewGraph(nil)
	for i := 0; i < 3; i++ {
		g.AddNode(nil)
	}
	require.NoError(t, g.AddEdge(1, 2, 1, ""))
	require.NoError(t, g.AddEdge(1, 3, 1, ""))
	require.NoError(t, g.AddEdge(2, 4, 1, ""))
	require.NoError(t, g.AddEdge(3, 4, 1, ""))

	n, err := g.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1, 3, 4}, nodeIDs(g))
	assert.Equal(t, []Edge{{Source: 3, Target: 4, Depth: 1}}, g.Edges)
	assert.Equal(t, []int{1}, g.Frontier())
}

func TestPrune_LastSuccessorReopensParent(t *testing.T) {
	g := NewGraph(nil)
	g.AddNode(nil)
	require.NoError(t, g.AddEdge(1, 2, 5, ""))
	require.NoError(t, g.SetStatus(1, StatusExpanded, ""))

	_, err := g.Prune(2)
	require.NoError(t, err)

	n1, _ := g.Node(1)
	assert.Equal(t, StatusPending, n1.Status)
	assert.Equal(t, []int{1}, g.Frontier())
}

func TestPrune_UnknownNodeDoesNotMutate(t *testing.T) {
	g := branchingGraph(t)
	before := branchingGraph(t)

	n, err := g.Prune(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Equal(t, 0, n)
	assert.Equal(t, before, g)
}

func TestAddNode_IDsAreMonotonicAfterPrune(t *testing.T) {
	g := branchingGraph(t)
	_, err := g.Prune(5)
	require.NoError(t, err)

	assert.Equal(t, 6, g.AddNode(nil))
}

func TestFrontier_SortedPending(t *testing.T) {
	g := branchingGraph(t)
	require.NoError(t, g.SetStatus(4, StatusProved, ""))

	assert.Equal(t, []int{2, 5}, g.Frontier())
}

func TestAddEdge_UnknownEndpoint(t *testing.T) {
	g := NewGraph(nil)
	err := g.AddEdge(1, 9, 1, "")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestValidate(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		g := branchingGraph(t)
		assert.NoError(t, g.Validate())
	})

	t.Run("empty after pruning the root", func(t *testing.T) {
		g := branchingGraph(t)
		_, err := g.Prune(g.Init)
		require.NoError(t, err)
		assert.NoError(t, g.Validate())
	})

	tests := []struct {
		name   string
		mutate func(g *Graph)
		want   string
	}{
		{"unknown status", func(g *Graph) { g.Nodes[1].Status = "bogus" }, `unknown status "bogus"`},
		{"duplicate node", func(g *Graph) { g.Nodes[1].ID = 1 }, "duplicate node 1"},
		{"non-positive id", func(g *Graph) { g.Nodes[0].ID = 0 }, "not positive"},
		{"dangling edge", func(g *Graph) { g.Edges = append(g.Edges, Edge{Source: 1, Target: 99}) }, "edge 1 -> 99"},
		{"missing init", func(g *Graph) { g.Init = 42 }, "initial node 42 is missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := branchingGraph(t)
			tt.mutate(&g)
			err := g.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGraph)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
