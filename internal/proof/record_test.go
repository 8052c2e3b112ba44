package proof

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kompass/internal/claims"
)

var testClaim = claims.Claim{Label: "ok", Start: "ok", Program: "/tmp/linked.smir.json"}

func TestNewRecord(t *testing.T) {
	r := NewRecord(testClaim)

	assert.Equal(t, "ok", r.ID)
	assert.Equal(t, 0, r.Iterations)
	require.Len(t, r.Graph.Nodes, 1)
	assert.Empty(t, r.Graph.Edges)
	assert.Equal(t, r.Graph.Init, r.Graph.Nodes[0].ID)
	assert.Equal(t, StatusPending, r.Graph.Nodes[0].Status)
	assert.Equal(t, "ok", r.Graph.Nodes[0].Cells["start"])
	assert.Equal(t, VerdictPending, r.Verdict())
	assert.False(t, r.Passed)
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Verdict
	}{
		{"all proved", []Status{StatusExpanded, StatusProved, StatusVacuous}, VerdictPassed},
		{"pending leaf", []Status{StatusExpanded, StatusProved, StatusPending}, VerdictPending},
		{"failing beats pending", []Status{StatusExpanded, StatusPending, StatusFailing}, VerdictFailed},
		{"stuck fails", []Status{StatusExpanded, StatusStuck}, VerdictFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(testClaim)
			for range tt.statuses[1:] {
				require.NoError(t, r.Graph.AddEdge(1, r.Graph.AddNode(nil), 1, ""))
			}
			for i, s := range tt.statuses {
				require.NoError(t, r.Graph.SetStatus(i+1, s, ""))
			}
			assert.Equal(t, tt.want, r.Verdict())
		})
	}
}

func TestVerdict_EmptyGraphIsPending(t *testing.T) {
	r := NewRecord(testClaim)
	_, err := r.Graph.Prune(r.Graph.Init)
	require.NoError(t, err)

	assert.Equal(t, VerdictPending, r.Verdict())
}

func TestVerdict_IgnoresUnreachableNodes(t *testing.T) {
	r := NewRecord(testClaim)
	orphan := r.Graph.AddNode(nil)
	require.NoError(t, r.Graph.SetStatus(orphan, StatusFailing, "assertion failed"))
	require.NoError(t, r.Graph.SetStatus(1, StatusProved, ""))

	assert.Equal(t, VerdictPassed, r.Verdict())
}

func TestVerdict_PruningFailingBranchDoesNotPass(t *testing.T) {
	r := NewRecord(testClaim)
	ok := r.Graph.AddNode(nil)
	bad := r.Graph.AddNode(nil)
	require.NoError(t, r.Graph.AddEdge(1, ok, 2, "x <= 10"))
	require.NoError(t, r.Graph.AddEdge(1, bad, 2, "x > 10"))
	require.NoError(t, r.Graph.SetStatus(1, StatusExpanded, ""))
	require.NoError(t, r.Graph.SetStatus(ok, StatusProved, ""))
	require.NoError(t, r.Graph.SetStatus(bad, StatusFailing, "assertion failed"))
	r.Iterations = 2
	r.Refresh()
	require.Equal(t, VerdictFailed, r.Verdict())

	_, err := r.Graph.Prune(bad)
	require.NoError(t, err)
	r.Refresh()

	assert.Equal(t, VerdictPending, r.Verdict())
	assert.False(t, r.Passed)
	assert.Contains(t, r.Summary, "Proof ok: bounded-incomplete")
	assert.Contains(t, r.Summary, "open branches: 1")
	assert.NotContains(t, r.Summary, "failing branch")
}

func TestSummarize_NamesFailingAndOpenBranches(t *testing.T) {
	r := NewRecord(testClaim)
	r.Graph.AddNode(nil)
	r.Graph.AddNode(nil)
	require.NoError(t, r.Graph.AddEdge(1, 2, 3, ""))
	require.NoError(t, r.Graph.AddEdge(1, 3, 3, ""))
	require.NoError(t, r.Graph.SetStatus(1, StatusExpanded, ""))
	require.NoError(t, r.Graph.SetStatus(2, StatusFailing, "assertion failed: x > 0"))
	r.Iterations = 2
	r.Refresh()

	assert.False(t, r.Passed)
	assert.Contains(t, r.Summary, "Proof ok: failed")
	assert.Contains(t, r.Summary, "failing branch: node 2: assertion failed: x > 0")
	assert.Contains(t, r.Summary, "open branches: 3")
}

func TestSummarize_BoundedIncomplete(t *testing.T) {
	r := NewRecord(testClaim)
	r.Iterations = 1
	r.Refresh()

	assert.Contains(t, r.Summary, "Proof ok: bounded-incomplete")
	assert.Contains(t, r.Summary, "open branches: 1")
}

func TestChoose(t *testing.T) {
	existing := NewRecord(testClaim)
	existing.Graph.AddNode(map[string]string{"k": "later"})
	existing.Iterations = 3

	t.Run("reuses existing", func(t *testing.T) {
		r, origin := Choose(existing, testClaim, false)
		assert.Same(t, existing, r)
		assert.Equal(t, OriginLoaded, origin)
	})

	t.Run("force new ignores existing", func(t *testing.T) {
		r, origin := Choose(existing, testClaim, true)
		assert.NotSame(t, existing, r)
		assert.Equal(t, OriginCreated, origin)
		assert.Len(t, r.Graph.Nodes, 1)
		assert.Equal(t, 0, r.Iterations)
	})

	t.Run("empty record starts over", func(t *testing.T) {
		emptied := NewRecord(testClaim)
		emptied.Iterations = 3
		_, err := emptied.Graph.Prune(emptied.Graph.Init)
		require.NoError(t, err)

		r, origin := Choose(emptied, testClaim, false)
		assert.Equal(t, OriginCreated, origin)
		assert.Equal(t, []int{1}, r.Graph.Frontier())
		assert.Equal(t, 0, r.Iterations)
	})

	t.Run("creates when absent", func(t *testing.T) {
		r, origin := Choose(nil, testClaim, false)
		assert.Equal(t, OriginCreated, origin)
		assert.Equal(t, "ok", r.ID)
	})
}

func TestNormalize_RestoresOrder(t *testing.T) {
	data := `{"id":"ok","claim":{"label":"ok","start":"ok"},"graph":{"init":1,"next_id":0,
		"nodes":[{"id":3,"status":"pending","cells":null},{"id":1,"status":"expanded","cells":{}}],
		"edges":[{"source":1,"target":3,"depth":1}]},"iterations":1,"passed":false,"summary":""}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(data), &r))
	r.Normalize()

	assert.Equal(t, []int{1, 3}, nodeIDs(r.Graph))
	assert.Equal(t, 4, r.Graph.NextID)
	assert.NotNil(t, r.Graph.Nodes[1].Cells)
}
