package proof

import (
	"fmt"
	"strings"

	"github.com/roach88/kompass/internal/claims"
)

// Verdict is the overall outcome of a proof record.
type Verdict string

const (
	// VerdictPending means the frontier is not exhausted and nothing failed.
	VerdictPending Verdict = "pending"

	// VerdictPassed means every leaf is proved or vacuous.
	VerdictPassed Verdict = "passed"

	// VerdictFailed means at least one branch is failing or stuck.
	VerdictFailed Verdict = "failed"
)

// IsTerminal reports whether exploration can stop.
func (v Verdict) IsTerminal() bool {
	return v == VerdictPassed || v == VerdictFailed
}

// Record is the persisted proof state for a single claim.
type Record struct {
	ID         string       `json:"id"`
	Claim      claims.Claim `json:"claim"`
	Graph      Graph        `json:"graph"`
	Iterations int          `json:"iterations"`
	Passed     bool         `json:"passed"`
	Summary    string       `json:"summary"`
}

// NewRecord constructs a fresh record for a claim: a single pending initial
// node and no execution history.
func NewRecord(c claims.Claim) *Record {
	cells := map[string]string{"start": c.Start}
	if c.Program != "" {
		cells["#program"] = c.Program
	}
	r := &Record{
		ID:    c.Label,
		Claim: c,
		Graph: NewGraph(cells),
	}
	r.Refresh()
	return r
}

// Verdict derives the outcome from the statuses of the nodes reachable from
// the initial node. An empty graph is pending.
func (r *Record) Verdict() Verdict {
	counts := r.Graph.counts()
	total := 0
	for _, c := range counts {
		total += c
	}
	switch {
	case total == 0:
		return VerdictPending
	case counts[StatusFailing] > 0 || counts[StatusStuck] > 0:
		return VerdictFailed
	case counts[StatusPending] > 0:
		return VerdictPending
	}
	return VerdictPassed
}

// Refresh recomputes Passed and Summary from the graph.
func (r *Record) Refresh() {
	r.Passed = r.Verdict() == VerdictPassed
	r.Summary = Summarize(r)
}

// Normalize restores ordering invariants after decoding.
func (r *Record) Normalize() {
	r.Graph.normalize()
}

// Summarize renders the human-readable outcome of a record. Open and
// failed branches are named by node id so the user can `show` them.
func Summarize(r *Record) string {
	var b strings.Builder
	v := r.Verdict()
	status := string(v)
	if v == VerdictPending && r.Iterations > 0 {
		status = "bounded-incomplete"
	}

	fmt.Fprintf(&b, "Proof %s: %s\n", r.ID, status)
	fmt.Fprintf(&b, "    iterations: %d\n", r.Iterations)
	fmt.Fprintf(&b, "    nodes: %d\n", len(r.Graph.Nodes))
	for _, s := range []Status{StatusPending, StatusFailing, StatusStuck, StatusProved, StatusVacuous} {
		fmt.Fprintf(&b, "    %s: %d\n", s, r.Graph.Count(s))
	}

	live := r.Graph.reachable(-1)
	for _, n := range r.Graph.Nodes {
		if !live[n.ID] {
			continue
		}
		switch n.Status {
		case StatusFailing, StatusStuck:
			line := fmt.Sprintf("    %s branch: node %d", n.Status, n.ID)
			if n.Reason != "" {
				line += ": " + n.Reason
			}
			b.WriteString(line + "\n")
		}
	}
	if open := r.Graph.Frontier(); len(open) > 0 {
		ids := make([]string, len(open))
		for i, id := range open {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, "    open branches: %s\n", strings.Join(ids, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
