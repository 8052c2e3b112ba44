package session

import (
	"github.com/roach88/kompass/internal/proof"
	"github.com/roach88/kompass/internal/store"
)

// Result is the outcome of one Request. Its concrete type matches the
// request variant.
type Result interface {
	isResult()
}

// BuildResult reports the artifact a build produced.
type BuildResult struct {
	Artifact string `json:"artifact"`
}

// ProveResult reports the state of one proof after a session.
type ProveResult struct {
	Label      string        `json:"label"`
	Verdict    proof.Verdict `json:"verdict"`
	Passed     bool          `json:"passed"`
	Iterations int           `json:"iterations"`
	Nodes      int           `json:"nodes"`
	Origin     proof.Origin  `json:"origin"`
	Summary    string        `json:"summary"`
}

// LabelError is a claim of a batch that could not be advanced.
type LabelError struct {
	Label string `json:"label"`
	Err   error  `json:"-"`
}

// ProveRawResult reports every claim a batch attempted, in order.
type ProveRawResult struct {
	Claims []ProveResult `json:"claims"`
	Failed []LabelError  `json:"failed"`
}

// Passed reports whether every selected claim was proved.
func (r *ProveRawResult) Passed() bool {
	if len(r.Failed) > 0 {
		return false
	}
	for _, c := range r.Claims {
		if !c.Passed {
			return false
		}
	}
	return true
}

// ShowResult carries rendered proof text, one line per element. When no
// ID was requested it carries the persisted proof ids instead.
type ShowResult struct {
	ID     string   `json:"id,omitempty"`
	Lines  []string `json:"lines,omitempty"`
	Proofs []string `json:"proofs,omitempty"`
}

// ViewResult is returned once the viewer exits.
type ViewResult struct {
	ID string `json:"id"`
}

// PruneResult reports how many nodes were removed.
type PruneResult struct {
	ID     string `json:"id"`
	NodeID int    `json:"node_id"`
	Pruned int    `json:"pruned"`
}

// RunResult is the final configuration of a concrete run.
type RunResult struct {
	Program string            `json:"program"`
	Start   string            `json:"start"`
	Depth   int               `json:"depth"`
	Cells   map[string]string `json:"cells"`
}

// HistoryResult lists ledger sessions, newest first.
type HistoryResult struct {
	Sessions []store.Session `json:"sessions"`
}

func (*BuildResult) isResult()    {}
func (*ProveResult) isResult()    {}
func (*ProveRawResult) isResult() {}
func (*ShowResult) isResult()     {}
func (*ViewResult) isResult()     {}
func (*PruneResult) isResult()    {}
func (*RunResult) isResult()      {}
func (*HistoryResult) isResult()  {}

func proveResult(r *proof.Record, origin proof.Origin) *ProveResult {
	return &ProveResult{
		Label:      r.ID,
		Verdict:    r.Verdict(),
		Passed:     r.Passed,
		Iterations: r.Iterations,
		Nodes:      len(r.Graph.Nodes),
		Origin:     origin,
		Summary:    r.Summary,
	}
}
