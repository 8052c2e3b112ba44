package engine

import "context"

// Engine is the external rewriting engine. Each Open starts a scoped
// session against one program; the session must be closed on every path.
type Engine interface {
	Open(ctx context.Context, req OpenRequest) (Session, error)
}

// Session is one live connection to the engine.
type Session interface {
	// Step explores at most req.Depth rewrite steps from a single node and
	// reports what it found.
	Step(ctx context.Context, req StepRequest) (StepResult, error)

	// Run executes a program concretely from a start symbol.
	Run(ctx context.Context, req RunRequest) (RunResult, error)

	Close() error
}

// OpenRequest names the program and claim a session works on. When
// BugReport is set the session transcript is appended to that file.
type OpenRequest struct {
	Program   string `json:"program"`
	Label     string `json:"label,omitempty"`
	Start     string `json:"start,omitempty"`
	BugReport string `json:"-"`
}

// StepRequest asks the engine to extend one frontier node. Depth 0 means
// no bound.
type StepRequest struct {
	Node  int               `json:"node"`
	Cells map[string]string `json:"cells"`
	Depth int               `json:"depth,omitempty"`
}

// StepKind classifies a step outcome.
type StepKind string

const (
	// StepStep: the node rewrote to exactly one successor.
	StepStep StepKind = "step"

	// StepBranch: the node split into several guarded successors.
	StepBranch StepKind = "branch"

	// StepProved: the node implies the claim's target.
	StepProved StepKind = "proved"

	// StepFailing: the node violates an assertion.
	StepFailing StepKind = "failing"

	// StepStuck: the node cannot rewrite and does not imply the target.
	StepStuck StepKind = "stuck"

	// StepVacuous: the node's path condition is unsatisfiable.
	StepVacuous StepKind = "vacuous"
)

// Successor is a state reached from the stepped node. Condition is set
// when the engine branched.
type Successor struct {
	Cells     map[string]string `json:"cells"`
	Depth     int               `json:"depth"`
	Condition string            `json:"condition,omitempty"`
}

// StepResult is the engine's answer to a StepRequest.
type StepResult struct {
	Kind       StepKind    `json:"kind"`
	Successors []Successor `json:"successors,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// RunRequest executes a program concretely. Depth 0 means no bound.
type RunRequest struct {
	Start string `json:"start"`
	Depth int    `json:"depth,omitempty"`
}

// RunResult is the final configuration of a concrete run.
type RunResult struct {
	Cells map[string]string `json:"cells"`
	Depth int               `json:"depth"`
}
