// Package testutil provides in-process stand-ins for the external engine,
// the build tool and the wall clock so orchestration can be tested
// deterministically.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/kompass/internal/engine"
)

// Script maps node ids of one proof to the engine's answer for that node.
type Script map[int]engine.StepResult

// ScriptedEngine answers Step requests from per-label scripts. Nodes
// without a script entry come back stuck.
//
// Every session opened and closed is counted so tests can assert that the
// session is released on every path.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ScriptedEngine struct {
	mu sync.Mutex

	scripts map[string]Script
	runs    map[string]engine.RunResult

	// OpenErr fails every Open when set.
	OpenErr error
	// StepErr fails Step for the given node (any label) when set.
	StepErr     error
	StepErrNode int
	// CloseErr fails every Close when set.
	CloseErr error

	opens    []engine.OpenRequest
	closes   int
	steps    []engine.StepRequest
	runCalls []engine.RunRequest
}

// NewScriptedEngine creates an engine with no scripts.
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{
		scripts: make(map[string]Script),
		runs:    make(map[string]engine.RunResult),
	}
}

// WithScript registers the script for a proof label.
func (e *ScriptedEngine) WithScript(label string, s Script) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[label] = s
	return e
}

// WithRun registers the concrete run result for a start symbol.
func (e *ScriptedEngine) WithRun(start string, res engine.RunResult) *ScriptedEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[start] = res
	return e
}

// Open implements engine.Engine.
func (e *ScriptedEngine) Open(_ context.Context, req engine.OpenRequest) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	e.opens = append(e.opens, req)
	return &scriptedSession{engine: e, label: req.Label}, nil
}

// Opens returns the open requests seen so far.
func (e *ScriptedEngine) Opens() []engine.OpenRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.OpenRequest(nil), e.opens...)
}

// Closes returns how many sessions were closed.
func (e *ScriptedEngine) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// Steps returns the step requests seen so far.
func (e *ScriptedEngine) Steps() []engine.StepRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.StepRequest(nil), e.steps...)
}

// Runs returns the run requests seen so far.
func (e *ScriptedEngine) Runs() []engine.RunRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.RunRequest(nil), e.runCalls...)
}

type scriptedSession struct {
	engine *ScriptedEngine
	label  string
	closed bool
}

func (s *scriptedSession) Step(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.StepResult{}, err
	}
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.closed {
		return engine.StepResult{}, errors.New("step on closed session")
	}
	e.steps = append(e.steps, req)
	if e.StepErr != nil && (e.StepErrNode == 0 || e.StepErrNode == req.Node) {
		return engine.StepResult{}, e.StepErr
	}

	res, ok := e.scripts[s.label][req.Node]
	if !ok {
		return engine.StepResult{Kind: engine.StepStuck, Reason: fmt.Sprintf("no script for node %d", req.Node)}, nil
	}
	return cloneResult(res), nil
}

func (s *scriptedSession) Run(ctx context.Context, req engine.RunRequest) (engine.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.RunResult{}, err
	}
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runCalls = append(e.runCalls, req)
	res, ok := e.runs[req.Start]
	if !ok {
		return engine.RunResult{}, fmt.Errorf("no run scripted for %q", req.Start)
	}
	return engine.RunResult{Cells: maps.Clone(res.Cells), Depth: res.Depth}, nil
}

func (s *scriptedSession) Close() error {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.closed {
		s.closed = true
		e.closes++
	}
	return e.CloseErr
}

func cloneResult(res engine.StepResult) engine.StepResult {
	out := engine.StepResult{Kind: res.Kind, Reason: res.Reason}
	for _, succ := range res.Successors {
		out.Successors = append(out.Successors, engine.Successor{
			Cells:     maps.Clone(succ.Cells),
			Depth:     succ.Depth,
			Condition: succ.Condition,
		})
	}
	return out
}

// Next builds a single-successor step answer.
func Next(depth int, cells map[string]string) engine.StepResult {
	return engine.StepResult{
		Kind:       engine.StepStep,
		Successors: []engine.Successor{{Cells: cells, Depth: depth}},
	}
}

// Branch builds a branching answer with one successor per condition.
func Branch(succs ...engine.Successor) engine.StepResult {
	return engine.StepResult{Kind: engine.StepBranch, Successors: succs}
}

// Proved builds a proved answer.
func Proved() engine.StepResult {
	return engine.StepResult{Kind: engine.StepProved}
}

// Failing builds a failing answer with a reason.
func Failing(reason string) engine.StepResult {
	return engine.StepResult{Kind: engine.StepFailing, Reason: reason}
}

// PassingScript proves in two iterations: node 1 steps to node 2, which
// is proved.
func PassingScript() Script {
	return Script{
		1: Next(3, map[string]string{"k": "#return", "#cursor": "bb1"}),
		2: Proved(),
	}
}

// FailingScript branches at node 1; node 2 proves and node 3 hits an
// assertion.
func FailingScript() Script {
	return Script{
		1: Branch(
			engine.Successor{Cells: map[string]string{"k": "ok"}, Depth: 2, Condition: "x <= 10"},
			engine.Successor{Cells: map[string]string{"k": "panic"}, Depth: 2, Condition: "x > 10"},
		),
		2: Proved(),
		3: Failing("assertion failed: x <= 10"),
	}
}

// BranchingScript builds the graph 1->2, 1->3, 3->4, 3->5 with every
// leaf proved.
func BranchingScript() Script {
	return Script{
		1: Branch(
			engine.Successor{Cells: map[string]string{"k": "left"}, Depth: 1, Condition: "b"},
			engine.Successor{Cells: map[string]string{"k": "right"}, Depth: 1, Condition: "!b"},
		),
		2: Proved(),
		3: Branch(
			engine.Successor{Cells: map[string]string{"k": "right.a"}, Depth: 4, Condition: "c"},
			engine.Successor{Cells: map[string]string{"k": "right.b"}, Depth: 4, Condition: "!c"},
		),
		4: Proved(),
		5: Proved(),
	}
}
