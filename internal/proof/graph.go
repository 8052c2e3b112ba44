package proof

import (
	"errors"
	"fmt"
	"slices"
)

// Status is the exploration state of a single proof-graph node.
type Status string

const (
	// StatusPending nodes are on the frontier and still need exploring.
	StatusPending Status = "pending"

	// StatusExpanded nodes have successors in the graph.
	StatusExpanded Status = "expanded"

	// StatusProved nodes imply the claim's target.
	StatusProved Status = "proved"

	// StatusFailing nodes violate an assertion on a reachable path.
	StatusFailing Status = "failing"

	// StatusStuck nodes cannot be rewritten further and do not imply the target.
	StatusStuck Status = "stuck"

	// StatusVacuous nodes sit on an infeasible path and count as discharged.
	StatusVacuous Status = "vacuous"
)

func (s Status) valid() bool {
	return s == StatusPending || s == StatusExpanded || s.IsTerminal()
}

// IsTerminal reports whether a node in this status will never be explored again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusProved, StatusFailing, StatusStuck, StatusVacuous:
		return true
	}
	return false
}

// Node is a symbolic execution state. Cells hold the engine's rendering of
// each configuration cell; names starting with '#' are bookkeeping cells.
type Node struct {
	ID     int               `json:"id"`
	Status Status            `json:"status"`
	Cells  map[string]string `json:"cells"`
	Reason string            `json:"reason,omitempty"`
}

// Edge links a node to one of its successors.
type Edge struct {
	Source    int    `json:"source"`
	Target    int    `json:"target"`
	Depth     int    `json:"depth"`
	Condition string `json:"condition,omitempty"`
}

// Graph is the explored part of a claim's state space. Nodes and Edges are
// kept sorted so that serialization is stable.
type Graph struct {
	Init   int    `json:"init"`
	NextID int    `json:"next_id"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// ErrUnknownNode is wrapped by errors reporting a node id the graph does not hold.
var ErrUnknownNode = errors.New("unknown node")

// UnknownNodeError reports a node id missing from the graph.
type UnknownNodeError struct {
	ID int
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("node %d not found in proof graph", e.ID)
}

func (e *UnknownNodeError) Unwrap() error {
	return ErrUnknownNode
}

// NewGraph returns a graph holding only a pending initial node.
func NewGraph(initCells map[string]string) Graph {
	g := Graph{NextID: 1, Nodes: []Node{}, Edges: []Edge{}}
	g.Init = g.AddNode(initCells)
	return g
}

// AddNode appends a pending node and returns its id.
func (g *Graph) AddNode(cells map[string]string) int {
	if g.NextID < 1 {
		g.NextID = 1
	}
	id := g.NextID
	g.NextID++
	if cells == nil {
		cells = map[string]string{}
	}
	g.Nodes = append(g.Nodes, Node{ID: id, Status: StatusPending, Cells: cells})
	return id
}

// AddEdge records a transition from source to target.
func (g *Graph) AddEdge(source, target, depth int, condition string) error {
	if g.index(source) < 0 {
		return &UnknownNodeError{ID: source}
	}
	if g.index(target) < 0 {
		return &UnknownNodeError{ID: target}
	}
	g.Edges = append(g.Edges, Edge{Source: source, Target: target, Depth: depth, Condition: condition})
	g.sortEdges()
	return nil
}

// Node returns a pointer to the node with the given id.
func (g *Graph) Node(id int) (*Node, bool) {
	i := g.index(id)
	if i < 0 {
		return nil, false
	}
	return &g.Nodes[i], true
}

// SetStatus updates a node's status and reason.
func (g *Graph) SetStatus(id int, status Status, reason string) error {
	n, ok := g.Node(id)
	if !ok {
		return &UnknownNodeError{ID: id}
	}
	n.Status = status
	n.Reason = reason
	return nil
}

// Successors returns the outgoing edges of a node in target order.
func (g *Graph) Successors(id int) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Frontier returns the ids of pending nodes reachable from the initial
// node, lowest first.
func (g *Graph) Frontier() []int {
	live := g.reachable(-1)
	var ids []int
	for _, n := range g.Nodes {
		if n.Status == StatusPending && live[n.ID] {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Count returns how many nodes reachable from the initial node have the
// given status.
func (g *Graph) Count(status Status) int {
	return g.counts()[status]
}

// Live returns the set of nodes reachable from the initial node.
func (g *Graph) Live() map[int]bool {
	return g.reachable(-1)
}

func (g *Graph) counts() map[Status]int {
	live := g.reachable(-1)
	counts := make(map[Status]int, 6)
	for _, n := range g.Nodes {
		if live[n.ID] {
			counts[n.Status]++
		}
	}
	return counts
}

// Prune removes id and every node reachable from the initial node only
// through it, along with their edges, and returns how many nodes were
// removed. Pruning the initial node removes everything reachable from it.
//
// A surviving node that loses a successor loses all of its outgoing edges
// and becomes pending again, so a split is re-explored as a whole. Its
// other successors stay in the graph but are no longer reachable, and
// unreachable nodes take no part in the verdict or the frontier. An unknown
// id fails without touching the graph.
func (g *Graph) Prune(id int) (int, error) {
	if g.index(id) < 0 {
		return 0, &UnknownNodeError{ID: id}
	}

	before := g.reachable(-1)
	after := map[int]bool{}
	if id != g.Init {
		after = g.reachable(id)
	}

	removed := map[int]bool{id: true}
	for n := range before {
		if !after[n] {
			removed[n] = true
		}
	}

	cut := map[int]bool{}
	for _, e := range g.Edges {
		if removed[e.Target] && !removed[e.Source] {
			cut[e.Source] = true
		}
	}

	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !removed[n.ID] {
			nodes = append(nodes, n)
		}
	}

	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if removed[e.Source] || removed[e.Target] || cut[e.Source] {
			continue
		}
		edges = append(edges, e)
	}

	g.Nodes = nodes
	g.Edges = edges

	for src := range cut {
		_ = g.SetStatus(src, StatusPending, "")
	}
	return len(removed), nil
}

// ErrInvalidGraph is wrapped by every error Validate returns.
var ErrInvalidGraph = errors.New("invalid proof graph")

// Validate checks the structural invariants of a normalized graph: node ids
// are positive and unique, statuses are known, edges join existing nodes and
// the initial node exists unless the graph is empty.
func (g *Graph) Validate() error {
	for i, n := range g.Nodes {
		if n.ID < 1 {
			return fmt.Errorf("%w: node id %d is not positive", ErrInvalidGraph, n.ID)
		}
		if i > 0 && g.Nodes[i-1].ID == n.ID {
			return fmt.Errorf("%w: duplicate node %d", ErrInvalidGraph, n.ID)
		}
		if !n.Status.valid() {
			return fmt.Errorf("%w: node %d has unknown status %q", ErrInvalidGraph, n.ID, n.Status)
		}
	}
	if len(g.Nodes) > 0 && g.index(g.Init) < 0 {
		return fmt.Errorf("%w: initial node %d is missing", ErrInvalidGraph, g.Init)
	}
	for _, e := range g.Edges {
		if g.index(e.Source) < 0 || g.index(e.Target) < 0 {
			return fmt.Errorf("%w: edge %d -> %d joins a missing node", ErrInvalidGraph, e.Source, e.Target)
		}
	}
	return nil
}

// reachable returns the nodes reachable from Init without passing through skip.
func (g *Graph) reachable(skip int) map[int]bool {
	seen := map[int]bool{}
	if g.index(g.Init) < 0 || g.Init == skip {
		return seen
	}

	adj := make(map[int][]int, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	stack := []int{g.Init}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] || n == skip {
			continue
		}
		seen[n] = true
		stack = append(stack, adj[n]...)
	}
	return seen
}

func (g *Graph) index(id int) int {
	i, found := slices.BinarySearchFunc(g.Nodes, id, func(n Node, id int) int {
		return n.ID - id
	})
	if !found {
		return -1
	}
	return i
}

func (g *Graph) sortEdges() {
	slices.SortStableFunc(g.Edges, func(a, b Edge) int {
		if a.Source != b.Source {
			return a.Source - b.Source
		}
		return a.Target - b.Target
	})
}

// normalize restores the sorted-order invariant after decoding.
func (g *Graph) normalize() {
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	slices.SortStableFunc(g.Nodes, func(a, b Node) int { return a.ID - b.ID })
	for i := range g.Nodes {
		if g.Nodes[i].Cells == nil {
			g.Nodes[i].Cells = map[string]string{}
		}
		if g.Nodes[i].ID >= g.NextID {
			g.NextID = g.Nodes[i].ID + 1
		}
	}
	g.sortEdges()
}
