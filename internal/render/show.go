// Package render turns persisted proof records into text and serves the
// interactive viewer over them.
package render

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/kompass/internal/proof"
)

// Options controls how much of each node is printed.
type Options struct {
	// Full prints every cell, including bookkeeping cells.
	Full bool

	// Omit lists cell names never printed in summarized mode.
	Omit []string
}

// IsBookkeeping reports whether a cell is internal engine state such as the
// execution cursor. Bookkeeping cell names start with '#'.
func IsBookkeeping(name string) bool {
	return strings.HasPrefix(name, "#")
}

// Show renders r as a depth-first tree from the initial node. The output is
// deterministic: successors follow edge order and cells are sorted by name.
// Nodes reached a second time are printed as a back reference.
func Show(r *proof.Record, opts Options) []string {
	w := &showWriter{
		record: r,
		opts:   opts,
		seen:   make(map[int]bool, len(r.Graph.Nodes)),
	}

	verdict := string(r.Verdict())
	if r.Verdict() == proof.VerdictPending && r.Iterations > 0 {
		verdict = "bounded-incomplete"
	}
	w.line(0, "Proof: %s", r.ID)
	w.line(0, "Verdict: %s", verdict)
	w.line(0, "Nodes: %d  Edges: %d  Iterations: %d", len(r.Graph.Nodes), len(r.Graph.Edges), r.Iterations)
	w.blank()

	if _, ok := r.Graph.Node(r.Graph.Init); ok {
		w.node(0, r.Graph.Init)
	}

	var orphans []int
	for _, n := range r.Graph.Nodes {
		if !w.seen[n.ID] {
			orphans = append(orphans, n.ID)
		}
	}
	if len(orphans) > 0 {
		w.blank()
		w.line(0, "Unreachable:")
		for _, id := range orphans {
			w.node(1, id)
		}
	}

	w.blank()
	for _, group := range []struct {
		title    string
		statuses []proof.Status
	}{
		{"Pending", []proof.Status{proof.StatusPending}},
		{"Failing", []proof.Status{proof.StatusFailing, proof.StatusStuck}},
		{"Proved", []proof.Status{proof.StatusProved, proof.StatusVacuous}},
	} {
		w.line(0, "%s: %s", group.title, joinIDs(leaves(r, group.statuses...)))
	}
	return w.lines
}

type showWriter struct {
	record *proof.Record
	opts   Options
	seen   map[int]bool
	lines  []string
}

func (w *showWriter) line(depth int, format string, args ...any) {
	w.lines = append(w.lines, strings.Repeat("  ", depth)+fmt.Sprintf(format, args...))
}

func (w *showWriter) blank() {
	w.lines = append(w.lines, "")
}

func (w *showWriter) node(depth, id int) {
	n, ok := w.record.Graph.Node(id)
	if !ok {
		return
	}
	if w.seen[id] {
		w.line(depth, "(%d) see above", id)
		return
	}
	w.seen[id] = true

	header := fmt.Sprintf("(%d) %s", n.ID, n.Status)
	if id == w.record.Graph.Init {
		header += " init"
	}
	if n.Reason != "" {
		header += ": " + n.Reason
	}
	w.line(depth, "%s", header)

	for _, name := range cellNames(n.Cells, w.opts) {
		value := strings.Split(n.Cells[name], "\n")
		w.line(depth+1, "%s: %s", name, value[0])
		for _, cont := range value[1:] {
			w.line(depth+1, "%s  %s", strings.Repeat(" ", len(name)), cont)
		}
	}

	for _, e := range w.record.Graph.Successors(id) {
		edge := fmt.Sprintf("-> depth %d", e.Depth)
		if e.Condition != "" {
			edge += " if " + e.Condition
		}
		w.line(depth+1, "%s", edge)
		w.node(depth+2, e.Target)
	}
}

// cellNames returns the printable cell names of a node, sorted.
func cellNames(cells map[string]string, opts Options) []string {
	names := make([]string, 0, len(cells))
	for name := range cells {
		if !opts.Full && (IsBookkeeping(name) || slices.Contains(opts.Omit, name)) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// leaves returns the ids of live nodes without successors whose status is
// one of statuses.
func leaves(r *proof.Record, statuses ...proof.Status) []int {
	live := r.Graph.Live()
	var ids []int
	for _, n := range r.Graph.Nodes {
		if !live[n.ID] || !slices.Contains(statuses, n.Status) {
			continue
		}
		if len(r.Graph.Successors(n.ID)) == 0 {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

// CountNodes returns how many node headers lines holds. Back references
// are not counted.
func CountNodes(lines []string) int {
	count := 0
	for _, l := range lines {
		t := strings.TrimLeft(l, " ")
		if !strings.HasPrefix(t, "(") || strings.HasSuffix(t, "see above") {
			continue
		}
		if i := strings.IndexByte(t, ')'); i > 1 && isDigits(t[1:i]) {
			count++
		}
	}
	return count
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
