package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kompass/internal/claims"
	"github.com/roach88/kompass/internal/proof"
)

// branchingRecord builds 1->2, 1->3, 3->4, 3->5 with node 5 failing.
func branchingRecord(t *testing.T) *proof.Record {
	t.Helper()
	r := proof.NewRecord(claims.Claim{Label: "demo.main", Start: "main", Program: "/p/linked.smir.json"})
	g := &r.Graph

	n2 := g.AddNode(map[string]string{"k": "left", "#cursor": "bb2"})
	n3 := g.AddNode(map[string]string{"k": "right"})
	require.NoError(t, g.AddEdge(1, n3, 1, "!b"))
	require.NoError(t, g.AddEdge(1, n2, 1, "b"))
	n4 := g.AddNode(map[string]string{"k": "right.a"})
	n5 := g.AddNode(map[string]string{"k": "right.b\nline2"})
	require.NoError(t, g.AddEdge(n3, n4, 4, "c"))
	require.NoError(t, g.AddEdge(n3, n5, 4, ""))

	require.NoError(t, g.SetStatus(1, proof.StatusExpanded, ""))
	require.NoError(t, g.SetStatus(n2, proof.StatusProved, ""))
	require.NoError(t, g.SetStatus(n3, proof.StatusExpanded, ""))
	require.NoError(t, g.SetStatus(n4, proof.StatusProved, ""))
	require.NoError(t, g.SetStatus(n5, proof.StatusFailing, "assertion failed"))
	r.Iterations = 4
	r.Refresh()
	return r
}

func assertGolden(t *testing.T, name string, lines []string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(strings.Join(lines, "\n")+"\n"))
}

func TestShow_Summary(t *testing.T) {
	assertGolden(t, "show_summary", Show(branchingRecord(t), Options{}))
}

func TestShow_Full(t *testing.T) {
	assertGolden(t, "show_full", Show(branchingRecord(t), Options{Full: true}))
}

func TestShow_AfterPrune(t *testing.T) {
	r := branchingRecord(t)
	n, err := r.Graph.Prune(3)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	r.Refresh()

	lines := Show(r, Options{})
	assert.Equal(t, 2, CountNodes(lines))
	assertGolden(t, "show_pruned", lines)
}

func TestShow_Deterministic(t *testing.T) {
	r := branchingRecord(t)
	first := Show(r, Options{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Show(r, Options{}))
	}
}

func TestShow_SuppressesBookkeeping(t *testing.T) {
	r := branchingRecord(t)

	summary := strings.Join(Show(r, Options{}), "\n")
	assert.NotContains(t, summary, "#cursor")
	assert.NotContains(t, summary, "#program")

	full := strings.Join(Show(r, Options{Full: true}), "\n")
	assert.Contains(t, full, "#cursor: bb2")
}

func TestShow_Omit(t *testing.T) {
	lines := Show(branchingRecord(t), Options{Omit: []string{"k"}})
	for _, l := range lines {
		assert.False(t, strings.HasPrefix(strings.TrimSpace(l), "k:"), "omitted cell printed: %q", l)
	}
}

func TestShow_DiamondBackReference(t *testing.T) {
	r := proof.NewRecord(claims.Claim{Label: "diamond", Start: "main"})
	g := &r.Graph
	a := g.AddNode(nil)
	b := g.AddNode(nil)
	join := g.AddNode(nil)
	require.NoError(t, g.AddEdge(1, a, 1, ""))
	require.NoError(t, g.AddEdge(1, b, 1, ""))
	require.NoError(t, g.AddEdge(a, join, 1, ""))
	require.NoError(t, g.AddEdge(b, join, 1, ""))

	lines := Show(r, Options{})
	assert.Equal(t, 4, CountNodes(lines))
	assert.Contains(t, strings.Join(lines, "\n"), "(4) see above")
}

func TestCountNodes(t *testing.T) {
	lines := []string{
		"Proof: x",
		"(1) pending init",
		"  start: (not a node)",
		"    (2) proved",
		"    (2) see above",
		"(x) nope",
	}
	assert.Equal(t, 2, CountNodes(lines))
}

func TestStyled_KeepsText(t *testing.T) {
	lines := Show(branchingRecord(t), Options{})
	styled := Styled(lines)
	require.Len(t, styled, len(lines))
	for i := range lines {
		assert.Equal(t, lines[i], ansi.ReplaceAllString(styled[i], ""))
	}
}

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.False(t, IsTerminal(nil))
}

func TestOrder(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Order(branchingRecord(t)))
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func TestModel_Navigation(t *testing.T) {
	m := sized(t, NewModel(branchingRecord(t), false))
	assert.Equal(t, 1, m.Selected())

	next, _ := m.Update(key("j"))
	m = next.(Model)
	assert.Equal(t, 2, m.Selected())

	next, _ = m.Update(key("G"))
	m = next.(Model)
	assert.Equal(t, 5, m.Selected())
	assert.Contains(t, m.Detail(), "Reason: assertion failed")

	next, _ = m.Update(key("j"))
	m = next.(Model)
	assert.Equal(t, 5, m.Selected(), "cursor stops at the last node")

	next, _ = m.Update(key("g"))
	m = next.(Model)
	next, _ = m.Update(key("k"))
	m = next.(Model)
	assert.Equal(t, 1, m.Selected(), "cursor stops at the first node")
}

func TestModel_ToggleFull(t *testing.T) {
	m := sized(t, NewModel(branchingRecord(t), false))
	assert.NotContains(t, m.Detail(), "#program")

	next, _ := m.Update(key("f"))
	m = next.(Model)
	assert.True(t, m.Full())
	assert.Contains(t, m.Detail(), "#program: /p/linked.smir.json")
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, NewModel(branchingRecord(t), false))
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_Reload(t *testing.T) {
	m := sized(t, NewModel(branchingRecord(t), false))
	next, _ := m.Update(key("j"))
	m = next.(Model)
	require.Equal(t, 2, m.Selected())

	pruned := branchingRecord(t)
	_, err := pruned.Graph.Prune(3)
	require.NoError(t, err)

	next, _ = m.Update(RecordReloadedMsg{Record: pruned})
	m = next.(Model)
	assert.Equal(t, 2, m.Selected(), "selection survives reload")
	assert.Contains(t, m.View(), "reloaded")

	next, _ = m.Update(RecordReloadedMsg{Err: errors.New("corrupt")})
	m = next.(Model)
	assert.Contains(t, m.View(), "reload failed: corrupt")
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := NewModel(branchingRecord(t), false)
	assert.Equal(t, "Loading...\n", m.View())
}

func TestTUI_RejectsNonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	err = TUI{}.View(context.Background(), ViewConfig{Record: branchingRecord(t), Output: f})
	assert.ErrorIs(t, err, ErrNotTerminal)
}

func TestTUI_QuitsOnInput(t *testing.T) {
	var out bytes.Buffer
	cfg := ViewConfig{
		Record: branchingRecord(t),
		Input:  strings.NewReader("q"),
		Output: &out,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, TUI{}.View(ctx, cfg))
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proof.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := NewWatcher(path, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{}, 10)
	go w.Run(ctx, func() { changes <- struct{}{} })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-changes:
		t.Fatal("burst reported more than once")
	case <-time.After(300 * time.Millisecond):
	}
}
