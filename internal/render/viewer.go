package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/kompass/internal/proof"
)

// ErrNotTerminal is returned when the viewer is asked to draw on something
// that is not a terminal.
var ErrNotTerminal = errors.New("view requires an interactive terminal; use show instead")

const (
	listWidth    = 28
	headerHeight = 2
	footerHeight = 1
)

// RecordReloadedMsg carries a freshly loaded record into a running viewer.
type RecordReloadedMsg struct {
	Record *proof.Record
	Err    error
}

// ViewConfig describes one viewer run.
type ViewConfig struct {
	Record *proof.Record
	Full   bool

	// WatchPath, when set with Reload, reloads the record whenever the
	// file changes.
	WatchPath string
	Reload    func() (*proof.Record, error)

	// Input and Output default to the process's stdin and stdout.
	Input  io.Reader
	Output io.Writer
}

// TUI runs the interactive viewer.
type TUI struct {
	Logger   *slog.Logger
	Debounce time.Duration
}

// View runs the viewer until the user quits or ctx is cancelled.
func (t TUI) View(ctx context.Context, cfg ViewConfig) error {
	if cfg.Record == nil {
		return errors.New("view: nil record")
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if f, ok := out.(*os.File); ok && !IsTerminal(f) {
		return ErrNotTerminal
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out), tea.WithAltScreen()}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	p := tea.NewProgram(NewModel(cfg.Record, cfg.Full), opts...)

	if cfg.WatchPath != "" && cfg.Reload != nil {
		w, err := NewWatcher(cfg.WatchPath, t.Debounce, t.Logger)
		if err != nil {
			return err
		}
		watchCtx, cancel := context.WithCancel(ctx)
		defer func() {
			cancel()
			w.Close()
		}()
		go w.Run(watchCtx, func() {
			r, err := cfg.Reload()
			p.Send(RecordReloadedMsg{Record: r, Err: err})
		})
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("view: %w", err)
	}
	return nil
}

// Model is the read-only bubbletea model of the viewer: a node list on the
// left and the selected node's detail in a scrollable viewport.
type Model struct {
	record *proof.Record
	order  []int
	cursor int
	full   bool
	status string

	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

// NewModel creates a viewer model positioned on the initial node.
func NewModel(r *proof.Record, full bool) Model {
	return Model{record: r, order: Order(r), full: full}
}

// Order returns node ids in the depth-first order Show prints them,
// followed by nodes unreachable from the initial node.
func Order(r *proof.Record) []int {
	seen := make(map[int]bool, len(r.Graph.Nodes))
	order := make([]int, 0, len(r.Graph.Nodes))
	var visit func(id int)
	visit = func(id int) {
		if seen[id] {
			return
		}
		if _, ok := r.Graph.Node(id); !ok {
			return
		}
		seen[id] = true
		order = append(order, id)
		for _, e := range r.Graph.Successors(id) {
			visit(e.Target)
		}
	}
	visit(r.Graph.Init)
	for _, n := range r.Graph.Nodes {
		visit(n.ID)
	}
	return order
}

// Selected returns the id of the node under the cursor, or 0 when the
// graph is empty.
func (m Model) Selected() int {
	if len(m.order) == 0 {
		return 0
	}
	return m.order[m.cursor]
}

// Full reports whether bookkeeping cells are shown.
func (m Model) Full() bool {
	return m.full
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.detailSize()
		if !m.ready {
			m.viewport = viewport.New(w, h)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = w
			m.viewport.Height = h
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c", "esc":
			return m, tea.Quit
		case "j", "down":
			m.move(1)
			return m, nil
		case "k", "up":
			m.move(-1)
			return m, nil
		case "g", "home":
			m.move(-len(m.order))
			return m, nil
		case "G", "end":
			m.move(len(m.order))
			return m, nil
		case "f":
			m.full = !m.full
			m.refresh()
			return m, nil
		}

	case RecordReloadedMsg:
		if msg.Err != nil {
			m.status = "reload failed: " + msg.Err.Error()
			return m, nil
		}
		if msg.Record != nil {
			selected := m.Selected()
			m.record = msg.Record
			m.order = Order(msg.Record)
			m.cursor = 0
			for i, id := range m.order {
				if id == selected {
					m.cursor = i
				}
			}
			m.status = "reloaded"
			m.refresh()
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) move(delta int) {
	if len(m.order) == 0 {
		return
	}
	m.cursor = max(0, min(len(m.order)-1, m.cursor+delta))
	m.status = ""
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.Detail())
	m.viewport.GotoTop()
}

func (m Model) detailSize() (int, int) {
	w := m.width - listWidth - 1
	h := m.height - headerHeight - footerHeight
	return max(w, 10), max(h, 1)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading...\n"
	}

	verdict := string(m.record.Verdict())
	header := styleTitle.Render(fmt.Sprintf("Proof %s", m.record.ID)) + "  " + verdict +
		fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.order))

	_, h := m.detailSize()
	list := lipgloss.NewStyle().Width(listWidth).Height(h).Render(m.list(h))
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", m.viewport.View())

	footer := "j/k move  f full  q quit"
	if m.full {
		footer = "j/k move  f summary  q quit"
	}
	if m.status != "" {
		footer += "  " + m.status
	}

	return header + "\n\n" + body + "\n" + styleFooter.Render(footer)
}

// list renders the visible window of the node list.
func (m Model) list(height int) string {
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(len(m.order), start+height)

	var b strings.Builder
	for i := start; i < end; i++ {
		n, _ := m.record.Graph.Node(m.order[i])
		line := fmt.Sprintf("(%d) %s", n.ID, Badge(n.Status))
		if i == m.cursor {
			line = styleCursor.Render(fmt.Sprintf("(%d) %s", n.ID, n.Status))
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Detail renders the selected node: status, reason, cells and edges.
func (m Model) Detail() string {
	id := m.Selected()
	n, ok := m.record.Graph.Node(id)
	if !ok {
		return "empty proof"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Node %d [%s]\n", n.ID, n.Status)
	if n.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", n.Reason)
	}

	b.WriteString("\nCells:\n")
	for _, name := range cellNames(n.Cells, Options{Full: m.full}) {
		fmt.Fprintf(&b, "  %s: %s\n", name, strings.ReplaceAll(n.Cells[name], "\n", "\n    "))
	}

	var preds []string
	for _, e := range m.record.Graph.Edges {
		if e.Target == id {
			preds = append(preds, fmt.Sprint(e.Source))
		}
	}
	if len(preds) > 0 {
		fmt.Fprintf(&b, "\nFrom: %s\n", strings.Join(preds, ", "))
	}
	if succ := m.record.Graph.Successors(id); len(succ) > 0 {
		b.WriteString("\nSuccessors:\n")
		for _, e := range succ {
			line := fmt.Sprintf("  -> %d depth %d", e.Target, e.Depth)
			if e.Condition != "" {
				line += " if " + e.Condition
			}
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
