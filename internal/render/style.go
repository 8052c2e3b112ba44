package render

import (
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/roach88/kompass/internal/proof"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleEdge    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleCell    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	styleCursor  = lipgloss.NewStyle().Reverse(true)
	styleFooter  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyles = map[proof.Status]lipgloss.Style{
		proof.StatusPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		proof.StatusExpanded: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		proof.StatusProved:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		proof.StatusVacuous:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		proof.StatusFailing:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		proof.StatusStuck:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

var nodeHeader = regexp.MustCompile(`^(\s*)\((\d+)\) (\w+)(.*)$`)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Badge renders a node status as a colored label.
func Badge(s proof.Status) string {
	st, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return st.Render(string(s))
}

// Styled returns a copy of lines from Show with status badges, edges and
// headers colored. The text content is unchanged.
func Styled(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = styleLine(l)
	}
	return out
}

func styleLine(l string) string {
	trimmed := strings.TrimLeft(l, " ")
	indent := l[:len(l)-len(trimmed)]

	if m := nodeHeader.FindStringSubmatch(l); m != nil {
		return m[1] + "(" + m[2] + ") " + Badge(proof.Status(m[3])) + m[4]
	}
	switch {
	case strings.HasPrefix(trimmed, "->"):
		return indent + styleEdge.Render(trimmed)
	case strings.HasPrefix(l, "Proof:"), strings.HasPrefix(l, "Verdict:"):
		return styleTitle.Render(l)
	case indent != "" && trimmed != "":
		return indent + styleCell.Render(trimmed)
	}
	return l
}
