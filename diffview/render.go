package diffview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)

	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	addStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

// RenderPanel formats a proposed change as a bordered terminal panel with
// the diff lines colored by kind. It is purely presentational; the verdict
// comes from the approval gate.
func RenderPanel(operation, path, description string, d Diff) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Proposed Edit"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("file: "))
	b.WriteString(path)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("operation: "))
	b.WriteString(operation)
	if description != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("change: "))
		b.WriteString(description)
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(d.Summary))
	if d.Unified != "" {
		b.WriteString("\n\n")
		b.WriteString(colorize(d.Unified))
	}
	return panelStyle.Render(b.String())
}

func colorize(unified string) string {
	lines := strings.Split(strings.TrimRight(unified, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			out = append(out, labelStyle.Render(line))
		case strings.HasPrefix(line, "@@"):
			out = append(out, hunkStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			out = append(out, addStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			out = append(out, removeStyle.Render(line))
		default:
			out = append(out, contextStyle.Render(line))
		}
	}
	return strings.Join(out, "\n")
}
