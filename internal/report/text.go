package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"testlint/internal/types"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func severityStyle(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeverityError:
		return errorStyle
	case types.SeverityWarning:
		return warningStyle
	}
	return infoStyle
}

// RenderText writes the human-readable summary: one line per finding in the
// deterministic report order, then per-rule counts.
func (r *Report) RenderText(w io.Writer) error {
	if len(r.Findings) == 0 {
		fmt.Fprintf(w, "testlint: %d files, %d test units, no findings\n", r.Files, r.Units)
		return nil
	}

	for _, f := range r.Findings {
		sev := severityStyle(f.Severity).Render(string(f.Severity))
		loc := dimStyle.Render(fmt.Sprintf("%s:%d", f.File, f.StartLine))
		fmt.Fprintf(w, "%s %s [%s] %s\n", sev, loc, f.RuleID, f.Message)
	}

	fmt.Fprintf(w, "\n%s\n", headerStyle.Render("Summary"))
	ids := make([]string, 0, len(r.RuleCounts))
	for id := range r.RuleCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %-34s %d\n", id, r.RuleCounts[id])
	}
	fmt.Fprintf(w, "  %-34s %d files, %d units, %d findings\n", "total", r.Files, r.Units, len(r.Findings))
	return nil
}
