package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/toolcheck"
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}).
		Bold(true)
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}).
			Bold(true)
	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"})
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
)

// StatusBadge renders an analysis status with its color.
func StatusBadge(s analysis.Status) string {
	label := string(s)
	if label == "" {
		label = "UNKNOWN"
	}
	switch s {
	case analysis.StatusCompleted:
		return okStyle.Render(label)
	case analysis.StatusFailed:
		return failStyle.Render(label)
	case analysis.StatusPending, analysis.StatusRunning:
		return busyStyle.Render(label)
	}
	return mutedStyle.Render(label)
}

// JobLine renders a job status as one line.
func JobLine(st analysis.JobStatus) string {
	return fmt.Sprintf("%s %s", StatusBadge(st.Status), st.Message)
}

// ToolLine renders one toolcheck result.
func ToolLine(st toolcheck.Status) string {
	mark := okStyle.Render("✓")
	switch {
	case st.OK:
	case st.Optional:
		mark = mutedStyle.Render("-")
	default:
		mark = failStyle.Render("✗")
	}
	detail := st.Version
	if detail == "" {
		detail = st.Message
	}
	if st.Path != "" {
		detail += mutedStyle.Render("  " + st.Path)
	}
	return fmt.Sprintf("%s %-18s %s", mark, st.Name, detail)
}
