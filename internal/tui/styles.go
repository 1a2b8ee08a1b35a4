package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskdeck/internal/task"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusSkipped = lipgloss.NewStyle().
				Foreground(lipgloss.Color("cyan"))

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	// Tree rows: idle rows recede, rows with something to report stand out
	StyleIdleRow = lipgloss.NewStyle().
			Faint(true)

	StyleHighlightedRow = lipgloss.NewStyle().
				Bold(true)
)

// rowStyle picks the tree row style for a task or group status.
func rowStyle(s task.Status) lipgloss.Style {
	if task.Highlighted(s) {
		return StyleHighlightedRow
	}
	return StyleIdleRow
}

// StatusIcon returns a styled indicator for s.
func StatusIcon(s task.Status) string {
	switch s {
	case task.StatusRunning:
		return StyleStatusRunning.Render("●")
	case task.StatusPending:
		return StyleStatusRunning.Render("◌")
	case task.StatusCompleted:
		return StyleStatusComplete.Render("✓")
	case task.StatusFailed:
		return StyleStatusFailed.Render("✗")
	case task.StatusCancelled:
		return StyleStatusFailed.Render("⊘")
	case task.StatusSkipped:
		return StyleStatusSkipped.Render("↷")
	default:
		return StyleStatusPending.Render("○")
	}
}
