package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskdeck/internal/execution"
)

// StatsPaneModel shows execution counts and the active limits.
type StatsPaneModel struct {
	stats   execution.Stats
	limits  execution.Config
	width   int
	height  int
	focused bool
}

// NewStatsPaneModel creates an empty stats pane.
func NewStatsPaneModel() StatsPaneModel {
	return StatsPaneModel{}
}

// SetStats replaces the displayed numbers.
func (m *StatsPaneModel) SetStats(stats execution.Stats, limits execution.Config) {
	m.stats = stats
	m.limits = limits
}

// View renders the stats pane.
func (m StatsPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Executions")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	s := m.stats
	fmt.Fprintf(&b, "Active:    %s / %d\n", StyleStatusRunning.Render(fmt.Sprint(s.Active)), m.limits.MaxConcurrentExecutions)
	fmt.Fprintf(&b, "Completed: %s\n", StyleStatusComplete.Render(fmt.Sprint(s.Completed)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprint(s.Failed)))
	fmt.Fprintf(&b, "Cancelled: %s\n", StyleStatusPending.Render(fmt.Sprint(s.Cancelled)))
	fmt.Fprintf(&b, "History:   %d max\n", m.limits.MaxHistorySize)

	if s.Total > 0 {
		barWidth := min(m.width-6, 40)
		completedWidth := (s.Completed * barWidth) / s.Total
		failedWidth := ((s.Failed + s.Cancelled) * barWidth) / s.Total
		activeWidth := (s.Active * barWidth) / s.Total
		restWidth := barWidth - completedWidth - failedWidth - activeWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, activeWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, restWidth)))
		fmt.Fprintf(&b, "[%s] %d\n", bar, s.Total)
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *StatsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *StatsPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
