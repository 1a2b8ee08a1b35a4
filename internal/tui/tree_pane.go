package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/task"
)

// runResultMsg reports the outcome of an ExecuteTask call made from the tree.
type runResultMsg struct {
	taskID string
	exec   execution.Execution
	err    error
}

func runTaskCmd(svc TaskService, id string) tea.Cmd {
	return func() tea.Msg {
		exec, err := svc.ExecuteTask(context.Background(), id, execution.Options{})
		return runResultMsg{taskID: id, exec: exec, err: err}
	}
}

// TreePaneModel shows the task catalog as a collapsible tree with live status.
type TreePaneModel struct {
	svc       TaskService
	tasks     []task.Task
	rows      []treeNode
	collapsed map[string]bool
	selected  int
	offset    int
	width     int
	height    int
	focused   bool
}

// NewTreePaneModel creates a tree pane reading statuses from svc.
func NewTreePaneModel(svc TaskService) TreePaneModel {
	return TreePaneModel{svc: svc, collapsed: make(map[string]bool)}
}

// SetTasks replaces the catalog shown, keeping the selection on the same row if it survives.
func (m *TreePaneModel) SetTasks(tasks []task.Task) {
	prev := m.selectedKey()
	m.tasks = tasks
	m.rebuild(prev)
}

func (m *TreePaneModel) rebuild(keepKey string) {
	m.rows = buildTree(m.tasks, m.collapsed)
	m.selected = min(m.selected, max(len(m.rows)-1, 0))
	for i, r := range m.rows {
		if r.key == keepKey {
			m.selected = i
			break
		}
	}
	m.scrollToSelection()
}

func (m TreePaneModel) selectedKey() string {
	if m.selected >= 0 && m.selected < len(m.rows) {
		return m.rows[m.selected].key
	}
	return ""
}

// SelectedTaskID returns the task under the cursor, or the first task of the selected group.
func (m TreePaneModel) SelectedTaskID() string {
	if m.selected < 0 || m.selected >= len(m.rows) || len(m.rows[m.selected].taskIDs) == 0 {
		return ""
	}
	return m.rows[m.selected].taskIDs[0]
}

// Update handles navigation, toggling and running.
func (m TreePaneModel) Update(msg tea.Msg) (TreePaneModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused || len(m.rows) == 0 {
		return m, nil
	}

	switch key.String() {
	case KeyJ, KeyDown:
		if m.selected < len(m.rows)-1 {
			m.selected++
			m.scrollToSelection()
		}
	case KeyK, KeyUp:
		if m.selected > 0 {
			m.selected--
			m.scrollToSelection()
		}
	case KeyEnter, KeySpace:
		row := m.rows[m.selected]
		if row.kind == nodeTask {
			return m, runTaskCmd(m.svc, row.key)
		}
		m.collapsed[row.key] = !m.collapsed[row.key]
		m.rebuild(row.key)
	}
	return m, nil
}

func (m *TreePaneModel) visibleRows() int {
	return max(m.height-6, 1) // borders, title and footer
}

func (m *TreePaneModel) scrollToSelection() {
	n := m.visibleRows()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+n {
		m.offset = m.selected - n + 1
	}
}

func (m TreePaneModel) rowStatus(r treeNode) task.Status {
	if r.kind == nodeTask {
		s, err := m.svc.GetTaskStatus(r.key)
		if err != nil {
			return task.StatusIdle
		}
		return s
	}
	return m.svc.GroupStatus(r.taskIDs...)
}

// View renders the tree pane.
func (m TreePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(m.width-4, lipgloss.Width(title))))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(StyleStatusPending.Render("No tasks found. Press r to refresh."))
	}

	end := min(m.offset+m.visibleRows(), len(m.rows))
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		marker := "  "
		if r.kind != nodeTask {
			marker = "▾ "
			if m.collapsed[r.key] {
				marker = "▸ "
			}
		}

		status := m.rowStatus(r)
		label := truncateLabel(r.label, m.width-10-2*r.depth)
		if i != m.selected {
			label = rowStyle(status).Render(label)
		}

		line := fmt.Sprintf("%s%s%s %s", strings.Repeat("  ", r.depth), marker, StatusIcon(status), label)
		if i == m.selected {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.selected < len(m.rows) {
		r := m.rows[m.selected]
		b.WriteString("\n")
		b.WriteString(StyleHelp.Render(task.Describe(m.rowStatus(r), len(r.taskIDs))))
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
func (m *TreePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.scrollToSelection()
}

// SetFocused updates the focus state.
func (m *TreePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

// truncateLabel shortens label to limit terminal cells, ending in "...".
// Limits too small to hold anything leave the label alone.
func truncateLabel(label string, limit int) string {
	if limit <= 3 || ansi.StringWidth(label) <= limit {
		return label
	}
	return ansi.Truncate(label, limit, "...")
}
