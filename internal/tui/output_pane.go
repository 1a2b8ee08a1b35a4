package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/taskdeck/internal/events"
	"github.com/aristath/taskdeck/internal/framework"
)

// maxOutputLines bounds the lines kept per task.
const maxOutputLines = 5000

// taskOutput is the output of the latest execution of one task.
type taskOutput struct {
	execID string
	lines  []string
}

// OutputPaneModel shows the output of the selected task's latest execution.
type OutputPaneModel struct {
	outputs   map[string]*taskOutput // task ID -> latest execution output
	taskID    string                 // task being shown
	viewport  viewport.Model
	width     int
	height    int
	focused   bool
	updateTag int // for debouncing
}

// NewOutputPaneModel creates an empty output pane.
func NewOutputPaneModel() OutputPaneModel {
	return OutputPaneModel{
		outputs:  make(map[string]*taskOutput),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

func (o *taskOutput) add(line string) {
	o.lines = append(o.lines, line)
	if over := len(o.lines) - maxOutputLines; over > 0 {
		o.lines = o.lines[over:]
	}
}

// Update handles execution events, scrolling and debounce ticks.
func (m OutputPaneModel) Update(msg tea.Msg) (OutputPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.ExecutionStartedEvent:
		exec := msg.Execution
		m.outputs[exec.Task.ID] = &taskOutput{
			execID: exec.ID,
			lines:  []string{fmt.Sprintf("[%s] %s started at %s", exec.ID, exec.Task.ID, exec.StartTime.Format(time.TimeOnly))},
		}
		if exec.Task.ID == m.taskID {
			m.updateViewportContent()
		}

	case events.ExecutionOutputEvent:
		out, ok := m.outputs[msg.Task]
		if !ok || out.execID != msg.ExecutionID {
			break
		}
		line := msg.Line
		if msg.Stream == framework.StreamStderr {
			line = StyleHelp.Render(line)
		}
		out.add(line)
		if msg.Task == m.taskID {
			m.updateTag++
			tag := m.updateTag
			return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
				return tickMsg{tag: tag}
			})
		}

	case events.ExecutionStateChangedEvent:
		exec := msg.Execution
		out, ok := m.outputs[exec.Task.ID]
		if !ok || out.execID != exec.ID || !exec.Status.Terminal() {
			break
		}
		footer := fmt.Sprintf("\n[%s in %v]", exec.Status, exec.Duration().Round(time.Millisecond))
		if exec.Error != "" {
			footer = fmt.Sprintf("\n[%s: %s]", exec.Status, exec.Error)
		}
		out.add(footer)
		if exec.Task.ID == m.taskID {
			m.updateViewportContent()
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// ShowTask switches the pane to the given task.
func (m *OutputPaneModel) ShowTask(id string) {
	if id == m.taskID {
		return
	}
	m.taskID = id
	m.updateViewportContent()
}

func (m *OutputPaneModel) updateViewportContent() {
	out, ok := m.outputs[m.taskID]
	switch {
	case m.taskID == "":
		m.viewport.SetContent("Select a task to see its output.")
	case !ok:
		m.viewport.SetContent(fmt.Sprintf("%s has not run yet. Press enter to run it.", m.taskID))
	default:
		m.viewport.SetContent(strings.Join(out.lines, "\n"))
		m.viewport.GotoBottom()
	}
}

// View renders the output pane.
func (m OutputPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := "Output"
	if m.taskID != "" {
		title = "Output: " + m.taskID
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(StyleTitle.Render(title) + "\n" + m.viewport.View())
}

// SetSize updates the pane dimensions.
func (m *OutputPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-4, 3)
}

// SetFocused updates the focus state.
func (m *OutputPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
