// Package tui implements the terminal interface: a task tree with live status, the
// output of the selected task and execution stats.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskdeck/internal/events"
	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/task"
)

// TaskService is the part of the task manager the TUI uses.
type TaskService interface {
	GetAllTasks() []task.Task
	GetTaskStatus(id string) (task.Status, error)
	GroupStatus(ids ...string) task.Status
	ExecuteTask(ctx context.Context, id string, opts execution.Options) (execution.Execution, error)
	RefreshTasks(ctx context.Context) error
}

// ExecutionService is the part of the execution manager the TUI uses.
type ExecutionService interface {
	GetStats() execution.Stats
	Config() execution.Config
	SetMaxConcurrentExecutions(n int) error
	SetMaxHistorySize(n int) error
}

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTree PaneID = iota
	PaneOutput
	PaneStats
)

const paneCount = 3

// refreshDoneMsg reports the end of a catalog refresh started from the UI.
type refreshDoneMsg struct {
	err error
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	tasks        TaskService
	execs        ExecutionService
	treePane     TreePaneModel
	outputPane   OutputPaneModel
	statsPane    StatsPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
	showSettings bool
	status       string // one-line feedback under the panes
}

// New creates the TUI model. It subscribes to every topic of eventBus.
func New(tasks TaskService, execs ExecutionService, eventBus *events.EventBus, globalPath, projectPath string) Model {
	m := Model{
		tasks:        tasks,
		execs:        execs,
		treePane:     NewTreePaneModel(tasks),
		outputPane:   NewOutputPaneModel(),
		statsPane:    NewStatsPaneModel(),
		settingsPane: NewSettingsPaneModel(execs, globalPath, projectPath),
		focusedPane:  PaneTree,
		eventSub:     eventBus.SubscribeAll(1024),
	}
	m.treePane.SetTasks(tasks.GetAllTasks())
	m.outputPane.ShowTask(m.treePane.SelectedTaskID())
	m.statsPane.SetStats(execs.GetStats(), execs.Config())
	m.updateFocusStates()
	return m
}

// Init starts listening for events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: m.tasks.RefreshTasks(context.Background())}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// While settings are open, all keys go to the form
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
				if m.settingsPane.Saved() {
					m.status = "Settings saved"
				}
				m.statsPane.SetStats(m.execs.GetStats(), m.execs.Config())
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyRefresh:
			m.status = "Refreshing tasks..."
			cmds = append(cmds, m.refreshCmd())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTree
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneOutput
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneStats
			m.updateFocusStates()

		default:
			var cmd tea.Cmd
			switch m.focusedPane {
			case PaneTree:
				m.treePane, cmd = m.treePane.Update(msg)
				m.outputPane.ShowTask(m.treePane.SelectedTaskID())
			case PaneOutput:
				m.outputPane, cmd = m.outputPane.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case runResultMsg:
		if msg.err != nil {
			m.status = StyleError.Render(fmt.Sprintf("Cannot run %s: %v", msg.taskID, msg.err))
		} else {
			m.status = fmt.Sprintf("Started %s (%s)", msg.taskID, msg.exec.ID)
		}

	case refreshDoneMsg:
		if msg.err != nil {
			m.status = StyleError.Render(fmt.Sprintf("Refresh failed: %v", msg.err))
		} else {
			m.status = ""
		}

	case tickMsg:
		var cmd tea.Cmd
		m.outputPane, cmd = m.outputPane.Update(msg)
		cmds = append(cmds, cmd)

	case events.CatalogRefreshedEvent:
		m.treePane.SetTasks(m.tasks.GetAllTasks())
		m.outputPane.ShowTask(m.treePane.SelectedTaskID())
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.ExecutionStartedEvent, events.ExecutionStateChangedEvent, events.ExecutionOutputEvent:
		var cmd tea.Cmd
		m.outputPane, cmd = m.outputPane.Update(msg)
		cmds = append(cmds, cmd)
		m.statsPane.SetStats(m.execs.GetStats(), m.execs.Config())
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.ExecutionCompletedEvent, events.ExecutionFailedEvent:
		// Already reflected by the state change that precedes them
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.outputPane.View(), m.statsPane.View())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.treePane.View(), rightPane)

	footer := HelpView()
	if m.status != "" {
		footer = m.status + "  " + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, footer)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 35) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // help bar
	outputHeight := (availableHeight * 70) / 100
	statsHeight := availableHeight - outputHeight

	m.treePane.SetSize(leftWidth, availableHeight)
	m.outputPane.SetSize(rightWidth, outputHeight)
	m.statsPane.SetSize(rightWidth, statsHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.treePane.SetFocused(m.focusedPane == PaneTree)
	m.outputPane.SetFocused(m.focusedPane == PaneOutput)
	m.statsPane.SetFocused(m.focusedPane == PaneStats)
}
