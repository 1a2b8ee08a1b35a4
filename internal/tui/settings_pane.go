package tui

import (
	"errors"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskdeck/internal/config"
)

const (
	targetGlobal  = "global"
	targetProject = "project"
)

// SettingsPaneModel manages the limits form overlay. Submitted limits are applied to
// the running execution manager and saved to the chosen config file.
type SettingsPaneModel struct {
	form        *huh.Form
	execs       ExecutionService
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget    string
	maxConcurrent string
	maxHistory    string
}

// NewSettingsPaneModel creates a settings pane editing the limits of execs.
func NewSettingsPaneModel(execs ExecutionService, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		execs:       execs,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.buildForm()
	return m
}

func validateInt(minValue int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("must be a whole number")
		}
		if n < minValue {
			return fmt.Errorf("must be at least %d", minValue)
		}
		return nil
	}
}

// buildForm constructs the form from the manager's current limits.
func (m *SettingsPaneModel) buildForm() {
	limits := m.execs.Config()
	m.saveTarget = targetProject
	m.maxConcurrent = strconv.Itoa(limits.MaxConcurrentExecutions)
	m.maxHistory = strconv.Itoa(limits.MaxHistorySize)

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("maxConcurrent").
				Title("Max Concurrent Executions").
				Description("Runs beyond this limit are rejected").
				Value(&m.maxConcurrent).
				Validate(validateInt(1)),

			huh.NewInput().
				Key("maxHistory").
				Title("Max History Size").
				Description("Finished executions kept for status and output").
				Value(&m.maxHistory).
				Validate(validateInt(0)),
		).Title("Execution Limits"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project (.taskdeck/config.json)", targetProject),
					huh.NewOption("Global (~/.taskdeck/config.json)", targetGlobal),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.err = m.apply()
		m.saved = m.err == nil
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// apply pushes the submitted limits to the manager and saves them.
func (m *SettingsPaneModel) apply() error {
	maxConcurrent, err := strconv.Atoi(m.maxConcurrent)
	if err != nil {
		return fmt.Errorf("max concurrent executions: %w", err)
	}
	maxHistory, err := strconv.Atoi(m.maxHistory)
	if err != nil {
		return fmt.Errorf("max history size: %w", err)
	}

	if err := m.execs.SetMaxConcurrentExecutions(maxConcurrent); err != nil {
		return err
	}
	if err := m.execs.SetMaxHistorySize(maxHistory); err != nil {
		return err
	}

	target := m.projectPath
	if m.saveTarget == targetGlobal {
		target = m.globalPath
	}
	if target == "" {
		return nil
	}
	return config.SaveExecution(target, config.ExecutionConfig{
		MaxConcurrentExecutions: maxConcurrent,
		MaxHistorySize:          maxHistory,
	})
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	content := m.form.View()
	if m.err != nil {
		content = StyleError.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane. Showing it rebuilds the form from the
// current limits.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	if v {
		m.buildForm()
		if m.width > 0 {
			m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
		}
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last submission was applied and saved.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
