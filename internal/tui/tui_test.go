package tui

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/taskdeck/internal/events"
	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/task"
)

func sampleTasks() []task.Task {
	return []task.Task{
		{ID: "tests-3.12", Name: "tests", FrameworkName: "nox", MatrixGroup: "tests"},
		{ID: "lint", Name: "lint", FrameworkName: "nox"},
		{ID: "tests-3.11", Name: "tests", FrameworkName: "nox", MatrixGroup: "tests"},
		{ID: "py311", Name: "py311", FrameworkName: "tox"},
	}
}

// fakeService records runs and serves fixed statuses.
type fakeService struct {
	tasks    []task.Task
	statuses map[string]task.Status
	ran      []string
	limits   execution.Config
}

func newFakeService() *fakeService {
	return &fakeService{
		tasks:    sampleTasks(),
		statuses: map[string]task.Status{},
		limits:   execution.DefaultConfig(),
	}
}

func (f *fakeService) GetAllTasks() []task.Task { return f.tasks }

func (f *fakeService) GetTaskStatus(id string) (task.Status, error) {
	if s, ok := f.statuses[id]; ok {
		return s, nil
	}
	return task.StatusIdle, nil
}

func (f *fakeService) GroupStatus(ids ...string) task.Status {
	var statuses []task.Status
	for _, id := range ids {
		s, _ := f.GetTaskStatus(id)
		statuses = append(statuses, s)
	}
	return task.Aggregate(statuses...)
}

func (f *fakeService) ExecuteTask(ctx context.Context, id string, opts execution.Options) (execution.Execution, error) {
	f.ran = append(f.ran, id)
	return execution.Execution{ID: "exec-1", Status: task.StatusPending}, nil
}

func (f *fakeService) RefreshTasks(ctx context.Context) error { return nil }

func (f *fakeService) GetStats() execution.Stats { return execution.Stats{} }
func (f *fakeService) Config() execution.Config { return f.limits }
func (f *fakeService) SetMaxConcurrentExecutions(n int) error {
	f.limits.MaxConcurrentExecutions = n
	return nil
}
func (f *fakeService) SetMaxHistorySize(n int) error {
	f.limits.MaxHistorySize = n
	return nil
}

func labels(rows []treeNode) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = strings.Repeat(" ", r.depth) + r.label
	}
	return out
}

func TestBuildTree(t *testing.T) {
	rows := buildTree(sampleTasks(), nil)

	want := []string{
		"nox",
		" lint",
		" tests",
		"  tests-3.11",
		"  tests-3.12",
		"tox",
		" py311",
	}
	if got := labels(rows); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("buildTree() = %q, want %q", got, want)
	}

	if ids := rows[0].taskIDs; len(ids) != 3 {
		t.Errorf("framework row should cover 3 tasks, got %v", ids)
	}
	if rows[2].kind != nodeGroup || len(rows[2].taskIDs) != 2 {
		t.Errorf("expected tests group with 2 variants, got %+v", rows[2])
	}
	if rows[1].kind != nodeTask || rows[1].key != "lint" {
		t.Errorf("expected lint leaf, got %+v", rows[1])
	}
}

func TestBuildTree_Collapsed(t *testing.T) {
	rows := buildTree(sampleTasks(), map[string]bool{"nox/tests": true, "tox": true})

	want := []string{"nox", " lint", " tests", "tox"}
	if got := labels(rows); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("buildTree() = %q, want %q", got, want)
	}
	// Collapsed rows still cover their tasks for status aggregation
	if len(rows[3].taskIDs) != 1 {
		t.Errorf("collapsed tox row lost its tasks: %+v", rows[3])
	}
}

func TestBuildTree_Empty(t *testing.T) {
	if rows := buildTree(nil, nil); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case KeyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case KeyDown:
		return tea.KeyMsg{Type: tea.KeyDown}
	case KeyTab:
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTreePane_RunLeaf(t *testing.T) {
	svc := newFakeService()
	pane := NewTreePaneModel(svc)
	pane.SetFocused(true)
	pane.SetSize(40, 20)
	pane.SetTasks(svc.GetAllTasks())

	pane, _ = pane.Update(key(KeyJ)) // lint
	if got := pane.SelectedTaskID(); got != "lint" {
		t.Fatalf("selected %q, want lint", got)
	}

	pane, cmd := pane.Update(key(KeyEnter))
	if cmd == nil {
		t.Fatal("enter on a leaf should return a run command")
	}
	msg, ok := cmd().(runResultMsg)
	if !ok {
		t.Fatalf("expected runResultMsg, got %T", cmd())
	}
	if msg.taskID != "lint" || msg.err != nil {
		t.Errorf("unexpected run result %+v", msg)
	}
	if len(svc.ran) != 1 || svc.ran[0] != "lint" {
		t.Errorf("expected lint to run, ran %v", svc.ran)
	}
}

func TestTreePane_ToggleGroup(t *testing.T) {
	svc := newFakeService()
	pane := NewTreePaneModel(svc)
	pane.SetFocused(true)
	pane.SetSize(40, 20)
	pane.SetTasks(svc.GetAllTasks())

	pane, _ = pane.Update(key(KeyDown))
	pane, _ = pane.Update(key(KeyDown)) // tests group
	pane, cmd := pane.Update(key(KeyEnter))
	if cmd != nil {
		t.Error("enter on a group should not run anything")
	}
	if len(pane.rows) != 5 {
		t.Errorf("expected 5 rows after collapsing tests, got %d", len(pane.rows))
	}
	if pane.rows[pane.selected].key != "nox/tests" {
		t.Errorf("selection should stay on the toggled group, got %q", pane.rows[pane.selected].key)
	}
}

func TestTreePane_ViewShowsAggregatedStatus(t *testing.T) {
	svc := newFakeService()
	svc.statuses["tests-3.11"] = task.StatusFailed
	svc.statuses["tests-3.12"] = task.StatusCompleted
	pane := NewTreePaneModel(svc)
	pane.SetSize(60, 20)
	pane.SetTasks(svc.GetAllTasks())

	view := pane.View()
	if !strings.Contains(view, "tests-3.11") {
		t.Errorf("view missing variant row:\n%s", view)
	}
	if !strings.Contains(view, "3 tasks, one or more failed") {
		t.Errorf("view missing framework description:\n%s", view)
	}
}

func TestRowStyle_DimsIdleRows(t *testing.T) {
	if !rowStyle(task.StatusIdle).GetFaint() {
		t.Error("idle rows should be faint")
	}
	for _, s := range []task.Status{task.StatusRunning, task.StatusFailed, task.StatusCompleted} {
		style := rowStyle(s)
		if style.GetFaint() || !style.GetBold() {
			t.Errorf("%s rows should be bold and not faint", s)
		}
	}
}

func TestTruncateLabel(t *testing.T) {
	if got := truncateLabel("lint", 20); got != "lint" {
		t.Errorf("short label changed: %q", got)
	}

	label := "tésts-ünïcödé-sëssiön-3.12"
	got := truncateLabel(label, 12)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated label is not valid UTF-8: %q", got)
	}
	if w := ansi.StringWidth(got); w > 12 {
		t.Errorf("width = %d, want <= 12 (%q)", w, got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated label missing ellipsis: %q", got)
	}

	if got := truncateLabel(label, 2); got != label {
		t.Errorf("tiny limit should leave label alone, got %q", got)
	}
}

func TestOutputPane_FollowsLatestExecution(t *testing.T) {
	pane := NewOutputPaneModel()
	pane.SetSize(80, 20)
	pane.ShowTask("lint")

	lint := task.Task{ID: "lint", Name: "lint"}
	first := execution.Execution{ID: "exec-1", Task: lint, Status: task.StatusPending, StartTime: time.Now()}
	pane, _ = pane.Update(events.ExecutionStartedEvent{Execution: first})
	pane, _ = pane.Update(events.ExecutionOutputEvent{ExecutionID: "exec-1", Task: "lint", Line: "ruff check", Stream: framework.StreamStdout})

	second := first
	second.ID = "exec-2"
	pane, _ = pane.Update(events.ExecutionStartedEvent{Execution: second})
	pane, _ = pane.Update(events.ExecutionOutputEvent{ExecutionID: "exec-1", Task: "lint", Line: "stale", Stream: framework.StreamStdout})

	out := strings.Join(pane.outputs["lint"].lines, "\n")
	if strings.Contains(out, "ruff check") || strings.Contains(out, "stale") {
		t.Errorf("output of an older execution leaked into the latest:\n%s", out)
	}

	done := second
	done.Status = task.StatusFailed
	done.Error = "exit status 1"
	pane, _ = pane.Update(events.ExecutionStateChangedEvent{Execution: done})
	out = strings.Join(pane.outputs["lint"].lines, "\n")
	if !strings.Contains(out, "[failed: exit status 1]") {
		t.Errorf("expected failure footer, got:\n%s", out)
	}
}

func TestOutputPane_CapsLines(t *testing.T) {
	o := &taskOutput{}
	for i := 0; i < maxOutputLines+10; i++ {
		o.add("line")
	}
	if len(o.lines) != maxOutputLines {
		t.Errorf("expected %d lines, got %d", maxOutputLines, len(o.lines))
	}
}

func TestSettings_ApplyUpdatesLimitsAndSaves(t *testing.T) {
	svc := newFakeService()
	path := t.TempDir() + "/.taskdeck/config.json"
	pane := NewSettingsPaneModel(svc, "", path)

	pane.maxConcurrent = "3"
	pane.maxHistory = "25"
	pane.saveTarget = targetProject
	if err := pane.apply(); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	if svc.limits.MaxConcurrentExecutions != 3 || svc.limits.MaxHistorySize != 25 {
		t.Errorf("limits not applied: %+v", svc.limits)
	}
}

func TestSettings_RejectsBadInput(t *testing.T) {
	svc := newFakeService()
	pane := NewSettingsPaneModel(svc, "", "")

	pane.maxConcurrent = "many"
	if err := pane.apply(); err == nil {
		t.Error("expected error for non-numeric input")
	}
	if err := validateInt(1)("0"); err == nil {
		t.Error("expected error below the minimum")
	}
	if err := validateInt(0)("0"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestModel_RoutesKeysAndEvents(t *testing.T) {
	svc := newFakeService()
	bus := events.NewEventBus()
	defer bus.Close()

	m := New(svc, svc, bus, "", "")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)

	if !strings.Contains(m.View(), "Tasks") {
		t.Error("expected task pane in view")
	}

	updated, _ = m.Update(key(KeyTab))
	m = updated.(Model)
	if m.focusedPane != PaneOutput {
		t.Errorf("expected output pane focus, got %d", m.focusedPane)
	}

	updated, _ = m.Update(runResultMsg{taskID: "lint", exec: execution.Execution{ID: "exec-4"}})
	m = updated.(Model)
	if !strings.Contains(m.status, "exec-4") {
		t.Errorf("expected run feedback in status, got %q", m.status)
	}

	svc.tasks = svc.tasks[:1]
	updated, _ = m.Update(events.CatalogRefreshedEvent{Tasks: 1})
	m = updated.(Model)
	if len(m.treePane.tasks) != 1 {
		t.Errorf("expected tree to reload after catalog refresh, got %d tasks", len(m.treePane.tasks))
	}

	_, cmd := m.Update(key(KeyQuit))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}
