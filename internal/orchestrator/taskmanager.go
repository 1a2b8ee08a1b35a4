// Package orchestrator owns the task catalog: it discovers tasks through providers,
// delegates runs to the execution manager and derives task status from executions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskdeck/internal/events"
	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/task"
)

// ErrTaskNotFound is returned for task IDs missing from the catalog.
var ErrTaskNotFound = errors.New("task not found")

// maxParallelListing bounds how many providers list at once.
const maxParallelListing = 4

// Executor is the part of the execution manager the task manager delegates to.
type Executor interface {
	ExecuteTask(ctx context.Context, t task.Task, opts execution.Options) (execution.Execution, error)
	IsTaskRunning(name, frameworkName string) bool
	GetExecutionsForTask(name, frameworkName string) []execution.Execution
}

// TaskManager holds the task catalog and answers status queries for it.
type TaskManager struct {
	searchDirs []string
	execs      Executor
	log        *logrus.Entry
	bus        *events.EventBus

	refreshMu sync.Mutex // serializes RefreshTasks

	mu        sync.RWMutex
	registry  *framework.Registry
	providers []framework.Provider
	tasks     map[string]task.Task
}

// NewTaskManager creates a task manager searching dirs for tasks.
func NewTaskManager(searchDirs []string, execs Executor, log *logrus.Entry) *TaskManager {
	dirs := make([]string, len(searchDirs))
	copy(dirs, searchDirs)
	return &TaskManager{
		searchDirs: dirs,
		execs:      execs,
		log:        log,
		tasks:      make(map[string]task.Task),
	}
}

// SetEventBus makes RefreshTasks publish a CatalogRefreshedEvent on bus.
func (m *TaskManager) SetEventBus(bus *events.EventBus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus = bus
}

// SearchDirs returns the directories searched for tasks.
func (m *TaskManager) SearchDirs() []string {
	out := make([]string, len(m.searchDirs))
	copy(out, m.searchDirs)
	return out
}

// SetProviders replaces the providers consulted by RefreshTasks. Order matters: on an
// ID collision the later provider wins.
func (m *TaskManager) SetProviders(providers ...framework.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append([]framework.Provider(nil), providers...)
}

// Providers returns the current providers.
func (m *TaskManager) Providers() []framework.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]framework.Provider(nil), m.providers...)
}

// SetRegistry makes every RefreshTasks detect its providers from reg first, so a
// framework that becomes available after startup is picked up.
func (m *TaskManager) SetRegistry(reg *framework.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = reg
}

// DetectProviders uses the frameworks of reg detected in the search directories as
// providers and returns their names.
func (m *TaskManager) DetectProviders(ctx context.Context, reg *framework.Registry) []string {
	detected := reg.DetectAll(ctx, m.searchDirs)

	providers := make([]framework.Provider, len(detected))
	names := make([]string, len(detected))
	for i, fw := range detected {
		providers[i] = fw
		names[i] = fw.Name()
	}
	m.SetProviders(providers...)

	m.log.WithField("frameworks", names).Info("Detected frameworks")
	return names
}

// RefreshTasks lists every provider concurrently and replaces the catalog with the
// merged result. A failing provider is logged and contributes nothing. If ctx ends
// before listing finishes the catalog is left untouched. With a registry set the
// providers are detected again first.
func (m *TaskManager) RefreshTasks(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.RLock()
	reg := m.registry
	m.mu.RUnlock()
	if reg != nil {
		m.DetectProviders(ctx, reg)
	}

	providers := m.Providers()
	results := make([][]task.Task, len(providers))

	var g errgroup.Group
	g.SetLimit(maxParallelListing)
	for i, p := range providers {
		g.Go(func() error {
			tasks, err := p.ListTasks(ctx, m.searchDirs)
			if err != nil {
				m.log.WithError(err).WithField("provider", p.Name()).Warn("Failed to list tasks")
				return nil
			}
			results[i] = tasks
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refreshing tasks: %w", err)
	}

	catalog := make(map[string]task.Task)
	for _, tasks := range results {
		for _, t := range tasks {
			catalog[t.ID] = t
		}
	}

	m.mu.Lock()
	m.tasks = catalog
	bus := m.bus
	m.mu.Unlock()

	m.log.WithField("tasks", len(catalog)).Info("Task catalog refreshed")
	if bus != nil {
		bus.Publish(events.TopicCatalog, events.CatalogRefreshedEvent{Tasks: len(catalog), Timestamp: time.Now()})
	}
	return nil
}

// GetTask returns the task with the given ID.
func (m *TaskManager) GetTask(id string) (task.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

func (m *TaskManager) lookup(id string) (task.Task, error) {
	t, ok := m.GetTask(id)
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, nil
}

// filter returns the catalog tasks matching keep, sorted by ID.
func (m *TaskManager) filter(keep func(task.Task) bool) []task.Task {
	m.mu.RLock()
	out := make([]task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAllTasks returns the whole catalog sorted by ID.
func (m *TaskManager) GetAllTasks() []task.Task {
	return m.filter(func(task.Task) bool { return true })
}

// GetTasksByFramework returns the tasks provided by the named framework, sorted by ID.
func (m *TaskManager) GetTasksByFramework(name string) []task.Task {
	return m.filter(func(t task.Task) bool { return t.FrameworkName == name })
}

// GetTasksByMatrixGroup returns the variants that share a matrix group, sorted by ID.
func (m *TaskManager) GetTasksByMatrixGroup(group string) []task.Task {
	return m.filter(func(t task.Task) bool { return t.MatrixGroup == group })
}

// GetTasksByCategoryTag returns the tasks carrying tag, sorted by ID.
func (m *TaskManager) GetTasksByCategoryTag(tag string) []task.Task {
	return m.filter(func(t task.Task) bool { return t.HasTag(tag) })
}

// GetTaskStatus derives a task's status from its executions: an active execution wins,
// otherwise the most recent one decides, and a task that never ran is idle.
func (m *TaskManager) GetTaskStatus(id string) (task.Status, error) {
	t, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	return m.statusOf(t), nil
}

func (m *TaskManager) statusOf(t task.Task) task.Status {
	execs := m.execs.GetExecutionsForTask(t.Name, t.FrameworkName)
	if len(execs) == 0 {
		return task.StatusIdle
	}
	for _, e := range execs {
		if e.Status.Active() {
			return e.Status
		}
	}
	return execs[0].Status
}

// GroupStatus aggregates the statuses of the given tasks. Unknown IDs are ignored.
func (m *TaskManager) GroupStatus(ids ...string) task.Status {
	statuses := make([]task.Status, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.GetTask(id); ok {
			statuses = append(statuses, m.statusOf(t))
		}
	}
	return task.Aggregate(statuses...)
}

// ExecuteTask runs the catalog task with the given ID.
func (m *TaskManager) ExecuteTask(ctx context.Context, id string, opts execution.Options) (execution.Execution, error) {
	t, err := m.lookup(id)
	if err != nil {
		return execution.Execution{}, err
	}
	return m.execs.ExecuteTask(ctx, t, opts)
}

// IsTaskRunning reports whether the task has an active execution. Unknown IDs are not running.
func (m *TaskManager) IsTaskRunning(id string) bool {
	t, ok := m.GetTask(id)
	if !ok {
		return false
	}
	return m.execs.IsTaskRunning(t.Name, t.FrameworkName)
}

// GetTaskExecutions returns the task's executions, active first. Unknown IDs yield none.
func (m *TaskManager) GetTaskExecutions(id string) []execution.Execution {
	t, ok := m.GetTask(id)
	if !ok {
		return nil
	}
	return m.execs.GetExecutionsForTask(t.Name, t.FrameworkName)
}
