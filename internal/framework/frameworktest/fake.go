// Package frameworktest provides in-memory frameworks and runners for tests.
package frameworktest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/task"
)

// Framework is a configurable in-memory framework.
type Framework struct {
	name   string
	runner framework.Runner

	mu        sync.Mutex
	available bool
	detectErr error
	tasks     []task.Task
	listErr   error

	DetectCalls atomic.Int32
	ListCalls   atomic.Int32
}

// New returns an available framework that runs tasks with runner.
func New(name string, runner framework.Runner) *Framework {
	return &Framework{name: name, runner: runner, available: true}
}

func (f *Framework) Name() string { return f.name }

func (f *Framework) Runner() framework.Runner { return f.runner }

// SetAvailable controls the detection result.
func (f *Framework) SetAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

// SetDetectError makes detection fail with err (nil clears it).
func (f *Framework) SetDetectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectErr = err
}

// SetTasks sets the tasks returned by ListTasks.
func (f *Framework) SetTasks(tasks ...task.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

// SetListError makes ListTasks fail with err (nil clears it).
func (f *Framework) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *Framework) Detect(ctx context.Context, dirs []string) (bool, error) {
	f.DetectCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detectErr != nil {
		return false, f.detectErr
	}
	return f.available, nil
}

func (f *Framework) ListTasks(ctx context.Context, dirs []string) ([]task.Task, error) {
	f.ListCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]task.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

// Gate is a runner that holds every run until it is stepped or released.
type Gate struct {
	Status  task.Status
	Started chan string // receives the task ID of each run that starts waiting

	step      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewGate returns a gate whose runs finish with status.
func NewGate(status task.Status) *Gate {
	return &Gate{
		Status:  status,
		Started: make(chan string, 64),
		step:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (g *Gate) Run(ctx context.Context, t task.Task, opts framework.RunOptions) (task.Status, error) {
	select {
	case g.Started <- t.ID:
	default:
	}

	select {
	case <-g.step:
	case <-g.done:
	case <-ctx.Done():
		return task.StatusFailed, ctx.Err()
	}
	return g.Status, nil
}

// Step lets exactly one waiting run finish. Blocks until a run takes it.
func (g *Gate) Step() {
	g.step <- struct{}{}
}

// ReleaseAll lets every current and future run finish immediately.
func (g *Gate) ReleaseAll() {
	g.closeOnce.Do(func() { close(g.done) })
}
