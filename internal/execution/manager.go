package execution

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/task"
)

// Resolver looks up frameworks by name.
type Resolver interface {
	Resolve(name string) (framework.Framework, bool)
}

// Manager is the sole authority for running tasks. It enforces the concurrency cap and
// the one-run-per-task rule, tracks each execution from pending to a terminal status,
// keeps a bounded history and fans events out to observers.
type Manager struct {
	resolver  Resolver
	log       *logrus.Entry
	admission *keyLock

	mu        sync.Mutex
	config    Config
	active    map[string]Execution
	history   *history
	observers []Observer
	seq       uint64
	closed    bool

	ctx    context.Context // Handed to runners, cancelled by Shutdown
	cancel context.CancelFunc
	runs   errgroup.Group
}

// NewManager creates a manager resolving frameworks through resolver.
// A non-positive concurrency cap or a negative history size falls back to the default.
// A history size of zero keeps no history.
func NewManager(resolver Resolver, cfg Config, log *logrus.Entry) *Manager {
	if cfg.MaxConcurrentExecutions <= 0 {
		cfg.MaxConcurrentExecutions = DefaultMaxConcurrentExecutions
	}
	if cfg.MaxHistorySize < 0 {
		cfg.MaxHistorySize = DefaultMaxHistorySize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		resolver:  resolver,
		log:       log,
		admission: newKeyLock(),
		config:    cfg,
		active:    make(map[string]Execution),
		history:   newHistory(cfg.MaxHistorySize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func runKey(name, frameworkName string) string {
	return frameworkName + "\x00" + name
}

// ExecuteTask admits t and starts running it in the background.
//
// Admission checks run in order: no active execution for the same (name, framework)
// pair, the framework is registered and detected in the task's working directory, and
// the concurrency cap is not reached. The returned execution is the pending snapshot;
// the terminal outcome is observed through observers or by polling GetExecution.
func (m *Manager) ExecuteTask(ctx context.Context, t task.Task, opts Options) (Execution, error) {
	exec, observers, release, err := m.admit(ctx, t, opts)
	if err != nil {
		return Execution{}, err
	}
	defer close(release)

	// No locks are held here, so hooks may call back into the manager
	for _, o := range observers {
		o.OnExecutionStarted(exec)
	}
	return exec, nil
}

// admit registers a pending execution and schedules its run. The run waits for release
// to be closed, so OnExecutionStarted always precedes its other events.
func (m *Manager) admit(ctx context.Context, t task.Task, opts Options) (Execution, []Observer, chan struct{}, error) {
	key := runKey(t.Name, t.FrameworkName)
	m.admission.Lock(key)
	defer m.admission.Unlock(key)

	if m.IsTaskRunning(t.Name, t.FrameworkName) {
		return Execution{}, nil, nil, fmt.Errorf("%w: %q (%s)", ErrTaskAlreadyRunning, t.Name, t.FrameworkName)
	}

	if err := m.checkFramework(ctx, t.FrameworkName, t.WorkingDirectory); err != nil {
		return Execution{}, nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Execution{}, nil, nil, ErrShutdown
	}
	if len(m.active) >= m.config.MaxConcurrentExecutions {
		return Execution{}, nil, nil, fmt.Errorf("maximum concurrent executions (%d) reached: %w", m.config.MaxConcurrentExecutions, ErrConcurrencyLimit)
	}
	m.seq++
	exec := Execution{
		ID:        fmt.Sprintf("exec-%d", m.seq),
		Task:      t,
		Status:    task.StatusPending,
		StartTime: time.Now(),
		seq:       m.seq,
	}
	m.active[exec.ID] = exec

	// Go runs under m.mu so every admitted run is covered by Shutdown's Wait
	release := make(chan struct{})
	m.runs.Go(func() error {
		<-release
		m.run(exec, opts)
		return nil
	})

	return exec, m.observerSnapshot(), release, nil
}

// checkFramework verifies the framework is registered and detected in dir.
func (m *Manager) checkFramework(ctx context.Context, name, dir string) error {
	fw, ok := m.resolver.Resolve(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrFrameworkNotFound, name)
	}

	detected, err := fw.Detect(ctx, []string{dir})
	if err != nil {
		return fmt.Errorf("%w: %q in %s: %v", ErrFrameworkNotAvailable, name, dir, err)
	}
	if !detected {
		return fmt.Errorf("%w: %q in %s", ErrFrameworkNotAvailable, name, dir)
	}
	return nil
}

// run drives an admitted execution to a terminal status.
func (m *Manager) run(exec Execution, opts Options) {
	if _, ok := m.transition(exec.ID, task.StatusRunning, ""); !ok {
		return
	}

	status, err := m.invoke(exec, opts)
	if err != nil {
		m.log.WithError(err).WithField("execution", exec.ID).Errorf("Execution of task %q failed", exec.Task.ID)
		m.transition(exec.ID, task.StatusFailed, err.Error())
		return
	}

	m.transition(exec.ID, status, "")
}

// invoke resolves the framework again and calls its runner. Panics and non-terminal
// results are reported as errors.
func (m *Manager) invoke(exec Execution, opts Options) (status task.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner panicked: %v", r)
		}
	}()

	fw, ok := m.resolver.Resolve(exec.Task.FrameworkName)
	if !ok {
		return "", fmt.Errorf("%w: %q disappeared before run", ErrFrameworkNotFound, exec.Task.FrameworkName)
	}

	runOpts := framework.RunOptions{
		Cwd:  opts.cwd(exec.Task),
		Args: opts.Args,
		Output: func(chunk string, stream framework.Stream) {
			m.notifyOutput(exec.ID, chunk, stream)
		},
	}

	status, err = fw.Runner().Run(m.ctx, exec.Task, runOpts)
	if err != nil {
		return "", err
	}
	if !status.Terminal() {
		return "", fmt.Errorf("runner returned non-terminal status %q", status)
	}
	return status, nil
}

// transition replaces the stored snapshot of an active execution and notifies observers.
// Terminal transitions move the execution into history.
func (m *Manager) transition(id string, status task.Status, errMsg string) (Execution, bool) {
	m.mu.Lock()
	exec, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return Execution{}, false
	}

	exec.Status = status
	if status.Terminal() {
		exec.EndTime = time.Now()
		exec.Error = errMsg
		delete(m.active, id)
		m.history.push(exec)
	} else {
		m.active[id] = exec
	}
	observers := m.observerSnapshot()
	m.mu.Unlock()

	for _, o := range observers {
		o.OnStateChanged(exec)
	}
	switch status {
	case task.StatusCompleted:
		for _, o := range observers {
			o.OnExecutionCompleted(exec)
		}
	case task.StatusFailed:
		for _, o := range observers {
			o.OnExecutionFailed(exec)
		}
	}

	return exec, true
}

func (m *Manager) notifyOutput(id, chunk string, stream framework.Stream) {
	m.mu.Lock()
	observers := m.observerSnapshot()
	m.mu.Unlock()

	for _, o := range observers {
		o.OnOutputReceived(id, chunk, stream)
	}
}

// observerSnapshot copies the observer list. Callers must hold m.mu.
func (m *Manager) observerSnapshot() []Observer {
	out := make([]Observer, len(m.observers))
	copy(out, m.observers)
	return out
}

// GetExecution returns an active or historical execution by ID.
func (m *Manager) GetExecution(id string) (Execution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exec, ok := m.active[id]; ok {
		return exec, true
	}
	return m.history.find(id)
}

// GetActiveExecutions returns the non-terminal executions, most recently admitted first.
func (m *Manager) GetActiveExecutions() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

func (m *Manager) activeLocked() []Execution {
	out := make([]Execution, 0, len(m.active))
	for _, exec := range m.active {
		out = append(out, exec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	return out
}

// GetExecutionHistory returns terminal executions, most recent first.
func (m *Manager) GetExecutionHistory() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.list()
}

// IsTaskRunning reports whether an active execution exists for the (name, framework) pair.
func (m *Manager) IsTaskRunning(name, frameworkName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, exec := range m.active {
		if exec.Task.Name == name && exec.Task.FrameworkName == frameworkName {
			return true
		}
	}
	return false
}

// GetExecutionsForTask returns the executions for the (name, framework) pair: active
// ones first, then history, each most recent first.
func (m *Manager) GetExecutionsForTask(name, frameworkName string) []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()

	matches := func(e Execution) bool {
		return e.Task.Name == name && e.Task.FrameworkName == frameworkName
	}

	var out []Execution
	for _, exec := range m.activeLocked() {
		if matches(exec) {
			out = append(out, exec)
		}
	}
	for _, exec := range m.history.list() {
		if matches(exec) {
			out = append(out, exec)
		}
	}
	return out
}

// ClearHistory drops all terminal executions. Active executions are unaffected.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.clear()
}

// Config returns the current limits.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// SetMaxConcurrentExecutions changes the concurrency cap. Executions already running are
// not affected by a lower cap; it applies to subsequent admissions.
func (m *Manager) SetMaxConcurrentExecutions(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max concurrent executions must be at least 1, got %d", ErrInvalidLimit, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.MaxConcurrentExecutions = n
	return nil
}

// SetMaxHistorySize changes the history cap, truncating existing history to the most
// recent n entries.
func (m *Manager) SetMaxHistorySize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: max history size must not be negative, got %d", ErrInvalidLimit, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.MaxHistorySize = n
	m.history.setLimit(n)
	return nil
}

// GetStats counts active executions and terminal outcomes in history.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Active: len(m.active)}
	for i := 0; i < m.history.len(); i++ {
		switch m.history.at(i).Status {
		case task.StatusCompleted:
			stats.Completed++
		case task.StatusFailed:
			stats.Failed++
		case task.StatusCancelled:
			stats.Cancelled++
		}
	}
	stats.Total = stats.Active + stats.Completed + stats.Failed + stats.Cancelled
	return stats
}

// AddObserver registers an observer. Observers are notified in registration order.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// RemoveObserver unregisters an observer. Removing an unknown observer is a no-op.
func (m *Manager) RemoveObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.observers {
		if existing == o {
			m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
			return
		}
	}
}

// Wait blocks until every execution started so far has reached a terminal status.
func (m *Manager) Wait() {
	_ = m.runs.Wait()
}

// Shutdown rejects new executions, cancels the context handed to running runners and
// waits for them to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.Wait()
}
