// Package execution runs tasks under a concurrency cap, tracks each run through its
// lifecycle and notifies observers of every transition.
package execution

import (
	"errors"
	"time"

	"github.com/aristath/taskdeck/internal/task"
)

// Admission errors. They are returned by ExecuteTask before any execution is created.
var (
	ErrTaskAlreadyRunning    = errors.New("task already running")
	ErrFrameworkNotFound     = errors.New("framework not found")
	ErrFrameworkNotAvailable = errors.New("framework not available")
	ErrConcurrencyLimit      = errors.New("concurrency limit reached")
	ErrShutdown              = errors.New("execution manager shut down")
	ErrInvalidLimit          = errors.New("invalid limit")
)

// Default limits.
const (
	DefaultMaxConcurrentExecutions = 5
	DefaultMaxHistorySize          = 100
)

// Config holds the manager limits.
type Config struct {
	MaxConcurrentExecutions int
	MaxHistorySize          int
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentExecutions: DefaultMaxConcurrentExecutions,
		MaxHistorySize:          DefaultMaxHistorySize,
	}
}

// Execution is a snapshot of one attempt to run a task.
// The manager replaces its stored snapshot on every transition; values handed out never change.
type Execution struct {
	ID        string
	Task      task.Task // Task definition as it was at admission
	Status    task.Status
	StartTime time.Time
	EndTime   time.Time // Zero until the execution reaches a terminal status
	Error     string    // Failure cause, empty unless the run errored

	seq uint64
}

// Duration returns how long the execution ran, or has been running so far.
func (e Execution) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return time.Since(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}

// Options tweak a single run.
type Options struct {
	OverrideCwd string   // Replaces the task's working directory when set
	Args        []string // Extra arguments forwarded to the runner
}

func (o Options) cwd(t task.Task) string {
	if o.OverrideCwd != "" {
		return o.OverrideCwd
	}
	return t.WorkingDirectory
}

// Stats summarizes active executions and the retained history.
type Stats struct {
	Active    int
	Completed int
	Failed    int
	Cancelled int
	Total     int // Active plus the three terminal counts
}
