// Package framework defines the adapter contract for automation tools and an injectable
// registry that resolves adapters by name.
package framework

import (
	"context"

	"github.com/aristath/taskdeck/internal/task"
)

// Stream identifies which output stream a chunk came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// OutputFunc receives output produced by a running task.
type OutputFunc func(chunk string, stream Stream)

// RunOptions carries per-run settings resolved by the execution manager.
type RunOptions struct {
	Cwd    string     // Effective working directory
	Args   []string   // Extra arguments forwarded to the tool
	Output OutputFunc // Optional output sink
}

// Emit forwards a chunk to the output sink if one is set.
func (o RunOptions) Emit(chunk string, stream Stream) {
	if o.Output != nil {
		o.Output(chunk, stream)
	}
}

// Runner executes a single task and reports its terminal status.
// Ordinary business failures are reported as a status; errors are reserved for
// infrastructure failures such as a missing binary.
type Runner interface {
	Run(ctx context.Context, t task.Task, opts RunOptions) (task.Status, error)
}

// Provider lists the tasks a tool exposes in a set of directories.
type Provider interface {
	Name() string
	ListTasks(ctx context.Context, dirs []string) ([]task.Task, error)
}

// Framework is a pluggable adapter for one automation tool.
type Framework interface {
	Provider

	// Detect reports whether the tool is usable in any of the directories.
	Detect(ctx context.Context, dirs []string) (bool, error)

	// Runner returns the runner used to execute this framework's tasks.
	Runner() Runner
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, t task.Task, opts RunOptions) (task.Status, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, t task.Task, opts RunOptions) (task.Status, error) {
	return f(ctx, t, opts)
}
