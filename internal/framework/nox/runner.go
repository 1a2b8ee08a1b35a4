package nox

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/process"
	"github.com/aristath/taskdeck/internal/task"
)

// skippedLine matches nox's report for a skipped session, e.g.
// "nox > Session always_skip skipped: reason".
var skippedLine = regexp.MustCompile(`Session \S+ (was )?skipped`)

type runner struct {
	fw *Framework
}

// Run executes a single session. Exit code 0 means completed unless nox reported the
// session skipped. A non-zero exit means failed. A cancelled context means cancelled.
func (r *runner) Run(ctx context.Context, t task.Task, opts framework.RunOptions) (task.Status, error) {
	args := r.fw.args("-s", sessionOf(t))
	if len(opts.Args) > 0 {
		args = append(args, "--")
		args = append(args, opts.Args...)
	}

	var skipped atomic.Bool
	watch := func(stream framework.Stream) process.LineFunc {
		return func(line string) {
			if skippedLine.MatchString(line) {
				skipped.Store(true)
			}
			opts.Emit(line, stream)
		}
	}

	log := r.fw.log.WithField("session", sessionOf(t))
	log.WithField("cwd", opts.Cwd).Debug("Running nox session")

	cmd := process.Command(ctx, opts.Cwd, r.fw.cfg.Command, args...)
	err := r.fw.procs.Run(cmd, watch(framework.StreamStdout), watch(framework.StreamStderr))
	switch {
	case ctx.Err() != nil:
		return task.StatusCancelled, nil
	case err == nil && skipped.Load():
		return task.StatusSkipped, nil
	case err == nil:
		return task.StatusCompleted, nil
	}

	if code, ok := process.ExitCode(err); ok {
		log.WithField("exit_code", code).Debug("nox session failed")
		return task.StatusFailed, nil
	}
	return task.StatusFailed, fmt.Errorf("running nox session %q: %w", sessionOf(t), err)
}
