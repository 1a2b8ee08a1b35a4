package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/task"
)

func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run tasks and wait for them to finish",
		ArgsUsage: "<task-id>...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "arg",
				Usage: "Extra argument passed to every task (repeatable)",
			},
			&cli.StringFlag{
				Name:  "cwd",
				Usage: "Run in this directory instead of the task's own",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not stream task output",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ids := cmd.Args().Slice()
			if len(ids) == 0 {
				return fmt.Errorf("run needs at least one task id")
			}

			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, s, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.Root().Writer
			if !cmd.Bool("quiet") {
				a.execs.AddObserver(newOutputPrinter(out))
			}

			opts := execution.Options{
				OverrideCwd: cmd.String("cwd"),
				Args:        cmd.StringSlice("arg"),
			}

			failed := false
			var started []execution.Execution
			for _, id := range ids {
				exec, err := a.tasks.ExecuteTask(ctx, id, opts)
				if err != nil {
					fmt.Fprintf(cmd.Root().ErrWriter, "Cannot run %s: %v\n", id, err)
					failed = true
					continue
				}
				started = append(started, exec)
			}

			waitOrShutdown(ctx, a.execs)

			for _, snap := range started {
				exec, ok := a.execs.GetExecution(snap.ID)
				if !ok {
					fmt.Fprintf(out, "%-10s %s (dropped from history)\n", "unknown", snap.Task.ID)
					failed = true
					continue
				}
				line := fmt.Sprintf("%-10s %s (%s)", exec.Status, exec.Task.ID, exec.Duration().Round(time.Millisecond))
				if exec.Error != "" {
					line += ": " + exec.Error
				}
				fmt.Fprintln(out, line)

				if exec.Status != task.StatusCompleted && exec.Status != task.StatusSkipped {
					failed = true
				}
			}

			if failed {
				return errRunFailed
			}
			return nil
		},
	}
}

// waitOrShutdown waits for every started execution. If ctx ends first the running
// executions are cancelled.
func waitOrShutdown(ctx context.Context, execs *execution.Manager) {
	done := make(chan struct{})
	go func() {
		execs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		execs.Shutdown()
		<-done
	}
}

// newOutputPrinter prefixes streamed output lines with the task ID.
func newOutputPrinter(w io.Writer) execution.Observer {
	var mu sync.Mutex
	taskOf := make(map[string]string)

	return &execution.ObserverFuncs{
		Started: func(exec execution.Execution) {
			mu.Lock()
			defer mu.Unlock()
			taskOf[exec.ID] = exec.Task.ID
		},
		Output: func(execID, chunk string, stream framework.Stream) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(w, "[%s] %s\n", taskOf[execID], chunk)
		},
	}
}
