package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

// errRunFailed is returned by the run command when a task did not complete.
var errRunFailed = errors.New("one or more tasks did not complete")

func main() {
	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:           "taskdeck",
		Usage:          "Discover, browse and run nox sessions and other automation tasks",
		DefaultCommand: "ui",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "project",
				Usage: "Project root holding .taskdeck/config.json",
				Value: ".",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Global config file (default ~/.taskdeck/config.json)",
				Sources: cli.EnvVars("TASKDECK_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory to search for tasks, relative to the project root (repeatable)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error)",
				Sources: cli.EnvVars("TASKDECK_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			newUICommand(),
			newListCommand(),
			newRunCommand(),
		},
	}
}
