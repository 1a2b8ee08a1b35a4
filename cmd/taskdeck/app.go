package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v3"

	"github.com/aristath/taskdeck/internal/config"
	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/framework/nox"
	"github.com/aristath/taskdeck/internal/logging"
	"github.com/aristath/taskdeck/internal/orchestrator"
	"github.com/aristath/taskdeck/internal/process"
)

// settings is the resolved configuration of one invocation.
type settings struct {
	cfg         *config.Config
	root        string
	globalPath  string
	projectPath string
	searchDirs  []string
}

// loadSettings merges config files and command line flags. Flags win over files.
func loadSettings(cmd *cli.Command) (*settings, error) {
	root, err := filepath.Abs(cmd.String("project"))
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	globalPath := cmd.String("config")
	if globalPath == "" {
		if globalPath, err = config.GlobalPath(); err != nil {
			return nil, err
		}
	}
	projectPath := config.ProjectPath(root)

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return nil, err
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	dirs := cmd.StringSlice("dir")
	if len(dirs) == 0 {
		dirs = cfg.SearchDirectories
	}

	return &settings{
		cfg:         cfg,
		root:        root,
		globalPath:  globalPath,
		projectPath: projectPath,
		searchDirs:  resolveSearchDirs(root, dirs),
	}, nil
}

// resolveSearchDirs makes dirs absolute relative to root. No dirs means root itself.
func resolveSearchDirs(root string, dirs []string) []string {
	if len(dirs) == 0 {
		return []string{root}
	}

	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

// app holds the wired components shared by every command.
type app struct {
	*settings

	procs    *process.Manager
	registry *framework.Registry
	execs    *execution.Manager
	tasks    *orchestrator.TaskManager
	log      *logrus.Entry
}

// newApp wires the components and loads the initial task catalog. Logs go to logOut.
func newApp(ctx context.Context, s *settings, logOut io.Writer) (*app, error) {
	logging.Setup(s.cfg.LogLevel, logOut)

	a := &app{
		settings: s,
		procs:    process.NewManager(),
		registry: framework.NewRegistry(logging.WithModule("registry")),
		log:      logging.WithModule("main"),
	}
	a.registerFrameworks()

	a.execs = execution.NewManager(a.registry, execution.Config{
		MaxConcurrentExecutions: s.cfg.Execution.MaxConcurrentExecutions,
		MaxHistorySize:          s.cfg.Execution.MaxHistorySize,
	}, logging.WithModule("execution"))

	a.tasks = orchestrator.NewTaskManager(s.searchDirs, a.execs, logging.WithModule("orchestrator"))
	a.tasks.SetRegistry(a.registry)
	if err := a.tasks.RefreshTasks(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// registerFrameworks registers an adapter for every enabled framework entry.
func (a *app) registerFrameworks() {
	names := make([]string, 0, len(a.cfg.Frameworks))
	for name := range a.cfg.Frameworks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fc := a.cfg.Frameworks[name]
		if !fc.IsEnabled() {
			a.log.WithField("framework", name).Debug("Framework disabled")
			continue
		}

		switch name {
		case nox.Name:
			a.registry.Register(nox.New(nox.Config{
				Command: fc.Command,
				Args:    fc.Args,
			}, a.procs, logging.WithModule("nox")))
		default:
			a.log.WithField("framework", name).Warn("No adapter for configured framework")
		}
	}
}

// close stops running executions and kills any subprocess left behind.
func (a *app) close() {
	a.execs.Shutdown()
	if err := a.procs.KillAll(); err != nil {
		a.log.WithError(err).Warn("Error killing subprocesses")
	}
}
