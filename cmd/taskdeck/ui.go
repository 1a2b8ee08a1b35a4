package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	cli "github.com/urfave/cli/v3"

	"github.com/aristath/taskdeck/internal/events"
	"github.com/aristath/taskdeck/internal/framework/nox"
	"github.com/aristath/taskdeck/internal/logging"
	"github.com/aristath/taskdeck/internal/orchestrator"
	"github.com/aristath/taskdeck/internal/tui"
)

func newUICommand() *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Browse and run tasks in the terminal UI",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			// Logs go to a file so they do not corrupt the screen
			logPath := s.cfg.LogFile
			if logPath == "" {
				logPath = filepath.Join(s.root, ".taskdeck", "taskdeck.log")
			}
			if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
				return fmt.Errorf("creating log directory: %w", err)
			}
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer logFile.Close()

			a, err := newApp(ctx, s, logFile)
			if err != nil {
				return err
			}
			defer a.close()

			bus := events.NewEventBus()
			defer bus.Close()
			a.execs.AddObserver(events.NewBridge(bus))
			a.tasks.SetEventBus(bus)

			watchCtx, stopWatch := context.WithCancel(ctx)
			defer stopWatch()
			watcher := orchestrator.NewWatcher(a.tasks, []string{nox.Noxfile}, orchestrator.DefaultDebounce, logging.WithModule("watcher"))
			go func() {
				if err := watcher.Run(watchCtx); err != nil {
					a.log.WithError(err).Warn("Task file watcher stopped")
				}
			}()

			model := tui.New(a.tasks, a.execs, bus, s.globalPath, s.projectPath)

			// Run the program in a goroutine so a signal can stop it
			p := tea.NewProgram(model, tea.WithAltScreen())
			errChan := make(chan error, 1)
			go func() {
				_, err := p.Run()
				errChan <- err
			}()

			select {
			case err := <-errChan:
				return err
			case <-ctx.Done():
				a.log.Info("Shutdown signal received, cleaning up")
				p.Quit()

				select {
				case err := <-errChan:
					return err
				case <-time.After(10 * time.Second):
					a.log.Warn("Shutdown timeout exceeded, forcing exit")
					return nil
				}
			}
		},
	}
}
