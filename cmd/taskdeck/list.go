package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	cli "github.com/urfave/cli/v3"

	"github.com/aristath/taskdeck/internal/task"
)

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List discovered tasks with their status",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "framework",
				Usage: "Only tasks of this framework",
			},
			&cli.StringFlag{
				Name:  "tag",
				Usage: "Only tasks carrying this category tag",
			},
			&cli.StringFlag{
				Name:  "matrix",
				Usage: "Only variants of this matrix group",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, s, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			tasks := a.tasks.GetAllTasks()
			if fw := cmd.String("framework"); fw != "" {
				tasks = intersect(tasks, a.tasks.GetTasksByFramework(fw))
			}
			if tag := cmd.String("tag"); tag != "" {
				tasks = intersect(tasks, a.tasks.GetTasksByCategoryTag(tag))
			}
			if group := cmd.String("matrix"); group != "" {
				tasks = intersect(tasks, a.tasks.GetTasksByMatrixGroup(group))
			}

			out := cmd.Root().Writer
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "STATUS", "FRAMEWORK", "GROUP", "TAGS", "DEFAULT")
			for _, tk := range tasks {
				status, err := a.tasks.GetTaskStatus(tk.ID)
				if err != nil {
					return err
				}
				def := ""
				if tk.IsDefault {
					def = "yes"
				}
				t.Row(tk.ID, string(status), tk.FrameworkName, tk.MatrixGroup, strings.Join(tk.CategoryTags, ","), def)
			}
			fmt.Fprintln(out, t.Render())
			fmt.Fprintf(out, "%d tasks in %s\n", len(tasks), strings.Join(a.searchDirs, ", "))
			return nil
		},
	}
}

// intersect keeps the tasks of base whose ID appears in keep, preserving base order.
func intersect(base, keep []task.Task) []task.Task {
	ids := make(map[string]bool, len(keep))
	for _, t := range keep {
		ids[t.ID] = true
	}
	var out []task.Task
	for _, t := range base {
		if ids[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
