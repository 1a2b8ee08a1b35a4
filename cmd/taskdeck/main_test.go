package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aristath/taskdeck/internal/config"
	"github.com/aristath/taskdeck/internal/execution"
)

// fakeNox stands in for the nox executable.
const fakeNox = `#!/bin/sh
case "$1" in
--version)
	echo "2024.10.9"
	;;
--list-sessions)
	if [ "$2" != "--json" ]; then
		cat <<'TEXT'
Sessions defined in noxfile.py:

* lint
* tests-3.11
* tests-3.12
- always_fail

sessions marked with * are selected, sessions marked with - are skipped.
TEXT
		exit 0
	fi
	cat <<'JSON'
[
  {"session": "lint", "name": "lint", "python": null, "tags": ["quality"], "call_spec": {}},
  {"session": "tests-3.11", "name": "tests", "python": "3.11", "tags": ["test"], "call_spec": {}},
  {"session": "tests-3.12", "name": "tests", "python": "3.12", "tags": ["test"], "call_spec": {}},
  {"session": "always_fail", "name": "always_fail", "python": null, "tags": [], "call_spec": {}}
]
JSON
	;;
-s)
	echo "nox > Running session $2"
	if [ "$2" = "always_fail" ]; then
		echo "nox > Session $2 failed." >&2
		exit 1
	fi
	echo "nox > Session $2 was successful."
	;;
*)
	exit 64
	;;
esac
`

// setupProject creates a project with a noxfile and a config pointing at the fake nox.
func setupProject(t *testing.T) (project, globalConfig string) {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "nox")
	if err := os.WriteFile(bin, []byte(fakeNox), 0755); err != nil {
		t.Fatalf("writing fake nox: %v", err)
	}

	project = t.TempDir()
	if err := os.WriteFile(filepath.Join(project, "noxfile.py"), []byte("import nox\n"), 0644); err != nil {
		t.Fatalf("writing noxfile: %v", err)
	}

	writeProjectConfig(t, project, map[string]any{
		"frameworks": map[string]any{
			"nox": map[string]any{"command": bin},
		},
	})

	return project, filepath.Join(t.TempDir(), "config.json")
}

// writeProjectConfig replaces the project's .taskdeck/config.json with cfg.
func writeProjectConfig(t *testing.T, project string, cfg map[string]any) {
	t.Helper()

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(project, ".taskdeck"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config.ProjectPath(project), data, 0644); err != nil {
		t.Fatal(err)
	}
}

// setupProjectWithHistory is setupProject with an execution section in the project config.
func setupProjectWithHistory(t *testing.T, maxConcurrent, maxHistory int) (project, globalConfig string) {
	t.Helper()

	project, globalConfig = setupProject(t)
	data, err := os.ReadFile(config.ProjectPath(project))
	if err != nil {
		t.Fatal(err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	cfg["execution"] = map[string]any{
		"max_concurrent_executions": maxConcurrent,
		"max_history_size":          maxHistory,
	}
	writeProjectConfig(t, project, cfg)
	return project, globalConfig
}

// runCLI runs the root command with the given arguments and captures its output.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &errOut

	err = cmd.Run(context.Background(), append([]string{"taskdeck"}, args...))
	return out.String(), errOut.String(), err
}

func TestResolveSearchDirs(t *testing.T) {
	tests := []struct {
		name string
		root string
		dirs []string
		want []string
	}{
		{
			name: "no dirs means root",
			root: "/work/project",
			want: []string{"/work/project"},
		},
		{
			name: "relative dirs join the root",
			root: "/work/project",
			dirs: []string{"api", "./web/"},
			want: []string{"/work/project/api", "/work/project/web"},
		},
		{
			name: "absolute dirs are kept",
			root: "/work/project",
			dirs: []string{"/other"},
			want: []string{"/other"},
		},
		{
			name: "duplicates collapse",
			root: "/work/project",
			dirs: []string{"api", "/work/project/api"},
			want: []string{"/work/project/api"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveSearchDirs(tt.root, tt.dirs)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolveSearchDirs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListCommand(t *testing.T) {
	project, global := setupProject(t)

	out, _, err := runCLI(t, "--project", project, "--config", global, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	for _, want := range []string{"lint", "tests-3.11", "tests-3.12", "always_fail", "idle", "4 tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestListCommand_Filters(t *testing.T) {
	project, global := setupProject(t)

	out, _, err := runCLI(t, "--project", project, "--config", global, "list", "--matrix", "tests")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "tests-3.11") || !strings.Contains(out, "2 tasks") {
		t.Errorf("expected the tests variants:\n%s", out)
	}
	if strings.Contains(out, "lint") {
		t.Errorf("lint should be filtered out:\n%s", out)
	}

	out, _, err = runCLI(t, "--project", project, "--config", global, "list", "--tag", "nope")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("expected empty result:\n%s", out)
	}
}

func TestRunCommand_Success(t *testing.T) {
	project, global := setupProject(t)

	out, _, err := runCLI(t, "--project", project, "--config", global, "run", "lint", "tests-3.12")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, want := range []string{
		"[lint] nox > Running session lint",
		"[tests-3.12] nox > Session tests-3.12 was successful.",
		"completed  lint",
		"completed  tests-3.12",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCommand_Failure(t *testing.T) {
	project, global := setupProject(t)

	out, _, err := runCLI(t, "--project", project, "--config", global, "run", "--quiet", "always_fail")
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
	if !strings.Contains(out, "failed     always_fail") {
		t.Errorf("expected failed status line:\n%s", out)
	}
	if strings.Contains(out, "Running session") {
		t.Errorf("quiet run should not stream output:\n%s", out)
	}
}

func TestRunCommand_UnknownTask(t *testing.T) {
	project, global := setupProject(t)

	_, errOut, err := runCLI(t, "--project", project, "--config", global, "run", "missing")
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
	if !strings.Contains(errOut, "task not found") {
		t.Errorf("expected task not found message, got %q", errOut)
	}
}

func TestRunCommand_ReportsExecutionsDroppedFromHistory(t *testing.T) {
	project, global := setupProjectWithHistory(t, 2, 0)

	out, _, err := runCLI(t, "--project", project, "--config", global, "run", "--quiet", "lint")
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
	if !strings.Contains(out, "unknown    lint (dropped from history)") {
		t.Errorf("expected dropped execution line:\n%s", out)
	}
}

func TestNewApp_ZeroHistoryFromConfig(t *testing.T) {
	project, global := setupProjectWithHistory(t, 2, 0)

	cfg, err := config.Load(global, config.ProjectPath(project))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	s := &settings{
		cfg:         cfg,
		root:        project,
		globalPath:  global,
		projectPath: config.ProjectPath(project),
		searchDirs:  []string{project},
	}

	a, err := newApp(context.Background(), s, io.Discard)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	want := execution.Config{MaxConcurrentExecutions: 2, MaxHistorySize: 0}
	if got := a.execs.Config(); got != want {
		t.Errorf("execution config = %+v, want %+v", got, want)
	}
}

func TestRunCommand_NoArgs(t *testing.T) {
	project, global := setupProject(t)

	if _, _, err := runCLI(t, "--project", project, "--config", global, "run"); err == nil {
		t.Error("expected error when no task ids are given")
	}
}
