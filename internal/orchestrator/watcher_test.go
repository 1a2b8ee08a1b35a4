package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/taskdeck/internal/framework"

	"github.com/aristath/taskdeck/internal/framework/frameworktest"
	"github.com/aristath/taskdeck/internal/logging"
	"github.com/aristath/taskdeck/internal/task"
)

func startWatcher(t *testing.T, dir string) *frameworktest.Framework {
	t.Helper()
	provider := frameworktest.New("nox", nil)
	provider.SetTasks(task.Task{ID: "lint"})

	tm := NewTaskManager([]string{dir}, nil, logging.Discard())
	tm.SetProviders(provider)
	runWatcher(t, tm)
	return provider
}

// runWatcher runs a watcher over tm until the test ends.
func runWatcher(t *testing.T, tm *TaskManager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(tm, []string{"noxfile.py"}, 20*time.Millisecond, logging.Discard()).Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})

	// Give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_RefreshesOnNoxfileChange(t *testing.T) {
	dir := t.TempDir()
	provider := startWatcher(t, dir)

	noxfile := filepath.Join(dir, "noxfile.py")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(noxfile, []byte("import nox\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return provider.ListCalls.Load() >= 1 })

	// The burst collapses into a single refresh
	time.Sleep(100 * time.Millisecond)
	if got := provider.ListCalls.Load(); got != 1 {
		t.Errorf("expected 1 refresh for a burst of writes, got %d", got)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	provider := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("print()\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := provider.ListCalls.Load(); got != 0 {
		t.Errorf("expected no refresh for unrelated files, got %d", got)
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	tm := NewTaskManager([]string{filepath.Join(t.TempDir(), "missing")}, nil, logging.Discard())

	err := NewWatcher(tm, []string{"noxfile.py"}, 0, logging.Discard()).Run(context.Background())
	if err == nil {
		t.Fatal("expected error watching a missing directory")
	}
}

func TestWatcher_PicksUpNoxfileCreatedAfterStartup(t *testing.T) {
	dir := t.TempDir()
	late := frameworktest.New("nox", nil)
	late.SetAvailable(false)
	late.SetTasks(task.Task{ID: "lint", Name: "lint", FrameworkName: "nox"})

	reg := framework.NewRegistry(logging.Discard())
	reg.Register(late)

	tm := NewTaskManager([]string{dir}, nil, logging.Discard())
	tm.SetRegistry(reg)
	if err := tm.RefreshTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(tm.GetAllTasks()); n != 0 {
		t.Fatalf("expected empty catalog before the noxfile exists, got %d tasks", n)
	}
	runWatcher(t, tm)

	late.SetAvailable(true)
	if err := os.WriteFile(filepath.Join(dir, "noxfile.py"), []byte("import nox\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(tm.GetAllTasks()) == 1 })
}
