package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits for changes to settle before refreshing.
const DefaultDebounce = 500 * time.Millisecond

// Watcher refreshes a task catalog when a task definition file changes in one of the
// search directories.
type Watcher struct {
	tm       *TaskManager
	files    map[string]bool
	debounce time.Duration
	log      *logrus.Entry
}

// NewWatcher watches for changes to files (base names such as "noxfile.py") in the
// task manager's search directories. A non-positive debounce uses DefaultDebounce.
func NewWatcher(tm *TaskManager, files []string, debounce time.Duration, log *logrus.Entry) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return &Watcher{tm: tm, files: set, debounce: debounce, log: log}
}

// Run watches until ctx is done. Bursts of events collapse into one refresh.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.tm.SearchDirs() {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	// Stopped timer; armed by the first relevant event
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Base(ev.Name)] {
				continue
			}
			w.log.WithField("file", ev.Name).WithField("op", ev.Op.String()).Debug("Task definitions changed")
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("File watcher error")

		case <-timer.C:
			if err := w.tm.RefreshTasks(ctx); err != nil {
				w.log.WithError(err).Warn("Task refresh after file change failed")
			}
		}
	}
}
