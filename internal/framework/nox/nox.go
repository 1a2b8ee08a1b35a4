// Package nox adapts the nox session runner to the framework contract.
package nox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/aristath/taskdeck/internal/framework"
	"github.com/aristath/taskdeck/internal/process"
	"github.com/aristath/taskdeck/internal/task"
)

// Name is the registry key of the nox framework.
const Name = "nox"

// Noxfile is the file whose presence marks a directory as a nox project.
const Noxfile = "noxfile.py"

// Config configures how nox is invoked.
type Config struct {
	Command string   // Executable name or path (default "nox")
	Args    []string // Extra global arguments placed before the subcommand arguments
	Retry   RetryConfig
}

// RetryConfig configures exponential backoff for session listing.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultRetryConfig returns the listing retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
		MaxRetries:      3,
	}
}

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() Config {
	return Config{Command: "nox", Retry: DefaultRetryConfig()}
}

// Framework discovers and runs nox sessions.
type Framework struct {
	cfg   Config
	procs *process.Manager
	log   *logrus.Entry
}

var _ framework.Framework = (*Framework)(nil)

// New creates the nox framework. Subprocesses are tracked by procs.
func New(cfg Config, procs *process.Manager, log *logrus.Entry) *Framework {
	if cfg.Command == "" {
		cfg.Command = "nox"
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Framework{cfg: cfg, procs: procs, log: log}
}

func (f *Framework) Name() string { return Name }

func (f *Framework) Runner() framework.Runner { return &runner{fw: f} }

func (f *Framework) args(extra ...string) []string {
	out := make([]string, 0, len(f.cfg.Args)+len(extra))
	out = append(out, f.cfg.Args...)
	return append(out, extra...)
}

// projectDirs returns the directories that contain a noxfile.
func projectDirs(dirs []string) []string {
	var out []string
	for _, dir := range dirs {
		if info, err := os.Stat(filepath.Join(dir, Noxfile)); err == nil && !info.IsDir() {
			out = append(out, dir)
		}
	}
	return out
}

// Detect reports whether any directory holds a noxfile and the nox executable runs.
// A missing executable means unavailable, not an error.
func (f *Framework) Detect(ctx context.Context, dirs []string) (bool, error) {
	projects := projectDirs(dirs)
	if len(projects) == 0 {
		return false, nil
	}

	cmd := process.Command(ctx, projects[0], f.cfg.Command, f.args("--version")...)
	if _, _, err := f.procs.Output(cmd); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			f.log.WithField("command", f.cfg.Command).Debug("nox executable not found")
			return false, nil
		}
		return false, fmt.Errorf("%s --version: %w", f.cfg.Command, err)
	}
	return true, nil
}

// ListTasks lists the sessions of every noxfile found in dirs. A directory whose listing
// fails is logged and skipped unless every directory fails.
func (f *Framework) ListTasks(ctx context.Context, dirs []string) ([]task.Task, error) {
	projects := projectDirs(dirs)

	var all []task.Task
	var errs []error
	for _, dir := range projects {
		tasks, err := f.listDir(ctx, dir)
		if err != nil {
			f.log.WithError(err).WithField("dir", dir).Warn("Failed to list nox sessions")
			errs = append(errs, err)
			continue
		}
		all = append(all, tasks...)
	}

	if len(projects) > 0 && len(errs) == len(projects) {
		return nil, errors.Join(errs...)
	}
	return disambiguate(all), nil
}

// listDir lists every session of one noxfile. The plain listing names all sessions and
// marks the default ones; the JSON listing, asked for those sessions explicitly, adds
// python versions, tags and parameters.
func (f *Framework) listDir(ctx context.Context, dir string) ([]task.Task, error) {
	plain, err := f.listing(ctx, dir, "--list-sessions")
	if err != nil {
		return nil, err
	}
	listed := parseListing(plain)
	if len(listed) == 0 {
		return nil, nil
	}

	args := []string{"--list-sessions", "--json", "-s"}
	for _, l := range listed {
		args = append(args, l.signature)
	}
	data, err := f.listing(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	details, err := parseSessions(dir, data)
	if err != nil {
		return nil, err
	}
	return mergeListing(dir, listed, details), nil
}

// listing runs a nox listing command in dir with backoff and returns its stdout.
// Missing executables and clean non-zero exits are not retried.
func (f *Framework) listing(ctx context.Context, dir string, args ...string) ([]byte, error) {
	operation := func() ([]byte, error) {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		cmd := process.Command(ctx, dir, f.cfg.Command, f.args(args...)...)
		stdout, _, err := f.procs.Output(cmd)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			if code, ok := process.ExitCode(err); ok && code > 0 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return stdout, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.Retry.InitialInterval
	policy.MaxInterval = f.cfg.Retry.MaxInterval
	policy.MaxElapsedTime = f.cfg.Retry.MaxElapsedTime

	var b backoff.BackOff = policy
	if f.cfg.Retry.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, f.cfg.Retry.MaxRetries)
	}

	out, err := backoff.RetryWithData(operation, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("listing sessions in %s: %w", dir, err)
	}
	return out, nil
}
