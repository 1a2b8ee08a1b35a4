// Package process starts tool subprocesses in their own process group, streams their
// output line by line and keeps track of them so they can be killed on shutdown.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// maxLineSize bounds a single streamed line. Longer lines are split.
const maxLineSize = 1024 * 1024

// waitDelay bounds how long Wait keeps reading pipes after the process exits, in case a
// grandchild still holds them open.
const waitDelay = 5 * time.Second

// LineFunc receives one line of output without its trailing newline.
type LineFunc func(line string)

// Command creates an exec.Cmd running in dir with process group isolation.
// Cancelling ctx kills the whole group, not only the immediate child.
func Command(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// ExitCode extracts the exit code from an error returned by Run or Output.
// ok is false when err did not come from a process that ran and exited.
func ExitCode(err error) (code int, ok bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// Manager tracks running subprocesses and can terminate them all on shutdown.
//
// Usage pattern (typically in main):
//
//	pm := process.NewManager()
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer cancel()
//	go func() {
//		<-ctx.Done()
//		pm.KillAll()
//	}()
type Manager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		procs: make(map[int]*exec.Cmd),
	}
}

// Run starts cmd and streams stdout and stderr to the callbacks, one line at a time.
// Either callback may be nil. Both pipes are drained concurrently before cmd.Wait so
// a chatty process cannot deadlock on a full pipe buffer. A non-zero exit is returned
// as an error wrapping *exec.ExitError; see ExitCode.
func (m *Manager) Run(cmd *exec.Cmd, stdout, stderr LineFunc) error {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	m.Track(cmd)
	defer m.Untrack(cmd)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, stdout)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, stderr)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// Output runs cmd to completion and returns everything it wrote.
func (m *Manager) Output(cmd *exec.Cmd) (stdout []byte, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer
	var mu sync.Mutex
	collect := func(buf *bytes.Buffer) LineFunc {
		return func(line string) {
			mu.Lock()
			defer mu.Unlock()
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}

	err = m.Run(cmd, collect(&outBuf), collect(&errBuf))
	stdout, stderr = outBuf.Bytes(), errBuf.Bytes()
	if err != nil && errBuf.Len() > 0 {
		return stdout, stderr, fmt.Errorf("%w (stderr: %s)", err, bytes.TrimSpace(stderr))
	}
	return stdout, stderr, err
}

func scanLines(r io.Reader, fn LineFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if fn != nil {
			fn(scanner.Text())
		}
	}
	// Keep draining after a scan error so the writer never blocks
	_, _ = io.Copy(io.Discard, r)
}

// killProcessGroup kills the entire process group associated with cmd.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}

	// Negative PID targets the group
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}
	return nil
}

// Track registers a started subprocess.
func (m *Manager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a subprocess once it has been waited for.
func (m *Manager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, cmd.Process.Pid)
}

// KillAll terminates every tracked process group.
func (m *Manager) KillAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for pid, cmd := range m.procs {
		if err := killProcessGroup(cmd); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill process %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of tracked processes.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procs)
}
