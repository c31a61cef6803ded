package executor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// waitDelay bounds how long output pipes may stay open after the child exits,
// e.g. held by a grandchild that left the process group.
const waitDelay = 2 * time.Second

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("process already started")

// TimeoutError reports a process killed for exceeding its time budget.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("exceeded time budget of %s (ran %s)", e.Budget, e.Elapsed.Round(time.Millisecond))
}

// LocalProcess runs one unit as a local OS process. Start returns as soon as
// the process is spawned; a reaper goroutine records the exit.
type LocalProcess struct {
	argv    []string
	dir     string
	env     []string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	cmd       *exec.Cmd
	started   bool
	running   bool
	exited    bool
	exitCode  int
	startedAt time.Time
	done      chan struct{}

	stdout  lockedBuffer
	stderr  lockedBuffer
	outRead int
	errRead int
}

// NewLocalProcess creates an unstarted process. env entries are KEY=VALUE
// pairs appended to the parent environment. A zero timeout disables the
// budget.
func NewLocalProcess(argv []string, dir string, env []string, timeout time.Duration, logger *slog.Logger) *LocalProcess {
	return &LocalProcess{
		argv:    argv,
		dir:     dir,
		env:     env,
		timeout: timeout,
		logger:  logger.With("component", "local-process"),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Start spawns the process without waiting for it.
func (p *LocalProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.startedAt = p.now()

	if len(p.argv) == 0 {
		close(p.done)
		return errors.New("empty command")
	}

	cmd := exec.Command(p.argv[0], p.argv[1:]...)
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(), p.env...)
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		close(p.done)
		return fmt.Errorf("start %s: %w", p.argv[0], err)
	}
	p.cmd = cmd
	p.running = true
	p.logger.Debug("process started", "command", p.argv, "pid", cmd.Process.Pid)

	go p.reap()
	return nil
}

func (p *LocalProcess) reap() {
	err := p.cmd.Wait()
	code := exitCodeOf(p.cmd.ProcessState, err)

	p.mu.Lock()
	p.running = false
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)

	p.logger.Debug("process exited", "command", p.argv, "exit_code", code)
}

// exitCodeOf maps a wait result to a shell-style exit code: death by signal N
// is reported as 128+N.
func exitCodeOf(ps *os.ProcessState, err error) int {
	if ps == nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ps = exitErr.ProcessState
		}
	}
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}

// IsStarted reports whether Start has been called.
func (p *LocalProcess) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// IsRunning reports whether the process has been spawned and not yet exited.
func (p *LocalProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ExitCode returns the exit code once the process has exited.
func (p *LocalProcess) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

// CheckTimeout kills the process once it has run longer than its budget and
// returns a *TimeoutError.
func (p *LocalProcess) CheckTimeout() error {
	p.mu.Lock()
	if p.timeout <= 0 || !p.running {
		p.mu.Unlock()
		return nil
	}
	elapsed := p.now().Sub(p.startedAt)
	p.mu.Unlock()

	if elapsed <= p.timeout {
		return nil
	}
	p.logger.Warn("process exceeded time budget", "command", p.argv, "budget", p.timeout)
	if err := p.kill(); err != nil {
		return err
	}
	return &TimeoutError{Budget: p.timeout, Elapsed: elapsed}
}

// Stop kills a running process with everything it forked and waits for the
// reaper.
func (p *LocalProcess) Stop() error {
	if !p.IsRunning() {
		return nil
	}
	return p.kill()
}

func (p *LocalProcess) kill() error {
	if err := killProcessGroup(p.cmd); err != nil {
		return fmt.Errorf("kill %s: %w", p.argv[0], err)
	}
	select {
	case <-p.done:
	case <-time.After(waitDelay + time.Second):
		p.logger.Warn("process did not exit after kill", "command", p.argv)
	}
	return nil
}

// IncrementalStdout returns stdout written since the previous call.
func (p *LocalProcess) IncrementalStdout() string {
	s := p.stdout.From(p.outRead)
	p.outRead += len(s)
	return s
}

// IncrementalStderr returns stderr written since the previous call.
func (p *LocalProcess) IncrementalStderr() string {
	s := p.stderr.From(p.errRead)
	p.errRead += len(s)
	return s
}

// lockedBuffer is a bytes.Buffer shared between the copying goroutine of
// os/exec and the poller.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// From returns everything written after offset.
func (b *lockedBuffer) From(offset int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset >= b.buf.Len() {
		return ""
	}
	return string(b.buf.Bytes()[offset:])
}
