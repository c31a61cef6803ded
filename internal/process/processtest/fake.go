// Package processtest provides a scriptable process.Handle for tests.
package processtest

import (
	"errors"
	"strings"
)

// ErrTimeout is returned by CheckTimeout once ExceedTimeout has been called.
var ErrTimeout = errors.New("processtest: time budget exceeded")

// Handle is a fake process. Its exit is driven by the test: either explicitly
// with Exit, or automatically after a number of IsRunning polls.
type Handle struct {
	// Starts counts Start calls.
	Starts int
	// StartErr is returned from Start; the handle then never runs.
	StartErr error
	// Stops counts Stop calls that killed a running process.
	Stops int
	// FinalStdout is written to stdout at the moment an ExitAfter deadline
	// fires, like output flushed just before exit.
	FinalStdout string

	started bool
	running bool
	exited  bool
	code    int
	polls   int // remaining IsRunning polls before auto exit; <0 disables
	pending int
	timeout bool
	stdout  strings.Builder
	stderr  strings.Builder
	outRead int
	errRead int
}

// New returns a handle that runs until Exit is called.
func New() *Handle {
	return &Handle{polls: -1}
}

// ExitAfter returns a handle that exits with code after it has been polled
// with IsRunning the given number of times once started. polls 0 makes the
// first poll observe the exit.
func ExitAfter(polls, code int) *Handle {
	return &Handle{polls: polls, pending: code}
}

// Exit terminates the process with code.
func (h *Handle) Exit(code int) {
	h.running = false
	h.exited = true
	h.code = code
}

// ExceedTimeout makes the next CheckTimeout on a running process fail.
func (h *Handle) ExceedTimeout() {
	h.timeout = true
}

// WriteStdout appends to the process output.
func (h *Handle) WriteStdout(s string) { h.stdout.WriteString(s) }

// WriteStderr appends to the process error output.
func (h *Handle) WriteStderr(s string) { h.stderr.WriteString(s) }

// Start implements process.Handle.
func (h *Handle) Start() error {
	h.Starts++
	h.started = true
	if h.StartErr != nil {
		return h.StartErr
	}
	h.running = true
	return nil
}

// IsStarted implements process.Handle.
func (h *Handle) IsStarted() bool { return h.started }

// IsRunning implements process.Handle. Each call while running counts as one
// poll toward an ExitAfter deadline.
func (h *Handle) IsRunning() bool {
	if h.running && h.polls >= 0 {
		if h.polls == 0 {
			h.stdout.WriteString(h.FinalStdout)
			h.Exit(h.pending)
		} else {
			h.polls--
		}
	}
	return h.running
}

// ExitCode implements process.Handle.
func (h *Handle) ExitCode() (int, bool) {
	return h.code, h.exited
}

// CheckTimeout implements process.Handle.
func (h *Handle) CheckTimeout() error {
	if !h.running || !h.timeout {
		return nil
	}
	h.Exit(137)
	return ErrTimeout
}

// IncrementalStdout implements process.Handle.
func (h *Handle) IncrementalStdout() string {
	s := h.stdout.String()[h.outRead:]
	h.outRead += len(s)
	return s
}

// IncrementalStderr implements process.Handle.
func (h *Handle) IncrementalStderr() string {
	s := h.stderr.String()[h.errRead:]
	h.errRead += len(s)
	return s
}

// Stop implements process.Handle.
func (h *Handle) Stop() error {
	if !h.running {
		return nil
	}
	h.Stops++
	h.Exit(137)
	return nil
}
