// Package process wraps one externally spawned worker process with the
// scheduling metadata the run loop needs: its dependency, delay, status and
// classified result.
package process

// Handle is an opaque child process. Implementations must never block:
// Start spawns and returns, and every query is a non-blocking read.
type Handle interface {
	// Start spawns the process. A failed start leaves the handle started with
	// no exit code.
	Start() error

	IsStarted() bool
	IsRunning() bool

	// ExitCode returns the exit code and true once the process has exited.
	ExitCode() (int, bool)

	// CheckTimeout returns a non-nil error, after killing the process, once
	// it has been running longer than its budget.
	CheckTimeout() error

	// IncrementalStdout returns output written since the previous call.
	IncrementalStdout() string
	IncrementalStderr() string

	// Stop kills a running process. It is a no-op otherwise.
	Stop() error
}
