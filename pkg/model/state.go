package model

// Status represents the scheduling state of a unit.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusPrepared Status = "prepared"
	StatusDone     Status = "done"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusQueued, StatusPrepared, StatusDone}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the unit can no longer change state.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// ValidStatusTransitions defines the allowed status transitions for units.
// A skipped unit goes from queued to done without passing through here.
var ValidStatusTransitions = map[Status][]Status{
	StatusQueued:   {StatusPrepared},
	StatusPrepared: {StatusDone},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range ValidStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ConfigError{Code: ErrCodeInvalidStatus, Message: "unknown status " + quote(s)}
}

// Result is the classified outcome of a finished unit.
type Result string

const (
	ResultPassed Result = "passed"
	ResultFailed Result = "failed"
	ResultFatal  Result = "fatal"
)

// Results lists every result kind.
var Results = []Result{ResultPassed, ResultFailed, ResultFatal}

// String returns the string representation of the result.
func (r Result) String() string {
	return string(r)
}

// IsPassing reports whether the result counts as a pass.
func (r Result) IsPassing() bool {
	return r == ResultPassed
}

// ParseResult converts a string to a Result.
func ParseResult(s string) (Result, error) {
	for _, r := range Results {
		if string(r) == s {
			return r, nil
		}
	}
	return "", &ConfigError{Code: ErrCodeInvalidStatus, Message: "unknown result " + quote(s)}
}

// RunStatus is the overall state of one scheduling run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusPassed      RunStatus = "passed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// IsTerminal returns true if the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}
