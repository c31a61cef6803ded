package scheduler

import "context"

// Scheduler drives a set of units to completion.
type Scheduler interface {
	// Run blocks until every unit is done or ctx is cancelled. It reports
	// whether every unit passed.
	Run(ctx context.Context) (bool, error)

	// Tick runs a single scheduling iteration. Used for testing.
	Tick(ctx context.Context) (bool, error)
}

// Reporter receives the human-facing progress stream. Presentation is left
// to the implementation.
type Reporter interface {
	Info(line string)
	Error(line string)
	SuccessSummary(line string)
	ErrorSummary(line string)
}

type nopReporter struct{}

func (nopReporter) Info(string)           {}
func (nopReporter) Error(string)          {}
func (nopReporter) SuccessSummary(string) {}
func (nopReporter) ErrorSummary(string)   {}
