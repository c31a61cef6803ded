package process

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/me/relay/pkg/model"
)

// Wrapper is one schedulable unit: a child process plus its dependency,
// delay, status and result.
//
// A Wrapper is owned by the run loop and is not safe for concurrent use.
type Wrapper struct {
	name      string
	handle    Handle
	dependsOn string
	delay     float64 // minutes; meaningful only when dependsOn != ""

	status     model.Status
	result     model.Result
	startedAt  time.Time
	finishedAt time.Time
	skippedBy  string
	timedOut   bool

	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithPublisher attaches a status-change publisher.
func WithPublisher(p Publisher) Option {
	return func(w *Wrapper) { w.publisher = p }
}

// WithLogger sets the logger used for publisher failures and timeouts.
func WithLogger(l *slog.Logger) Option {
	return func(w *Wrapper) { w.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Wrapper) { w.now = now }
}

// New creates a queued Wrapper for spec backed by h. Dependency and delay
// must be given together; a delay must be a finite, non-negative number of
// minutes.
func New(spec model.UnitSpec, h Handle, opts ...Option) (*Wrapper, error) {
	if spec.Name == "" {
		return nil, model.NewConfigError(model.ErrCodeInvalidUnit, "", "unit name is empty")
	}
	if h == nil {
		return nil, model.NewConfigError(model.ErrCodeInvalidUnit, spec.Name, "no process handle")
	}

	w := &Wrapper{
		name:   spec.Name,
		handle: h,
		status: model.StatusQueued,
		logger: slog.Default(),
		now:    time.Now,
	}

	switch {
	case spec.DependsOn == nil && spec.DelayMinutes == nil:
	case spec.DependsOn != nil && spec.DelayMinutes == nil:
		return nil, model.NewConfigError(model.ErrCodeInvalidDelay, spec.Name,
			"depends on %q but has no delay", *spec.DependsOn)
	case spec.DependsOn == nil && spec.DelayMinutes != nil:
		return nil, model.NewConfigError(model.ErrCodeInvalidDelay, spec.Name,
			"has a delay of %g minutes but no dependency", *spec.DelayMinutes)
	default:
		d := *spec.DelayMinutes
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return nil, model.NewConfigError(model.ErrCodeInvalidDelay, spec.Name,
				"delay must be a non-negative number of minutes, got %g", d)
		}
		if *spec.DependsOn == "" {
			return nil, model.NewConfigError(model.ErrCodeInvalidUnit, spec.Name, "dependency name is empty")
		}
		w.dependsOn = *spec.DependsOn
		w.delay = d
	}

	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("unit", w.name)
	return w, nil
}

// Name returns the unit name.
func (w *Wrapper) Name() string { return w.name }

// Handle returns the underlying process handle.
func (w *Wrapper) Handle() Handle { return w.handle }

// DependsOn returns the dependency name, or "" for a dependency-free unit.
func (w *Wrapper) DependsOn() string { return w.dependsOn }

// IsDelayed reports whether the unit waits on a dependency.
func (w *Wrapper) IsDelayed() bool { return w.dependsOn != "" }

// DelayMinutes returns the configured delay in minutes.
func (w *Wrapper) DelayMinutes() float64 { return w.delay }

// Delay returns the configured delay as a duration.
func (w *Wrapper) Delay() time.Duration {
	return time.Duration(w.delay * float64(time.Minute))
}

// Status returns the current status.
func (w *Wrapper) Status() model.Status { return w.status }

// Result returns the frozen result. ok is false until the unit is done.
func (w *Wrapper) Result() (model.Result, bool) {
	if w.status != model.StatusDone {
		return "", false
	}
	return w.result, true
}

// FinishedAt returns the completion time. ok is false until the unit is done.
func (w *Wrapper) FinishedAt() (time.Time, bool) {
	if w.status != model.StatusDone {
		return time.Time{}, false
	}
	return w.finishedAt, true
}

// Duration returns how long the process ran, or 0 if it never started or is
// still running.
func (w *Wrapper) Duration() time.Duration {
	if w.startedAt.IsZero() || w.status != model.StatusDone {
		return 0
	}
	return w.finishedAt.Sub(w.startedAt)
}

// SkippedBy names the failed ancestor that caused this unit to be skipped.
func (w *Wrapper) SkippedBy() string { return w.skippedBy }

// TimedOut reports whether the unit was terminated for exceeding its budget.
func (w *Wrapper) TimedOut() bool { return w.timedOut }

// Start spawns the process. A start error is not returned to the loop: the
// unit finishes on the next poll without an exit code and resolves to failed.
func (w *Wrapper) Start() {
	w.startedAt = w.now()
	if err := w.handle.Start(); err != nil {
		w.logger.Warn("process start failed", "error", err)
	}
}

// SetStatus moves the unit to next. Moving to done freezes the result from the
// process exit code. The transition is published to the attached publisher.
func (w *Wrapper) SetStatus(next model.Status) error {
	if _, err := model.ParseStatus(string(next)); err != nil {
		return model.NewConfigError(model.ErrCodeInvalidStatus, w.name, "unknown status %q", string(next))
	}
	if !w.status.CanTransitionTo(next) {
		return &model.InvalidTransitionError{Unit: w.name, From: w.status, To: next}
	}

	if next == model.StatusDone {
		code, ok := w.handle.ExitCode()
		result := ResolveResult(code, ok)
		if w.timedOut {
			result = model.ResultFatal
		}
		w.result = result
		w.finishedAt = w.now()
	}
	w.status = next
	w.publish()
	return nil
}

// Skip finishes a unit that never ran because its ancestor by did not pass.
// The process is never started. Skipping a done unit is a no-op.
func (w *Wrapper) Skip(by string) error {
	if w.status == model.StatusDone {
		return nil
	}
	if w.handle.IsStarted() && w.handle.IsRunning() {
		if err := w.handle.Stop(); err != nil {
			w.logger.Warn("stop skipped unit", "error", err)
		}
	}
	w.skippedBy = by
	w.result = model.ResultFailed
	w.finishedAt = w.now()
	w.status = model.StatusDone
	w.publish()
	return nil
}

// CheckTimeout kills and finishes the unit once its process has exceeded its
// budget. It returns a human-readable message and true in that case; otherwise
// it has no side effect.
func (w *Wrapper) CheckTimeout() (string, bool) {
	if w.status != model.StatusPrepared || !w.handle.IsStarted() {
		return "", false
	}
	err := w.handle.CheckTimeout()
	if err == nil {
		return "", false
	}
	w.timedOut = true
	if serr := w.SetStatus(model.StatusDone); serr != nil {
		w.logger.Error("finish timed out unit", "error", serr)
	}
	return fmt.Sprintf("%s: %v", w.name, err), true
}

// Announce publishes the current status without changing it.
func (w *Wrapper) Announce() {
	w.publish()
}

// Event returns the current state as a publishable event.
func (w *Wrapper) Event() Event {
	ev := Event{
		Name:         w.name,
		Status:       w.status,
		DependsOn:    w.dependsOn,
		DelayMinutes: w.delay,
		SkippedBy:    w.skippedBy,
	}
	if r, ok := w.Result(); ok {
		ev.Result = &r
		at := w.finishedAt
		ev.FinishedAt = &at
		ev.Duration = w.Duration()
	}
	return ev
}

// publish hands the current state to the publisher. A failing or panicking
// publisher is logged and never affects the unit.
func (w *Wrapper) publish() {
	if w.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Warn("publisher panicked", "status", w.status, "panic", r)
		}
	}()
	if err := w.publisher.PublishUnitStatus(w.Event()); err != nil {
		w.logger.Warn("publish unit status", "status", w.status, "error", err)
	}
}
