package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/relay/internal/optimizer"
	"github.com/me/relay/internal/process"
	"github.com/me/relay/internal/processset"
	"github.com/me/relay/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	// ParallelLimit caps the number of prepared (running) units.
	ParallelLimit int
	// PollInterval is the pause between iterations.
	PollInterval time.Duration
	// StartStagger is the pause after each process start.
	StartStagger time.Duration
	// ProgressInterval re-emits an unchanged progress line this often.
	ProgressInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ParallelLimit:    50,
		PollInterval:     100 * time.Millisecond,
		StartStagger:     50 * time.Millisecond,
		ProgressInterval: 10 * time.Second,
	}
}

// Loop is a single-threaded, poll-based scheduler. Concurrency comes only
// from the child processes it starts; the set is never touched from another
// goroutine.
type Loop struct {
	set      *processset.Set
	config   Config
	strategy optimizer.Strategy
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	started        time.Time
	initialized    bool
	lastProgress   string
	lastProgressAt time.Time
}

var _ Scheduler = (*Loop)(nil)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithStrategy replaces the MaxTotalDelay ordering strategy.
func WithStrategy(s optimizer.Strategy) LoopOption {
	return func(l *Loop) { l.strategy = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

// WithSleep overrides the pause between iterations and after process starts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) LoopOption {
	return func(l *Loop) { l.sleep = sleep }
}

// NewLoop creates a scheduler loop over set. A nil reporter discards the
// progress stream.
func NewLoop(set *processset.Set, cfg Config, reporter Reporter, logger *slog.Logger, opts ...LoopOption) (*Loop, error) {
	if cfg.ParallelLimit < 1 {
		return nil, model.NewConfigError(model.ErrCodeInvalidParallelLimit, "",
			"parallel limit must be at least 1, got %d", cfg.ParallelLimit)
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	l := &Loop{
		set:      set,
		config:   cfg,
		strategy: optimizer.MaxTotalDelay{},
		reporter: reporter,
		logger:   logger.With("component", "scheduler"),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run drives every unit to done and reports whether all of them passed.
// Configuration errors are returned before any process starts. When ctx is
// cancelled, running processes are stopped and ctx.Err() is returned.
func (l *Loop) Run(ctx context.Context) (bool, error) {
	if err := l.init(); err != nil {
		return false, err
	}
	l.logger.Info("scheduler started",
		"units", l.set.Len(),
		"parallel_limit", l.config.ParallelLimit,
		"poll_interval", l.config.PollInterval)

	for !l.finished() {
		if err := ctx.Err(); err != nil {
			l.abort()
			return false, err
		}
		if _, err := l.Tick(ctx); err != nil {
			l.abort()
			return false, err
		}
		if l.finished() {
			break
		}
		if err := l.sleep(ctx, l.config.PollInterval); err != nil {
			l.abort()
			return false, err
		}
	}

	return l.finalize(), nil
}

// init orders the set and admits the first dependency-free units.
func (l *Loop) init() error {
	if l.initialized {
		return nil
	}
	scores, err := l.set.OptimizeOrder(l.strategy)
	if err != nil {
		return fmt.Errorf("optimize order: %w", err)
	}
	l.started = l.now()
	l.initialized = true
	for _, w := range l.set.All() {
		l.logger.Debug("unit ordered", "unit", w.Name(), "score", scores[w.Name()])
	}
	return l.admitUndelayed()
}

// Tick runs a single scheduling iteration and reports whether every unit is
// done.
func (l *Loop) Tick(ctx context.Context) (bool, error) {
	if err := l.init(); err != nil {
		return false, err
	}

	// Phase 1: start, poll and finish prepared units.
	if err := l.advancePrepared(ctx); err != nil {
		return false, fmt.Errorf("phase 1 (prepared): %w", err)
	}

	// Phase 2: fill free slots with dependency-free units.
	if err := l.admitUndelayed(); err != nil {
		return false, fmt.Errorf("phase 2 (capacity): %w", err)
	}

	// Phase 3: release units whose dependency finished long enough ago.
	if err := l.admitDelayed(); err != nil {
		return false, fmt.Errorf("phase 3 (dependency): %w", err)
	}

	l.reportProgress()
	return l.finished(), nil
}

func (l *Loop) finished() bool {
	return len(l.set.Get(model.StatusQueued)) == 0 && len(l.set.Get(model.StatusPrepared)) == 0
}

// advancePrepared starts prepared units that have not been started yet and
// finishes the ones whose process exited or timed out.
func (l *Loop) advancePrepared(ctx context.Context) error {
	for _, w := range l.set.Get(model.StatusPrepared) {
		h := w.Handle()
		if !h.IsStarted() {
			w.Start()
			l.reporter.Info(fmt.Sprintf("started %s", w.Name()))
			l.logger.Debug("unit started", "unit", w.Name())
			if err := l.sleep(ctx, l.config.StartStagger); err != nil {
				return nil
			}
			continue
		}

		if msg, timedOut := w.CheckTimeout(); timedOut {
			l.logger.Warn("unit timed out", "unit", w.Name())
			l.reporter.Error("timeout: " + msg)
			if err := l.completed(w); err != nil {
				return err
			}
			continue
		}

		l.drainOutput(w)
		if h.IsRunning() {
			continue
		}
		// Pick up whatever was written between the drain and the exit.
		l.drainOutput(w)
		if err := w.SetStatus(model.StatusDone); err != nil {
			return err
		}
		if err := l.completed(w); err != nil {
			return err
		}
	}
	return nil
}

// completed reports a finished unit and cascades a non-passing result to
// its dependents.
func (l *Loop) completed(w *process.Wrapper) error {
	result, _ := w.Result()
	line := fmt.Sprintf("%s %s (%s)", result, w.Name(), w.Duration().Round(time.Millisecond))
	if result.IsPassing() {
		l.reporter.Info(line)
		return nil
	}
	l.reporter.Error(line)

	skipped, err := l.set.CascadeFailure(w.Name())
	if err != nil {
		return err
	}
	for _, s := range skipped {
		l.reporter.Info(fmt.Sprintf("skipped %s because %s %s", s.Name(), w.Name(), result))
	}
	return nil
}

func (l *Loop) drainOutput(w *process.Wrapper) {
	h := w.Handle()
	if out := h.IncrementalStdout(); out != "" {
		l.logger.Debug("stdout", "unit", w.Name(), "output", strings.TrimRight(out, "\n"))
	}
	if out := h.IncrementalStderr(); out != "" {
		l.logger.Debug("stderr", "unit", w.Name(), "output", strings.TrimRight(out, "\n"))
	}
}

// admitUndelayed promotes queued units without a dependency while a slot is
// free.
func (l *Loop) admitUndelayed() error {
	running := len(l.set.Get(model.StatusPrepared))
	for _, w := range l.set.Get(model.StatusQueued) {
		if running >= l.config.ParallelLimit {
			return nil
		}
		if w.IsDelayed() {
			continue
		}
		if err := w.SetStatus(model.StatusPrepared); err != nil {
			return err
		}
		running++
	}
	return nil
}

// admitDelayed promotes queued units whose dependency is done and whose
// delay has elapsed, while a slot is free.
func (l *Loop) admitDelayed() error {
	running := len(l.set.Get(model.StatusPrepared))
	now := l.now()
	for _, w := range l.set.Get(model.StatusQueued) {
		if running >= l.config.ParallelLimit {
			return nil
		}
		if !w.IsDelayed() {
			continue
		}
		dep, ok := l.set.Unit(w.DependsOn())
		if !ok {
			continue
		}
		finishedAt, done := dep.FinishedAt()
		if !done || now.Sub(finishedAt) < w.Delay() {
			continue
		}
		if err := w.SetStatus(model.StatusPrepared); err != nil {
			return err
		}
		l.logger.Debug("dependency released unit", "unit", w.Name(), "depends_on", dep.Name(),
			"waited", now.Sub(finishedAt))
		running++
	}
	return nil
}

// reportProgress emits the counts when they changed, or when they have been
// unchanged for ProgressInterval.
func (l *Loop) reportProgress() {
	byStatus := l.set.CountByStatus()
	byResult := l.set.CountByResult()
	line := fmt.Sprintf("progress: %d queued, %d running, %d done (%d passed, %d failed, %d fatal)",
		byStatus[model.StatusQueued], byStatus[model.StatusPrepared], byStatus[model.StatusDone],
		byResult[model.ResultPassed], byResult[model.ResultFailed], byResult[model.ResultFatal])

	now := l.now()
	if line == l.lastProgress && now.Sub(l.lastProgressAt) < l.config.ProgressInterval {
		return
	}
	l.lastProgress = line
	l.lastProgressAt = now
	l.reporter.Info(line)
}

// finalize reports the summary and returns whether every unit passed.
func (l *Loop) finalize() bool {
	byResult := l.set.CountByResult()
	elapsed := l.now().Sub(l.started).Round(time.Millisecond)
	line := fmt.Sprintf("%d units in %s: %d passed, %d failed, %d fatal",
		l.set.Len(), elapsed,
		byResult[model.ResultPassed], byResult[model.ResultFailed], byResult[model.ResultFatal])

	allPassed := l.set.AllPassed()
	if allPassed {
		l.reporter.SuccessSummary(line)
	} else {
		l.reporter.ErrorSummary(line)
	}
	l.logger.Info("scheduler finished", "all_passed", allPassed, "elapsed", elapsed)
	return allPassed
}

// abort stops every running process. Units are left in their current status.
func (l *Loop) abort() {
	for _, w := range l.set.Get(model.StatusPrepared) {
		h := w.Handle()
		if !h.IsStarted() || !h.IsRunning() {
			continue
		}
		if err := h.Stop(); err != nil {
			l.logger.Warn("stop unit", "unit", w.Name(), "error", err)
			continue
		}
		l.logger.Info("unit stopped", "unit", w.Name())
	}
}
