package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/me/relay/internal/config"
	"github.com/me/relay/internal/executor"
	"github.com/me/relay/internal/logging"
	"github.com/me/relay/internal/manifest"
	"github.com/me/relay/internal/optimizer"
	"github.com/me/relay/internal/process"
	"github.com/me/relay/internal/processset"
	"github.com/me/relay/internal/scheduler"
	"github.com/me/relay/internal/store"
	"github.com/me/relay/pkg/model"
	"github.com/spf13/cobra"
)

// ErrUnitsFailed is returned by the run command when at least one unit did
// not pass and failures are not ignored.
var ErrUnitsFailed = errors.New("one or more units did not pass")

func newRunCmd() *cobra.Command {
	var only, exclude []string

	cmd := &cobra.Command{
		Use:   "run <manifest.yml>",
		Short: "Run every unit of a suite manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allPassed, err := runSuite(cmd.Context(), args[0], only, exclude, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !allPassed && !cfg.IgnoreFailures {
				return ErrUnitsFailed
			}
			return nil
		},
	}

	cmd.Flags().IntP("parallel", "p", 0, "Maximum number of units running at once")
	cmd.Flags().Duration("timeout", 0, "Default time budget of a unit")
	cmd.Flags().String("strategy", "", "Ordering strategy (max-total-delay, insertion)")
	cmd.Flags().String("db", "", "Results database path")
	cmd.Flags().Bool("no-store", false, "Do not record the run in the results database")
	cmd.Flags().Bool("ignore-failures", false, "Exit 0 even when units fail")
	cmd.Flags().String("workdir", "", "Working directory of units (default: manifest directory)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only these units")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Skip these units")

	return cmd
}

// runSuite schedules the units of the manifest at path and reports whether
// all of them passed.
func runSuite(ctx context.Context, path string, only, exclude []string, out io.Writer) (bool, error) {
	specs, err := manifest.Load(path)
	if err != nil {
		return false, err
	}
	specs = manifest.Filter(specs, only, exclude)

	launcher := executor.NewLauncher(unitWorkDir(path), cfg.Timeout, logger)

	// Validate the whole suite before anything is recorded or started.
	dry, err := buildSet(specs, launcher, nil)
	if err != nil {
		return false, err
	}
	if _, err := dry.BuildTree(); err != nil {
		return false, err
	}

	strategy, ok := optimizer.ByName(cfg.Strategy)
	if !ok {
		return false, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}

	var (
		st   store.Store
		run  *model.Run
		pubs = process.MultiPublisher{statusLogger()}
	)
	if !cfg.NoStore && cfg.DBPath != "" {
		st, err = openStore(ctx, cfg.DBPath)
		if err != nil {
			return false, err
		}
		defer st.Close()

		run = &model.Run{
			ID:            store.NewRunID(),
			Manifest:      path,
			ParallelLimit: cfg.ParallelLimit,
			Status:        model.RunStatusRunning,
			Total:         len(specs),
			StartedAt:     time.Now().UTC(),
		}
		if err := st.CreateRun(ctx, run); err != nil {
			return false, fmt.Errorf("create run: %w", err)
		}
		pubs = append(pubs, store.NewRunPublisher(st, run.ID, logger))
	}

	set, err := buildSet(specs, launcher, pubs)
	if err != nil {
		return false, err
	}

	var sched scheduler.Scheduler
	sched, err = scheduler.NewLoop(set, loopConfig(cfg), logging.NewReporter(logger, out), logger,
		scheduler.WithStrategy(strategy))
	if err != nil {
		return false, err
	}

	allPassed, runErr := sched.Run(ctx)

	if run != nil {
		finishRun(st, run, set, allPassed, runErr)
		fmt.Fprintf(out, "Run %s recorded in %s\n", run.ID, cfg.DBPath)
	}
	return allPassed, runErr
}

// buildSet wraps every spec in a process and adds it to a new set.
func buildSet(specs []model.UnitSpec, launcher *executor.Launcher, pub process.Publisher) (*processset.Set, error) {
	opts := []process.Option{process.WithLogger(logger)}
	if pub != nil {
		opts = append(opts, process.WithPublisher(pub))
	}

	set := processset.New(logger)
	for _, spec := range specs {
		h, err := launcher.Handle(spec)
		if err != nil {
			return nil, err
		}
		w, err := process.New(spec, h, opts...)
		if err != nil {
			return nil, err
		}
		if err := set.Add(w); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// statusLogger records every unit status change at debug level.
func statusLogger() process.Publisher {
	l := logger.With("component", "status")
	return process.PublisherFunc(func(ev process.Event) error {
		attrs := []any{"unit", ev.Name, "status", ev.Status}
		if ev.Result != nil {
			attrs = append(attrs, "result", *ev.Result, "duration", ev.Duration)
		}
		if ev.SkippedBy != "" {
			attrs = append(attrs, "skipped_by", ev.SkippedBy)
		}
		l.Debug("unit status", attrs...)
		return nil
	})
}

func finishRun(st store.Store, run *model.Run, set *processset.Set, allPassed bool, runErr error) {
	counts := set.CountByResult()
	now := time.Now().UTC()
	run.Passed = counts[model.ResultPassed]
	run.Failed = counts[model.ResultFailed]
	run.Fatal = counts[model.ResultFatal]
	run.FinishedAt = &now

	switch {
	case runErr != nil:
		run.Status = model.RunStatusInterrupted
	case allPassed:
		run.Status = model.RunStatusPassed
	default:
		run.Status = model.RunStatusFailed
	}

	// The run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.FinishRun(ctx, run); err != nil {
		logger.Warn("failed to record run result", "run_id", run.ID, "error", err)
	}
}

func loopConfig(c *config.RunConfig) scheduler.Config {
	return scheduler.Config{
		ParallelLimit:    c.ParallelLimit,
		PollInterval:     c.PollInterval,
		StartStagger:     c.StartStagger,
		ProgressInterval: c.ProgressInterval,
	}
}

// unitWorkDir returns the configured working directory, or the directory of
// the manifest.
func unitWorkDir(manifestPath string) string {
	if cfg.WorkDir != "" {
		return cfg.WorkDir
	}
	dir, err := filepath.Abs(filepath.Dir(manifestPath))
	if err != nil {
		return filepath.Dir(manifestPath)
	}
	return dir
}

// openStore opens and migrates the results database, creating its directory.
func openStore(ctx context.Context, dbPath string) (*store.SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}
