package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/me/relay/internal/store"
	"github.com/me/relay/pkg/model"
	"github.com/spf13/cobra"
)

func newResultsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "List recorded runs, or the units of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				return printUnits(cmd.Context(), cmd.OutOrStdout(), st, args[0])
			}
			return printRuns(cmd.Context(), cmd.OutOrStdout(), st, limit)
		},
	}

	cmd.Flags().String("db", "", "Results database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func printRuns(ctx context.Context, out io.Writer, st store.Store, limit int) error {
	runs, total, err := st.ListRuns(ctx, model.ListOptions{Limit: limit})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-42s %-12s %6s %6s %6s %6s  %s\n", "RUN", "STATUS", "UNITS", "PASS", "FAIL", "FATAL", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(out, "%-42s %-12s %6d %6d %6d %6d  %s\n",
			r.ID, runStatusColor(r.Status), r.Total, r.Passed, r.Failed, r.Fatal, humanize.Time(r.StartedAt))
	}
	if total > len(runs) {
		fmt.Fprintf(out, "\n%d of %d runs shown\n", len(runs), total)
	}
	return nil
}

func printUnits(ctx context.Context, out io.Writer, st store.Store, runID string) error {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %q not found", runID)
	}
	units, err := st.ListUnits(ctx, runID)
	if err != nil {
		return fmt.Errorf("list units: %w", err)
	}

	fmt.Fprintf(out, "Run %s (%s), started %s\n", run.ID, runStatusColor(run.Status), humanize.Time(run.StartedAt))
	fmt.Fprintf(out, "Manifest: %s\n\n", run.Manifest)
	fmt.Fprintf(out, "%-30s %-10s %-8s %-12s %s\n", "UNIT", "STATUS", "RESULT", "DURATION", "SKIPPED BY")
	for _, u := range units {
		result := "-"
		if u.Result != nil {
			result = resultColor(*u.Result)
		}
		duration := "-"
		if u.DurationMs > 0 {
			duration = (time.Duration(u.DurationMs) * time.Millisecond).String()
		}
		skipped := u.SkippedBy
		if skipped == "" {
			skipped = "-"
		}
		fmt.Fprintf(out, "%-30s %-10s %-8s %-12s %s\n", u.Name, u.Status, result, duration, skipped)
	}
	return nil
}

func resultColor(r model.Result) string {
	switch r {
	case model.ResultPassed:
		return color.GreenString("%-8s", r)
	case model.ResultFailed:
		return color.YellowString("%-8s", r)
	default:
		return color.RedString("%-8s", r)
	}
}

func runStatusColor(s model.RunStatus) string {
	switch s {
	case model.RunStatusPassed:
		return color.GreenString("%-12s", s)
	case model.RunStatusFailed:
		return color.RedString("%-12s", s)
	default:
		return fmt.Sprintf("%-12s", s)
	}
}
