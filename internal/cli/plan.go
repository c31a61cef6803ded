package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/me/relay/internal/executor"
	"github.com/me/relay/internal/graph"
	"github.com/me/relay/internal/manifest"
	"github.com/me/relay/internal/optimizer"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var only, exclude []string
	var showTree bool

	cmd := &cobra.Command{
		Use:   "plan <manifest.yml>",
		Short: "Show the order in which units would be started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPlan(cmd.OutOrStdout(), args[0], only, exclude, showTree)
		},
	}

	cmd.Flags().String("strategy", "", "Ordering strategy (max-total-delay, insertion)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Plan only these units")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Leave out these units")
	cmd.Flags().BoolVar(&showTree, "tree", false, "Also print the dependency tree")

	return cmd
}

func printPlan(out io.Writer, path string, only, exclude []string, showTree bool) error {
	specs, err := manifest.Load(path)
	if err != nil {
		return err
	}
	specs = manifest.Filter(specs, only, exclude)

	set, err := buildSet(specs, executor.NewLauncher(unitWorkDir(path), cfg.Timeout, logger), nil)
	if err != nil {
		return err
	}
	strategy, ok := optimizer.ByName(cfg.Strategy)
	if !ok {
		return fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
	scores, err := set.OptimizeOrder(strategy)
	if err != nil {
		return err
	}
	height, err := set.Height()
	if err != nil {
		return err
	}

	tree, err := set.BuildTree()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Fprintf(out, "%-4s %-30s %-10s %-30s %s\n", "#", "UNIT", "SCORE", "AFTER", "DELAY")
	for i, w := range set.All() {
		after, delay := "-", "-"
		if parent, _ := tree.Parent(w.Name()); parent != graph.Root {
			after = parent
			delay = fmt.Sprintf("%g min", tree.Weight(w.Name()))
		}
		fmt.Fprintf(out, "%-4d %-30s %-10g %-30s %s\n", i+1, w.Name(), scores[w.Name()], after, delay)
	}
	fmt.Fprintf(out, "\n%d units, strategy %s, critical path %g min\n", set.Len(), strategy.Name(), height)

	if showTree {
		fmt.Fprintf(out, "\n%s", tree.String())
	}
	return nil
}
