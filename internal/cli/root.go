// Package cli implements the relay command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/me/relay/internal/config"
	"github.com/me/relay/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time.
var Version = "dev"

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    *config.RunConfig
	logger *slog.Logger
)

// flagKeys maps command line flags to configuration keys. A flag overrides
// the file and environment only when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"log-format":      "log_format",
	"parallel":        "parallel_limit",
	"timeout":         "timeout",
	"strategy":        "strategy",
	"db":              "db_path",
	"no-store":        "no_store",
	"ignore-failures": "ignore_failures",
	"workdir":         "workdir",
	"addr":            "server.addr",
}

// NewRootCmd creates the root cobra command for the relay CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "relay runs test suites as parallel processes with ordered dependencies",
		Long: "relay starts every unit of a suite manifest as its own process, as many at a time\n" +
			"as the parallel limit allows. A unit may wait for another one plus a delay;\n" +
			"when a unit fails, everything that depends on it is skipped.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(config.LoadOptions{Path: flagConfig, Overrides: overrides(cmd.Flags())})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./relay.yml if present)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newPlanCmd(),
		newResultsCmd(),
		newServeCmd(),
	)

	return root
}

// overrides collects explicitly set flags as configuration values.
func overrides(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	if flagDebug {
		out["log_level"] = "debug"
	}
	return out
}
