// Package cli wires the osa-scroller commands.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miosa/osa-scroller/config"
)

// Persistent flag names.
const (
	flagConfig      = "config"
	flagLogFile     = "log-file"
	flagMetricsAddr = "metrics-addr"
	flagNoColor     = "no-color"
)

// NewRootCommand returns the root command with every subcommand attached.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "osa-scroller",
		Short: "Virtual scroller for very long lists",
		Long: `osa-scroller renders only the visible window of a long list and
recycles row views as the window moves.

Commands:
  run      Scroll through a source interactively
  window   Print the windows a scroller computes for given positions
  config   Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if off, _ := cmd.Flags().GetBool(flagNoColor); off {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String(flagConfig, "", "config file (default .osa-scroller.yaml in CWD or $HOME)")
	pf.String(flagLogFile, "", "log file path")
	pf.String(flagMetricsAddr, "", "serve Prometheus metrics on this address")
	pf.Bool(flagNoColor, false, "disable colored output")

	root.AddCommand(newRunCommand(version))
	root.AddCommand(newWindowCommand(version))
	root.AddCommand(newConfigCommand())
	root.AddCommand(newVersionCommand(version))
	return root
}

// loadConfig loads the config file and applies the persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup(flagLogFile); f != nil && f.Changed {
		cfg.Log.File = f.Value.String()
	}
	if f := cmd.Flags().Lookup(flagMetricsAddr); f != nil && f.Changed {
		cfg.Metrics.Addr = f.Value.String()
	}
	return cfg, nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "osa-scroller %s\n", version)
		},
	}
}
