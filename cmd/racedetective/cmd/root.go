// Package cmd provides the command-line interface for racedetective.
package cmd

import (
	"github.com/gostdlib/racefree/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// options are shared by all commands of one root command.
type options struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd returns the racedetective command with all subcommands added.
func NewRootCmd() *cobra.Command {
	o := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "racedetective",
		Short: "Stress the racefree primitives and report any broken guarantee.",
		Long: `racedetective runs concurrent stress scenarios against the racefree primitives
(counter, ledger, memo, logsink and workqueue). Each scenario hammers one primitive
from many goroutines on a goroutine pool and checks every guarantee it can observe:
no lost updates, no overdrafts, exactly one computation per key, no split log lines
and no lost wakeups.

The command exits with a non-zero status if any scenario finds a violation.

Flags can also be set with RACEDETECTIVE_<FLAG> environment variables (dashes become
underscores) or in a config file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "A config file (yaml, json or toml) with harness settings")
	rootCmd.PersistentFlags().Bool(config.KeyVerbose, false, "Turn on debug logging")
	o.v.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup(config.KeyVerbose))

	rootCmd.AddCommand(newRunCmd(o))
	rootCmd.AddCommand(newListCmd())
	return rootCmd
}

// newLogger returns a development logger when verbose, otherwise a production logger.
// Both write to stderr so they never mix with the report.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
