package cmd

import (
	"fmt"

	"github.com/gostdlib/racefree/internal/config"
	"github.com/gostdlib/racefree/internal/harness"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(o *options) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run stress scenarios, all of them if none are named",
		Long: `Run the named stress scenarios in order, or all of them if none are named.
Use "racedetective list" to see the scenarios.

For example, to run the ledger and workqueue scenarios with 50 workers on a limited pool
and get CSV output:
	racedetective run ledger workqueue --workers 50 --pool limited --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.v, o.cfgFile)
			if err != nil {
				return err
			}

			log, err := newLogger(cfg.Verbose)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer log.Sync()

			r, err := harness.New(cfg, log)
			if err != nil {
				return err
			}

			report, runErr := r.Run(cmd.Context(), args...)
			if len(report.Results) > 0 {
				if err := report.Render(cmd.OutOrStdout(), cfg.Format); err != nil {
					log.Error("could not render report", zap.Error(err))
				}
			}
			return runErr
		},
	}

	d := config.Default()
	runCmd.Flags().IntP(config.KeyWorkers, "w", d.Workers, "Number of concurrent workers per scenario")
	runCmd.Flags().IntP(config.KeyIterations, "n", d.Iterations, "Number of operations per worker, or items for the workqueue scenario")
	runCmd.Flags().String(config.KeyPool, d.Pool, "Goroutine pool the workers run on: pooled or limited")
	runCmd.Flags().Duration(config.KeyFlushInterval, d.FlushInterval, "Auto flush interval of the logsink scenario")
	runCmd.Flags().StringP(config.KeyFormat, "f", d.Format, "Report format: text, json or csv")
	o.v.BindPFlags(runCmd.Flags())

	return runCmd
}
