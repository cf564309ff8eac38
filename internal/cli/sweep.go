package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complyos/taskcore/internal/reconcile"
)

// NewSweepCommand creates the sweep command: one full drift-detection pass
// over every task, run immediately rather than on the serve schedule.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every task once, healing drifted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, index, err := openStoreAndIndex(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			engine := reconcile.New(s, index)
			sweeper := reconcile.NewSweeper(engine, "")

			report, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "sweep failed", err)
			}

			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d healed=%d failed=%d\n",
				report.Scanned, report.Healed, report.Failed)

			if report.Failed > 0 {
				return NewExitError(ExitFailure, "some tasks failed to reconcile")
			}
			return nil
		},
	}

	return cmd
}
