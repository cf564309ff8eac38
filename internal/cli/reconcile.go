package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/complyos/taskcore/internal/reconcile"
	"github.com/complyos/taskcore/internal/status"
)

// NewReconcileCommand creates the reconcile command: the single
// parameterized repair/refresh operation for one task.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var (
		eventName        string
		force            bool
		preserveProgress bool
		debug            bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile <task-id>",
		Short: "Recalculate and persist a task's progress and status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid task id %q", args[0]))
			}

			event := status.Event(eventName)
			if !event.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid event %q", eventName))
			}

			s, index, err := openStoreAndIndex(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			engine := reconcile.New(s, index)
			result, err := engine.Reconcile(cmd.Context(), taskID, event, reconcile.Options{
				Force:            force,
				PreserveProgress: preserveProgress,
				Debug:            debug,
			})
			if err != nil {
				if reconcile.IsValidation(err) {
					return WrapExitError(ExitFailure, "reconciliation rejected", err)
				}
				return WrapExitError(ExitCommandError, "reconciliation failed", err)
			}

			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %d: status=%s progress=%d changed=%t version=%d\n",
				taskID, result.Status, result.Progress, result.Changed, result.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventName, "event", string(status.EventRecalculate), "lifecycle event (recalculate|submit|clear|unlock|reopen)")
	cmd.Flags().BoolVar(&force, "force", false, "write even when calculated state matches persisted state")
	cmd.Flags().BoolVar(&preserveProgress, "preserve-progress", false, "clear only: remove response data but keep status/progress")
	cmd.Flags().BoolVar(&debug, "debug", false, "record the per-field breakdown in task metadata")

	return cmd
}
