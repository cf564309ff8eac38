package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/complyos/taskcore/internal/progress"
	"github.com/complyos/taskcore/internal/status"
)

// inspectReport is the inspect command's output shape.
type inspectReport struct {
	TaskID             int64  `json:"taskId"`
	TaskType           string `json:"taskType"`
	Status             string `json:"status"`
	StoredProgress     int    `json:"storedProgress"`
	CalculatedProgress int    `json:"calculatedProgress"`
	RequiredFields     int    `json:"requiredFields"`
	CompletedFields    int    `json:"completedFields"`
	UnresolvedRefs     int    `json:"unresolvedRefs"`
	Drifted            bool   `json:"drifted"`
	InvariantViolation string `json:"invariantViolation,omitempty"`
	Version            int64  `json:"version"`
}

// NewInspectCommand creates the inspect command: a read-only drift report
// for one task. Exit code 1 signals drift, so scripts can gate on it.
func NewInspectCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <task-id>",
		Short: "Show stored vs calculated state for a task without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid task id %q", args[0]))
			}

			s, index, err := openStoreAndIndex(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			task, err := s.GetTask(ctx, taskID)
			if err != nil {
				return WrapExitError(ExitCommandError, "read task", err)
			}

			ti, err := index.ForType(task.Type)
			if err != nil {
				return WrapExitError(ExitCommandError, "resolve task type", err)
			}

			responses, err := s.ListResponses(ctx, taskID)
			if err != nil {
				return WrapExitError(ExitCommandError, "read responses", err)
			}

			summary := progress.Calculate(ti, responses)

			report := inspectReport{
				TaskID:             task.ID,
				TaskType:           string(task.Type),
				Status:             string(task.Status),
				StoredProgress:     task.Progress,
				CalculatedProgress: summary.Percent,
				RequiredFields:     summary.Required,
				CompletedFields:    summary.Completed,
				UnresolvedRefs:     len(summary.Unresolved),
				Drifted:            task.Progress != summary.Percent,
				Version:            task.Version,
			}
			if invErr := status.CheckInvariant(task.Status, task.Progress, task.Metadata.Submitted()); invErr != nil {
				report.InvariantViolation = invErr.Error()
				report.Drifted = true
			}

			if opts.Format == "json" {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "task %d (%s): status=%s stored=%d calculated=%d (%d/%d fields",
					report.TaskID, report.TaskType, report.Status, report.StoredProgress,
					report.CalculatedProgress, report.CompletedFields, report.RequiredFields)
				if report.UnresolvedRefs > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), ", %d unresolved", report.UnresolvedRefs)
				}
				fmt.Fprintln(cmd.OutOrStdout(), ")")
				if report.InvariantViolation != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "invariant violation: %s\n", report.InvariantViolation)
				}
			}

			if report.Drifted {
				return NewExitError(ExitFailure, "stored state drifted from calculated state")
			}
			return nil
		},
	}

	return cmd
}
