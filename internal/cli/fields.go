package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complyos/taskcore/internal/fieldindex"
	"github.com/complyos/taskcore/internal/store"
)

// NewFieldsCommand creates the fields command: lists the field definitions
// for a task type, or all known types when none is given.
func NewFieldsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields [task-type]",
		Short: "List field definitions for a task type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}

			index, err := fieldindex.Load(cfg.FieldDefinitionsDir)
			if err != nil {
				return WrapExitError(ExitCommandError, "load field definitions", err)
			}

			if len(args) == 0 {
				for _, t := range index.Types() {
					ti, _ := index.ForType(t)
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d fields (%d required)\n",
						t, len(ti.Definitions()), ti.RequiredCount())
				}
				return nil
			}

			ti, err := index.ForType(store.TaskType(args[0]))
			if err != nil {
				return WrapExitError(ExitFailure, "unknown task type", err)
			}

			defs := ti.Definitions()
			if opts.Format == "json" {
				type defOut struct {
					Key      string `json:"key"`
					Required bool   `json:"required"`
					Weight   int    `json:"weight"`
					LegacyID *int64 `json:"legacyId,omitempty"`
				}
				out := make([]defOut, 0, len(defs))
				for _, d := range defs {
					out = append(out, defOut{Key: d.Key, Required: d.Required, Weight: d.Weight, LegacyID: d.LegacyID})
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			for _, d := range defs {
				line := d.Key
				if d.Required {
					line += "\trequired"
				} else {
					line += "\toptional"
				}
				if d.LegacyID != nil {
					line += fmt.Sprintf("\tlegacy_id=%d", *d.LegacyID)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	return cmd
}
