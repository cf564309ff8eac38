// Package cli implements the taskcore command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/complyos/taskcore/internal/config"
	"github.com/complyos/taskcore/internal/fieldindex"
	"github.com/complyos/taskcore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	FieldsDir  string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the taskcore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "taskcore",
		Short: "Task progress and reconciliation engine",
		Long:  "Derives compliance task completion state from field responses, keeps it consistent, and broadcasts changes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.FieldsDir, "fields-dir", "", "CUE field definitions directory (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewFieldsCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration: file then flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DBPath != "" {
		cfg.DatabasePath = opts.DBPath
	}
	if opts.FieldsDir != "" {
		cfg.FieldDefinitionsDir = opts.FieldsDir
	}
	return cfg, nil
}

// openStoreAndIndex is the shared setup for every storage-touching command.
func openStoreAndIndex(opts *RootOptions) (*store.Store, *fieldindex.Index, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open database", err)
	}

	index, err := fieldindex.Load(cfg.FieldDefinitionsDir)
	if err != nil {
		s.Close()
		return nil, nil, WrapExitError(ExitCommandError, "load field definitions", err)
	}

	return s, index, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
