package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/complyos/taskcore/internal/broadcast"
	"github.com/complyos/taskcore/internal/reconcile"
	"github.com/complyos/taskcore/internal/status"
)

// NewServeCommand creates the serve command: the real-time gateway plus the
// scheduled drift sweeper.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broadcast gateway and drift sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			s, index, err := openStoreAndIndex(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			// Wire hub and engine both ways: the engine publishes snapshots
			// through the hub, the hub routes fields_cleared into the engine.
			var engine *reconcile.Engine
			hub := broadcast.NewHub(broadcast.WithClearHandler(
				func(ctx context.Context, taskID int64, formType string, preserveProgress bool) {
					_, err := engine.Reconcile(ctx, taskID, status.EventClear, reconcile.Options{
						PreserveProgress: preserveProgress,
					})
					if err != nil {
						slog.Error("clear-fields reconciliation failed",
							"task", taskID, "form_type", formType, "error", err)
					}
				},
			))
			engine = reconcile.New(s, index, reconcile.WithPublisher(hub))

			sweeper := reconcile.NewSweeper(engine, cfg.SweepSchedule)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sweeper.Start(ctx); err != nil {
				return WrapExitError(ExitCommandError, "start sweeper", err)
			}
			defer sweeper.Stop()

			mux := http.NewServeMux()
			mux.HandleFunc("/ws", hub.Handle)

			server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("gateway listening", "addr", cfg.ListenAddr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				slog.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return WrapExitError(ExitCommandError, "shutdown", err)
				}
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return WrapExitError(ExitCommandError, "server failed", err)
			}
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "bind address (overrides config)")

	return cmd
}
