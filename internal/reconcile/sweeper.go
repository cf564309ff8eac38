package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/complyos/taskcore/internal/status"
)

// DefaultSweepSchedule runs the drift sweep every five minutes.
const DefaultSweepSchedule = "@every 5m"

// SweepReport summarizes one full drift-detection pass.
type SweepReport struct {
	Scanned int
	Healed  int // tasks whose stored state changed
	Failed  int // tasks whose reconciliation errored (logged, skipped)
}

// Sweeper periodically reconciles every task, healing drift between
// calculated and stored state. It replaces the pile of one-off repair
// scripts with the same idempotent operation the rest of the system uses.
type Sweeper struct {
	engine   *Engine
	cron     *cron.Cron
	schedule string
}

// NewSweeper creates a sweeper on the given cron schedule
// (e.g. "@every 5m"). An empty schedule uses DefaultSweepSchedule.
func NewSweeper(e *Engine, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		engine:   e,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start schedules sweeps and returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if report, err := s.Sweep(ctx); err != nil {
			slog.Error("drift sweep aborted", "error", err)
		} else if report.Healed > 0 || report.Failed > 0 {
			slog.Info("drift sweep finished",
				"scanned", report.Scanned,
				"healed", report.Healed,
				"failed", report.Failed,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling. A sweep already in flight runs to completion.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep reconciles every task once, log-and-continue on per-task failure.
// Safe to call directly (the CLI exposes it as an admin operation).
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	ids, err := s.engine.store.ListTaskIDs(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("sweep: %w", err)
	}

	var report SweepReport
	for _, id := range ids {
		report.Scanned++
		res, err := s.engine.Reconcile(ctx, id, status.EventRecalculate, Options{})
		if err != nil {
			report.Failed++
			slog.Error("sweep: task reconciliation failed", "task", id, "error", err)
			continue
		}
		if res.Changed {
			report.Healed++
			slog.Info("sweep: drift healed", "task", id, "status", res.Status, "progress", res.Progress)
		}
	}
	return report, nil
}
