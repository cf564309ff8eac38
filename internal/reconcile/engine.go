package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/complyos/taskcore/internal/fieldindex"
	"github.com/complyos/taskcore/internal/progress"
	"github.com/complyos/taskcore/internal/status"
	"github.com/complyos/taskcore/internal/store"
)

// Publisher delivers a change notification after a successful write.
// Implemented by broadcast.Hub; nil disables broadcasting. Delivery is
// fire-and-forget: Publish must never block reconciliation or return errors.
type Publisher interface {
	Publish(snap store.Snapshot)
}

// Engine wires the field index, calculator, policy and writer together.
// Safe for concurrent use: the writer's versioned apply is the only mutation
// point, so concurrent reconciliations of the same task settle to
// last-writer-wins with verification.
type Engine struct {
	store *store.Store
	index *fieldindex.Index
	pub   Publisher
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher attaches a change-notification publisher.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// New creates an Engine.
func New(s *store.Store, ix *fieldindex.Index, opts ...Option) *Engine {
	e := &Engine{store: s, index: ix}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options tune a single reconciliation call.
type Options struct {
	// Force bypasses the no-op short-circuit when the calculated state
	// already matches the persisted state: the write-and-verify cycle runs
	// anyway. Used by admin repair.
	Force bool

	// PreserveProgress applies to clear events only: response data is
	// removed but status/progress are left untouched.
	PreserveProgress bool

	// Debug records the full per-field breakdown in task metadata.
	Debug bool
}

// Result reports the outcome of one reconciliation.
type Result struct {
	Success  bool
	Changed  bool
	Status   status.Status
	Progress int
	Version  int64
}

// Reconcile runs the full pipeline for one task and event.
//
// Idempotent: with no intervening response changes a repeat call reports
// Changed=false. A detected invariant violation in the stored pair is not an
// error; it escalates the call to a forced pass that heals the row.
func (e *Engine) Reconcile(ctx context.Context, taskID int64, event status.Event, opts Options) (Result, error) {
	run := uuid.Must(uuid.NewV7()).String()
	log := slog.With("run", run, "task", taskID, "event", event)

	if !event.Valid() {
		return Result{}, &ValidationError{TaskID: taskID, Reason: "unknown event"}
	}

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, classify(taskID, err)
	}

	index, err := e.index.ForType(task.Type)
	if err != nil {
		return Result{}, classify(taskID, err)
	}

	submitted := task.Metadata.Submitted()

	// Inconsistency between the stored pair is a signal, not a failure:
	// escalate to a forced pass so the row is healed even if the calculated
	// state happens to match one of the two fields.
	force := opts.Force
	if invErr := status.CheckInvariant(task.Status, task.Progress, submitted); invErr != nil {
		log.Warn("stored state violates submitted invariant, forcing reconciliation", "error", invErr)
		force = true
	}

	// Clear removes response data before recalculation. Locked and
	// submitted tasks are settled by the policy below; deleting their data
	// first would be a partial application the policy then contradicts.
	if event == status.EventClear && !task.Locked && task.Status != status.Submitted {
		removed, err := e.store.ClearResponses(ctx, taskID)
		if err != nil {
			return Result{}, err
		}
		log.Info("responses cleared", "removed", removed, "preserve_progress", opts.PreserveProgress)
	}

	responses, err := e.store.ListResponses(ctx, taskID)
	if err != nil {
		return Result{}, err
	}

	summary := progress.Calculate(index, responses)
	if len(summary.Unresolved) > 0 {
		for _, r := range summary.Unresolved {
			log.Warn("response reference did not resolve to a field definition",
				"field_key", r.FieldKey,
				"legacy_field_id", r.LegacyFieldID,
			)
		}
	}

	decision, err := status.Resolve(status.Input{
		Current:          task.Status,
		Progress:         summary.Percent,
		Event:            event,
		Submitted:        submitted,
		PreserveProgress: opts.PreserveProgress,
	})
	if err != nil {
		return Result{}, classify(taskID, err)
	}

	if decision.NoChange {
		// A redundant unlock still repairs a dangling lock column, the state
		// a crash between the status write and the lock flip leaves behind.
		if event == status.EventUnlock && task.Locked {
			if err := e.store.SetLocked(ctx, taskID, false); err != nil {
				return Result{}, err
			}
		}
		log.Debug("policy left state untouched", "status", task.Status, "progress", task.Progress)
		return Result{Success: true, Changed: false, Status: task.Status, Progress: task.Progress, Version: task.Version}, nil
	}

	changed := decision.Status != task.Status ||
		decision.Progress != task.Progress ||
		decision.Submitted != submitted

	if !changed && !force {
		log.Debug("calculated state matches persisted state, skipping write",
			"status", task.Status, "progress", task.Progress)
		return Result{Success: true, Changed: false, Status: task.Status, Progress: task.Progress, Version: task.Version}, nil
	}

	patch := e.metadataPatch(decision, summary, event, run, opts)

	snap, err := e.store.ApplyState(ctx, taskID, decision.Status, decision.Progress, patch)
	if err != nil {
		return Result{}, err
	}

	// Flip the lock only once the status write landed. If the flip itself
	// fails, the next unlock call repairs it through the NoChange path above.
	if event == status.EventUnlock && task.Locked {
		if err := e.store.SetLocked(ctx, taskID, false); err != nil {
			return Result{}, err
		}
	}

	log.Info("state applied",
		"status", snap.Status,
		"progress", snap.Progress,
		"version", snap.Version,
		"changed", changed,
		"forced", force,
	)

	// Refresh the cache with the newest snapshot; ApplyState already
	// invalidated the stale entry.
	e.store.Cache().Put(snap)

	if e.pub != nil {
		e.pub.Publish(snap)
	}

	return Result{Success: true, Changed: changed, Status: snap.Status, Progress: snap.Progress, Version: snap.Version}, nil
}

// metadataPatch builds the audit metadata for a write. The writer itself
// stamps lastProgressUpdate and the previous* pair.
func (e *Engine) metadataPatch(decision status.Decision, summary progress.Summary, event status.Event, run string, opts Options) store.Metadata {
	patch := store.Metadata{
		store.MetaSubmitted:    decision.Submitted,
		store.MetaReconciledBy: string(event),
		"fieldsRequired":       summary.Required,
		"fieldsCompleted":      summary.Completed,
	}

	if event == status.EventSubmit && decision.Submitted {
		patch[store.MetaSubmissionDate] = time.Now().UTC().Format(time.RFC3339)
	}

	if n := len(summary.Unresolved); n > 0 {
		refs := make([]string, 0, n)
		for _, r := range summary.Unresolved {
			refs = append(refs, unresolvedRef(r))
		}
		patch[store.MetaUnresolvedRefs] = refs
	}

	if opts.Debug {
		states := make(map[string]bool, len(summary.Fields))
		for _, f := range summary.Fields {
			states[f.Key] = f.Completed
		}
		patch["fieldStates"] = states
	}

	return patch
}

func unresolvedRef(r store.Response) string {
	if r.FieldKey != "" {
		return "key:" + r.FieldKey
	}
	if r.LegacyFieldID != nil {
		return "legacy:" + strconv.FormatInt(*r.LegacyFieldID, 10)
	}
	return "empty"
}
