package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/complyos/taskcore/internal/fieldindex"
	"github.com/complyos/taskcore/internal/reconcile"
	"github.com/complyos/taskcore/internal/status"
	"github.com/complyos/taskcore/internal/store"
)

// TraceEvent records the outcome of one scenario step.
type TraceEvent struct {
	Task     int64  `json:"task"`
	Event    string `json:"event"`
	Status   string `json:"status,omitempty"`
	Progress int    `json:"progress"`
	Changed  bool   `json:"changed"`
	Version  int64  `json:"version"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// AddError records a validation failure and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario against a fresh store at dbPath.
//
// Response timestamps advance by a fixed step per write so last-write-wins
// collapsing is deterministic regardless of wall clock resolution.
func Run(ctx context.Context, sc *Scenario, dbPath string) (*Result, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer s.Close()

	index, err := fieldindex.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	engine := reconcile.New(s, index)
	result := &Result{Pass: true, Trace: []TraceEvent{}}

	// Seed
	for _, seed := range sc.Tasks {
		if _, err := s.CreateTask(ctx, seed.ID, store.TaskType(seed.Type), seed.Prerequisite); err != nil {
			return nil, fmt.Errorf("scenario %s: seed task %d: %w", sc.Name, seed.ID, err)
		}
	}
	clock := time.Unix(1700000000, 0)
	writeResponse := func(seed ResponseSeed) error {
		clock = clock.Add(time.Second)
		value := seed.Value
		return s.PutResponse(ctx, store.Response{
			TaskID:        seed.Task,
			FieldKey:      seed.Key,
			LegacyFieldID: seed.LegacyID,
			Value:         &value,
			UpdatedAt:     clock,
		})
	}
	for _, seed := range sc.Responses {
		if err := writeResponse(seed); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	// Flow
	for i, step := range sc.Steps {
		for _, seed := range step.Responses {
			if err := writeResponse(seed); err != nil {
				return nil, fmt.Errorf("scenario %s: step %d: %w", sc.Name, i, err)
			}
		}

		ev := status.Event(step.Event)
		res, err := engine.Reconcile(ctx, step.Task, ev, reconcile.Options{
			Force:            step.Force,
			PreserveProgress: step.PreserveProgress,
		})

		trace := TraceEvent{Task: step.Task, Event: step.Event}
		switch {
		case err != nil && step.ExpectError:
			trace.Error = errorKind(err)
		case err != nil:
			trace.Error = errorKind(err)
			result.AddError("step %d: unexpected error: %v", i, err)
		case step.ExpectError:
			result.AddError("step %d: expected an error, got success", i)
		default:
			trace.Status = string(res.Status)
			trace.Progress = res.Progress
			trace.Changed = res.Changed
			trace.Version = res.Version
		}
		result.Trace = append(result.Trace, trace)
	}

	// Final state assertions
	for _, exp := range sc.Expect {
		task, err := s.GetTask(ctx, exp.Task)
		if err != nil {
			result.AddError("expect task %d: %v", exp.Task, err)
			continue
		}
		if exp.Status != "" && string(task.Status) != exp.Status {
			result.AddError("task %d: status %s, want %s", exp.Task, task.Status, exp.Status)
		}
		if exp.Progress != nil && task.Progress != *exp.Progress {
			result.AddError("task %d: progress %d, want %d", exp.Task, task.Progress, *exp.Progress)
		}
		if exp.Submitted != nil && task.Metadata.Submitted() != *exp.Submitted {
			result.AddError("task %d: submitted %t, want %t", exp.Task, task.Metadata.Submitted(), *exp.Submitted)
		}
	}

	return result, nil
}

// errorKind maps an error to a stable label for golden traces, keeping raw
// error text (with ids and positions) out of the comparison.
func errorKind(err error) string {
	switch {
	case reconcile.IsValidation(err):
		return "validation"
	case reconcile.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
