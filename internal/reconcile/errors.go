package reconcile

import (
	"errors"
	"fmt"

	"github.com/complyos/taskcore/internal/fieldindex"
	"github.com/complyos/taskcore/internal/status"
	"github.com/complyos/taskcore/internal/store"
)

// ValidationError rejects a malformed request before any state is written:
// unknown task, unknown task type, unknown event, or an event the policy
// refuses for the task's current state.
type ValidationError struct {
	TaskID int64
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconcile task %d: %s: %v", e.TaskID, e.Reason, e.Err)
	}
	return fmt.Sprintf("reconcile task %d: %s", e.TaskID, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation returns true if err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether the failure is worth retrying: the storage
// layer's race/verification failures. Callers treat this as "retry
// reconciliation", not as guaranteed application.
func IsTransient(err error) bool {
	return store.IsTransient(err)
}

// classify wraps lower-layer errors into the caller-facing taxonomy.
func classify(taskID int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrTaskNotFound):
		return &ValidationError{TaskID: taskID, Reason: "task not found", Err: err}
	case fieldindex.IsUnknownType(err):
		return &ValidationError{TaskID: taskID, Reason: "unknown task type", Err: err}
	case status.IsTransition(err):
		return &ValidationError{TaskID: taskID, Reason: "event rejected by status policy", Err: err}
	default:
		return err
	}
}
