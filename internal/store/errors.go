package store

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// TransientError reports a storage condition that may succeed on retry:
// a lost version race after the internal retry, a failed post-write
// verification, or a connectivity hiccup. Callers should treat it as
// "retry reconciliation", never as guaranteed application.
type TransientError struct {
	Op     string
	TaskID int64
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: task %d: %v", e.Op, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s: task %d", e.Op, e.TaskID)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient returns true if err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
