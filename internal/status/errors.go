package status

import (
	"errors"
	"fmt"
)

// TransitionError reports an event the policy refuses for the current state.
// It is a validation failure: nothing has been read from or written to storage.
type TransitionError struct {
	From   Status
	Event  Event
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q from %q: %s", e.Event, e.From, e.Reason)
}

// IsTransition returns true if err is (or wraps) a TransitionError.
func IsTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// InconsistencyError reports a persisted (status, progress, submitted) triple
// that violates the submitted invariant. It is a signal, not a failure: the
// reconcile engine responds with a forced pass instead of surfacing it.
type InconsistencyError struct {
	Status    Status
	Progress  int
	Submitted bool
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent state: status=%s progress=%d submitted=%t", e.Status, e.Progress, e.Submitted)
}

// IsInconsistency returns true if err is (or wraps) an InconsistencyError.
func IsInconsistency(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}

// CheckInvariant verifies: status == submitted <=> progress == 100 AND the
// submitted flag is set. Returns an InconsistencyError on violation.
func CheckInvariant(st Status, progress int, submitted bool) error {
	isSubmitted := st == Submitted
	shouldBe := progress == 100 && submitted
	if st.Terminal() {
		// Review states live past submission; the pair is owned elsewhere.
		return nil
	}
	if isSubmitted != shouldBe {
		return &InconsistencyError{Status: st, Progress: progress, Submitted: submitted}
	}
	return nil
}
