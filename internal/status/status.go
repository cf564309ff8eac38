package status

// Status is a task lifecycle state.
type Status string

const (
	Locked             Status = "locked"
	NotStarted         Status = "not_started"
	InProgress         Status = "in_progress"
	ReadyForSubmission Status = "ready_for_submission"
	Submitted          Status = "submitted"
	UnderReview        Status = "under_review"
	Completed          Status = "completed"
	Rejected           Status = "rejected"
)

// All lists every valid status. Order is not significant.
var All = []Status{
	Locked,
	NotStarted,
	InProgress,
	ReadyForSubmission,
	Submitted,
	UnderReview,
	Completed,
	Rejected,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range All {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s is outside the engine's recalculation path.
// under_review, completed and rejected are owned by post-submission review
// workflows; the engine leaves them untouched on recalculate.
func (s Status) Terminal() bool {
	switch s {
	case UnderReview, Completed, Rejected:
		return true
	}
	return false
}

// Event is an explicit lifecycle event supplied by a caller.
type Event string

const (
	// EventRecalculate re-derives status purely from progress.
	// This is the default event for response-write triggers and sweeps.
	EventRecalculate Event = "recalculate"

	// EventSubmit marks the task submitted and forces progress to 100.
	EventSubmit Event = "submit"

	// EventClear resets progress and status after responses are removed.
	EventClear Event = "clear"

	// EventUnlock releases a locked task once its prerequisite is satisfied.
	EventUnlock Event = "unlock"

	// EventReopen returns a submitted task to the recalculation path.
	EventReopen Event = "reopen"
)

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	switch e {
	case EventRecalculate, EventSubmit, EventClear, EventUnlock, EventReopen:
		return true
	}
	return false
}

// Derive maps a progress percentage to its progress-driven status band.
// The submitted flag is handled by Resolve, not here.
func Derive(progress int) Status {
	switch {
	case progress <= 0:
		return NotStarted
	case progress >= 100:
		return ReadyForSubmission
	default:
		return InProgress
	}
}
