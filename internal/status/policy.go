package status

// Input carries everything Resolve needs. Progress is the calculated
// percentage, not the persisted one; Submitted is the stored metadata flag.
type Input struct {
	Current          Status
	Progress         int
	Event            Event
	Submitted        bool
	PreserveProgress bool // clear only: remove response data, keep state
}

// Decision is the resolved target state.
//
// NoChange means the event leaves the persisted state alone (the caller must
// not write). Submitted is the new value of the metadata flag.
type Decision struct {
	Status    Status
	Progress  int
	Submitted bool
	NoChange  bool
}

// Resolve applies the transition rules to a single event.
//
// Pure: same inputs always produce the same decision. Storage reads and
// writes are the reconcile package's job.
func Resolve(in Input) (Decision, error) {
	if !in.Current.Valid() {
		return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "unknown status"}
	}
	if !in.Event.Valid() {
		return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "unknown event"}
	}

	progress := clamp(in.Progress)

	// Locked tasks only move on an explicit unlock. Recalculation and
	// clearing are silently inert; submit and reopen are caller mistakes.
	if in.Current == Locked {
		switch in.Event {
		case EventUnlock:
			return Decision{Status: NotStarted, Progress: progress, Submitted: in.Submitted}, nil
		case EventRecalculate, EventClear:
			return noChange(in), nil
		default:
			return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "task is locked"}
		}
	}

	if in.Event == EventUnlock {
		// Unlock on an already-unlocked task is a no-op, not an error:
		// prerequisite notifications can arrive more than once.
		return noChange(in), nil
	}

	// Submitted is terminal for the normal mutation path: only reopen moves
	// it elsewhere. Recalculate and a redundant submit re-derive the target
	// from the stored flag rather than returning NoChange, so a drifted pair
	// (wrong progress, or a submitted status without the flag) converges back
	// to a consistent one. On an already-consistent row the caller sees an
	// unchanged decision and skips the write.
	if in.Current == Submitted {
		switch in.Event {
		case EventReopen:
			return Decision{Status: Derive(progress), Progress: progress, Submitted: false}, nil
		case EventSubmit, EventRecalculate:
			if in.Submitted {
				return Decision{Status: Submitted, Progress: 100, Submitted: true}, nil
			}
			return Decision{Status: Derive(progress), Progress: progress, Submitted: false}, nil
		default:
			return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "task is submitted; reopen required"}
		}
	}

	switch in.Event {
	case EventSubmit:
		switch in.Current {
		case InProgress, ReadyForSubmission:
			// Explicit submission is authoritative over field-derived
			// completion: progress is forced to 100.
			return Decision{Status: Submitted, Progress: 100, Submitted: true}, nil
		default:
			return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "submit requires in_progress or ready_for_submission"}
		}

	case EventClear:
		if in.PreserveProgress {
			return noChange(in), nil
		}
		return Decision{Status: NotStarted, Progress: 0, Submitted: false}, nil

	case EventReopen:
		return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "reopen requires submitted"}

	case EventRecalculate:
		if in.Current.Terminal() {
			return noChange(in), nil
		}
		if in.Submitted {
			// Stored submission flag wins: heal status/progress back to the
			// submitted pair instead of trusting the calculated value.
			return Decision{Status: Submitted, Progress: 100, Submitted: true}, nil
		}
		return Decision{Status: Derive(progress), Progress: progress, Submitted: false}, nil
	}

	return Decision{}, &TransitionError{From: in.Current, Event: in.Event, Reason: "unhandled event"}
}

func noChange(in Input) Decision {
	return Decision{Status: in.Current, Progress: -1, Submitted: in.Submitted, NoChange: true}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
