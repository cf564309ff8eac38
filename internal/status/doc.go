// Package status implements the task lifecycle policy.
//
// The policy is a pure function of three inputs: the task's current status,
// the calculated completion percentage, and an explicit lifecycle event
// (recalculate, submit, clear, unlock, reopen). It never touches storage.
//
// Two rules anchor everything else:
//
//   - Progress drives the not_started/in_progress/ready_for_submission band.
//     0 => not_started, 1-99 => in_progress, 100 => ready_for_submission.
//   - Submission is authoritative over field-derived completion. A submit
//     event forces progress to 100 and sets the submitted flag; the flag, not
//     the percentage, is what makes a task submitted.
//
// INVARIANT: status == submitted if and only if progress == 100 AND the
// submitted metadata flag is set. CheckInvariant detects violations; the
// reconcile package heals them by re-deriving status from the stored flag.
package status
