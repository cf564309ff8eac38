// Package reconcile orchestrates the task progress pipeline: read responses,
// calculate progress, resolve the target status through the lifecycle
// policy, persist atomically, broadcast.
//
// Reconcile is the single parameterized operation behind every trigger the
// platform has: form-field writes, submission, clear-fields, demo auto-fill,
// admin repair. There are no per-incident fix paths; an admin repair is
// Reconcile with Force set.
//
// Pipeline per call:
//
//	validate -> read task -> read responses -> calculate -> resolve status
//	        -> apply (atomic writer) -> invalidate cache -> publish
//
// Any step failure surfaces an error and leaves no half-written state,
// because the writer applies status/progress/metadata as one unit. Calls are
// re-entrant and idempotent: repeating a call with no intervening response
// changes reports Changed=false.
//
// The sweeper runs the same operation on a cron schedule across all tasks,
// healing drift between calculated and stored values and violations of the
// submitted invariant. Per-task failures are logged and skipped, never
// aborting the sweep.
package reconcile
