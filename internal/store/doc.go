// Package store provides SQLite-backed storage for tasks and their field
// responses, plus the atomic state writer the reconciliation engine mutates
// through.
//
// Ownership model:
//   - status, progress, metadata and version are written ONLY via ApplyState.
//   - response rows are written by form-submission collaborators; the engine
//     reads them and deletes them on clear-fields. CreateTask/PutResponse
//     exist for collaborator-shaped setup (admin tooling, tests, demo fill).
//
// Concurrency:
//   - Every task row carries a monotonically increasing version. ApplyState
//     performs an optimistic UPDATE ... WHERE version = ?, retries exactly
//     once against the fresh row on conflict, then verifies the write with a
//     re-read and at most one corrective write. There is no unbounded retry
//     loop and no partial application of only status or only progress.
//   - The version doubles as the broadcast generation: newer snapshots always
//     carry a larger version for the same task.
//
// Database configuration mirrors the usual SQLite service setup:
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - single-writer connection pool
package store
