// Package fieldindex maintains the per-task-type table of field definitions
// and resolves response references onto a single identity space.
//
// A field definition is identified by its canonical string key, scoped to a
// task type. Types mid-migration from numeric field ids also carry a legacy
// id per definition. The resolver is the ONE place the dual-identifier
// ambiguity is absorbed:
//
//   - a response addressed by canonical key resolves directly
//   - a response addressed by legacy id resolves through the legacy mapping
//   - a response carrying both, where they disagree, resolves by canonical
//     key; the stray legacy id is reported as a migration diagnostic
//   - a response that resolves to nothing is unresolved: excluded from both
//     the numerator and the denominator, and reported for diagnostics
//
// Definitions are authored in CUE. Defaults for the built-in task types ship
// embedded in the binary; deployments may layer additional types or
// overrides from a definitions directory.
package fieldindex
