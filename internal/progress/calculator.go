// Package progress computes a task's completion percentage from its stored
// field responses. Calculate is a pure function: no storage access, no
// caching, identical inputs always yield identical output.
package progress

import (
	"github.com/complyos/taskcore/internal/fieldindex"
	"github.com/complyos/taskcore/internal/store"
)

// FieldState is one row of the per-field audit breakdown.
type FieldState struct {
	Key       string `json:"key"`
	Required  bool   `json:"required"`
	Completed bool   `json:"completed"`
}

// Summary is the calculator's full output: the aggregate percentage plus a
// deterministic per-field breakdown sufficient for audit metadata.
type Summary struct {
	Percent    int
	Required   int // denominator: required definitions for the task type
	Completed  int // numerator: required fields with a completed response
	Fields     []FieldState
	Unresolved []store.Response // refs no definition matched; excluded from both counts
}

// Calculate derives the completion summary for one task type.
//
// Percent = floor(completed/required*100), clamped to [0,100]. A type with
// zero required definitions yields 0, never a division by zero. Duplicate
// responses per canonical key collapse last-write-wins before counting, so a
// legacy-id row and a canonical-key row for the same field are never
// double-counted.
func Calculate(ti *fieldindex.TypeIndex, responses []store.Response) Summary {
	resolved, unresolved := ti.Collapse(responses)

	defs := ti.Definitions() // sorted by key
	summary := Summary{
		Required:   ti.RequiredCount(),
		Fields:     make([]FieldState, 0, len(defs)),
		Unresolved: unresolved,
	}

	for _, def := range defs {
		completed := false
		if r, ok := resolved[def.Key]; ok {
			completed = r.Completed()
		}
		if def.Required && completed {
			summary.Completed++
		}
		summary.Fields = append(summary.Fields, FieldState{
			Key:       def.Key,
			Required:  def.Required,
			Completed: completed,
		})
	}

	summary.Percent = percent(summary.Completed, summary.Required)
	return summary
}

func percent(completed, required int) int {
	if required <= 0 {
		return 0
	}
	p := completed * 100 / required // integer division is the floor
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
