package fieldindex

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/complyos/taskcore/internal/store"
)

// Definition describes one field of a task type's questionnaire.
type Definition struct {
	Key      string
	LegacyID *int64 // nil once the type has fully migrated to string keys
	Required bool
	Weight   int // reserved for weighted progress; defaults to 1
}

// UnknownTypeError reports a task type with no registered definitions.
type UnknownTypeError struct {
	Type store.TaskType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown task type %q", e.Type)
}

// IsUnknownType returns true if err is (or wraps) an UnknownTypeError.
func IsUnknownType(err error) bool {
	var ue *UnknownTypeError
	return errors.As(err, &ue)
}

// CanonicalKey normalizes a raw field key: trimmed and NFC-normalized so
// visually identical keys from different input paths resolve identically.
func CanonicalKey(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

// Index holds the definitions for every known task type.
// Immutable after construction; safe for concurrent use.
type Index struct {
	types map[store.TaskType]*TypeIndex
}

// New builds an index from definitions grouped by task type.
//
// Validates per type: canonical keys unique, at most one definition per
// legacy id, weights positive (zero defaults to 1).
func New(defs map[store.TaskType][]Definition) (*Index, error) {
	types := make(map[store.TaskType]*TypeIndex, len(defs))
	for taskType, list := range defs {
		ti, err := newTypeIndex(taskType, list)
		if err != nil {
			return nil, fmt.Errorf("task type %q: %w", taskType, err)
		}
		types[taskType] = ti
	}
	return &Index{types: types}, nil
}

// ForType returns the definitions and resolver for one task type.
func (ix *Index) ForType(t store.TaskType) (*TypeIndex, error) {
	ti, ok := ix.types[t]
	if !ok {
		return nil, &UnknownTypeError{Type: t}
	}
	return ti, nil
}

// Types returns the known task types in sorted order.
func (ix *Index) Types() []store.TaskType {
	out := make([]store.TaskType, 0, len(ix.types))
	for t := range ix.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TypeIndex is the field table for one task type.
type TypeIndex struct {
	taskType store.TaskType
	defs     []Definition // sorted by key for deterministic breakdowns
	byKey    map[string]int
	byLegacy map[int64]int
	required int
}

func newTypeIndex(taskType store.TaskType, list []Definition) (*TypeIndex, error) {
	ti := &TypeIndex{
		taskType: taskType,
		defs:     make([]Definition, 0, len(list)),
		byKey:    make(map[string]int, len(list)),
		byLegacy: make(map[int64]int),
	}

	seenKeys := make(map[string]struct{}, len(list))
	seenLegacy := make(map[int64]struct{})
	for _, d := range list {
		d.Key = CanonicalKey(d.Key)
		if d.Key == "" {
			return nil, fmt.Errorf("definition with empty key")
		}
		if d.Weight <= 0 {
			d.Weight = 1
		}
		if _, dup := seenKeys[d.Key]; dup {
			return nil, fmt.Errorf("duplicate field key %q", d.Key)
		}
		seenKeys[d.Key] = struct{}{}
		if d.LegacyID != nil {
			if _, dup := seenLegacy[*d.LegacyID]; dup {
				return nil, fmt.Errorf("legacy id %d mapped twice", *d.LegacyID)
			}
			seenLegacy[*d.LegacyID] = struct{}{}
		}
		ti.defs = append(ti.defs, d)
	}

	sort.Slice(ti.defs, func(i, j int) bool { return ti.defs[i].Key < ti.defs[j].Key })
	for i, d := range ti.defs {
		ti.byKey[d.Key] = i
		if d.LegacyID != nil {
			ti.byLegacy[*d.LegacyID] = i
		}
		if d.Required {
			ti.required++
		}
	}
	return ti, nil
}

// Type returns the task type this index covers.
func (ti *TypeIndex) Type() store.TaskType { return ti.taskType }

// Definitions returns all definitions sorted by key.
func (ti *TypeIndex) Definitions() []Definition {
	out := make([]Definition, len(ti.defs))
	copy(out, ti.defs)
	return out
}

// RequiredCount returns the number of required definitions, which is the
// progress denominator for this task type.
func (ti *TypeIndex) RequiredCount() int { return ti.required }

// Lookup returns the definition for a canonical key.
func (ti *TypeIndex) Lookup(key string) (Definition, bool) {
	i, ok := ti.byKey[CanonicalKey(key)]
	if !ok {
		return Definition{}, false
	}
	return ti.defs[i], true
}

// Resolve maps a response reference to its canonical key.
//
// When a response carries both identifiers and they disagree, the canonical
// key wins; the conflict is surfaced through the returned conflicted flag so
// callers can log a migration diagnostic rather than guess silently.
func (ti *TypeIndex) Resolve(r store.Response) (key string, ok bool, conflicted bool) {
	canonical := ""
	if k := CanonicalKey(r.FieldKey); k != "" {
		if _, found := ti.byKey[k]; found {
			canonical = k
		}
	}

	legacy := ""
	if r.LegacyFieldID != nil {
		if i, found := ti.byLegacy[*r.LegacyFieldID]; found {
			legacy = ti.defs[i].Key
		}
	}

	switch {
	case canonical != "" && legacy != "" && canonical != legacy:
		return canonical, true, true
	case canonical != "":
		return canonical, true, false
	case legacy != "":
		return legacy, true, false
	default:
		return "", false, false
	}
}

// Collapse reduces raw responses to one response per canonical key, with the
// most recently updated row winning. Input order breaks update-time ties
// (callers pass rows ordered by updated_at then row id). Unresolved
// responses are returned separately for migration diagnostics.
func (ti *TypeIndex) Collapse(responses []store.Response) (map[string]store.Response, []store.Response) {
	resolved := make(map[string]store.Response)
	var unresolved []store.Response

	for _, r := range responses {
		key, ok, _ := ti.Resolve(r)
		if !ok {
			unresolved = append(unresolved, r)
			continue
		}
		if prev, exists := resolved[key]; exists && prev.UpdatedAt.After(r.UpdatedAt) {
			continue
		}
		resolved[key] = r
	}

	return resolved, unresolved
}
