package fieldindex

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/complyos/taskcore/internal/store"
)

//go:embed defaults.cue
var defaultsCUE string

// CompileError reports a problem in a CUE definition file, with the CUE
// source position when one is available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: field %q: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// LoadDefault builds the index from the embedded definitions only.
func LoadDefault() (*Index, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(defaultsCUE, cue.Filename("defaults.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded definitions: %w", err)
	}
	return parseIndex(v)
}

// Load builds the index from the embedded defaults unified with the CUE
// package in dir. An empty dir yields the defaults alone. Directory values
// may add task types or fields; conflicting redefinitions fail unification,
// which is the desired behavior for accidental overrides.
func Load(dir string) (*Index, error) {
	if dir == "" {
		return LoadDefault()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("definitions path %s is not a directory", dir)
	}

	ctx := cuecontext.New()
	base := ctx.CompileString(defaultsCUE, cue.Filename("defaults.cue"))
	if err := base.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded definitions: %w", err)
	}

	insts := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(insts) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	if insts[0].Err != nil {
		return nil, fmt.Errorf("load definitions from %s: %w", dir, insts[0].Err)
	}

	overlay := ctx.BuildInstance(insts[0])
	if err := overlay.Err(); err != nil {
		return nil, fmt.Errorf("build definitions from %s: %w", dir, err)
	}

	merged := base.Unify(overlay)
	if err := merged.Validate(cue.Concrete(false)); err != nil {
		return nil, fmt.Errorf("unify definitions: %w", err)
	}

	return parseIndex(merged)
}

// parseIndex walks the tasks struct and materializes definitions.
func parseIndex(v cue.Value) (*Index, error) {
	tasksVal := v.LookupPath(cue.ParsePath("tasks"))
	if !tasksVal.Exists() {
		return nil, &CompileError{Field: "tasks", Message: "tasks struct is required", Pos: v.Pos()}
	}

	defs := make(map[store.TaskType][]Definition)

	typeIter, err := tasksVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate task types: %w", err)
	}
	for typeIter.Next() {
		taskType := store.TaskType(labelOf(typeIter.Selector()))
		fieldIter, err := typeIter.Value().Fields()
		if err != nil {
			return nil, fmt.Errorf("task type %q: iterate fields: %w", taskType, err)
		}

		var list []Definition
		for fieldIter.Next() {
			def, err := parseDefinition(labelOf(fieldIter.Selector()), fieldIter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, def)
		}
		defs[taskType] = list
	}

	return New(defs)
}

func parseDefinition(key string, v cue.Value) (Definition, error) {
	def := Definition{Key: key, Weight: 1}

	if rv := v.LookupPath(cue.ParsePath("required")); rv.Exists() {
		required, err := rv.Bool()
		if err != nil {
			return Definition{}, &CompileError{Field: key, Message: "required must be a bool", Pos: rv.Pos()}
		}
		def.Required = required
	}

	if wv := v.LookupPath(cue.ParsePath("weight")); wv.Exists() {
		weight, err := wv.Int64()
		if err != nil {
			return Definition{}, &CompileError{Field: key, Message: "weight must be an int", Pos: wv.Pos()}
		}
		if weight <= 0 {
			return Definition{}, &CompileError{Field: key, Message: "weight must be positive", Pos: wv.Pos()}
		}
		def.Weight = int(weight)
	}

	if lv := v.LookupPath(cue.ParsePath("legacy_id")); lv.Exists() {
		legacy, err := lv.Int64()
		if err != nil {
			return Definition{}, &CompileError{Field: key, Message: "legacy_id must be an int", Pos: lv.Pos()}
		}
		def.LegacyID = &legacy
	}

	return def, nil
}

// labelOf extracts a plain field name from a CUE selector, unquoting string
// labels like "weird key".
func labelOf(sel cue.Selector) string {
	s := sel.String()
	if len(s) >= 2 && s[0] == '"' {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
	}
	return s
}
