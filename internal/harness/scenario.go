// Package harness executes YAML-defined reconciliation scenarios against a
// real SQLite store and compares the resulting audit trace to expectations
// or golden files.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: seeded tasks and responses,
// a sequence of lifecycle events, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tasks to create before the flow runs.
	Tasks []TaskSeed `yaml:"tasks"`

	// Responses to write before the flow runs.
	Responses []ResponseSeed `yaml:"responses,omitempty"`

	// Steps is the main flow: events fired at tasks, in order.
	Steps []Step `yaml:"steps"`

	// Expect asserts on the final persisted state per task.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// TaskSeed creates one task row.
type TaskSeed struct {
	ID   int64  `yaml:"id"`
	Type string `yaml:"type"`

	// Prerequisite locks the task behind another task id.
	Prerequisite *int64 `yaml:"prerequisite,omitempty"`
}

// ResponseSeed writes one field response. Exactly one of Key/LegacyID should
// be set; both may be set to exercise mid-migration rows.
type ResponseSeed struct {
	Task     int64  `yaml:"task"`
	Key      string `yaml:"key,omitempty"`
	LegacyID *int64 `yaml:"legacy_id,omitempty"`
	Value    string `yaml:"value"`
}

// Step fires one lifecycle event at a task.
type Step struct {
	Task  int64  `yaml:"task"`
	Event string `yaml:"event"`

	Force            bool `yaml:"force,omitempty"`
	PreserveProgress bool `yaml:"preserve_progress,omitempty"`

	// ExpectError marks steps whose rejection is the behavior under test.
	ExpectError bool `yaml:"expect_error,omitempty"`

	// Responses written after previous steps, before this one.
	Responses []ResponseSeed `yaml:"responses,omitempty"`
}

// Expectation asserts the final persisted state of one task.
type Expectation struct {
	Task      int64  `yaml:"task"`
	Status    string `yaml:"status"`
	Progress  *int   `yaml:"progress,omitempty"`
	Submitted *bool  `yaml:"submitted,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(sc.Tasks) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one task is required", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	return &sc, nil
}
