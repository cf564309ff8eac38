package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/complyos/taskcore/internal/status"
)

// TaskType identifies a questionnaire family.
type TaskType string

const (
	TaskTypeKYB         TaskType = "kyb"
	TaskTypeKY3P        TaskType = "ky3p"
	TaskTypeOpenBanking TaskType = "open_banking"
	TaskTypeCard        TaskType = "card"
)

// Metadata is the task's open key/value audit map, persisted as JSON.
type Metadata map[string]any

// Metadata keys owned by the engine.
const (
	MetaLastProgressUpdate = "lastProgressUpdate"
	MetaPreviousStatus     = "previousStatus"
	MetaPreviousProgress   = "previousProgress"
	MetaSubmitted          = "submitted"
	MetaSubmissionDate     = "submissionDate"
	MetaReconciledBy       = "reconciledBy"
	MetaUnresolvedRefs     = "unresolvedRefs"
)

// Submitted reads the stored submission flag.
// Tolerates JSON round-trip types (bool or "true"/"false" strings written by
// older tooling).
func (m Metadata) Submitted() bool {
	switch v := m[MetaSubmitted].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// Clone returns a shallow copy. A nil map clones to an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Task is the engine's view of a task row. Collaborator-owned columns are
// not mapped here.
type Task struct {
	ID             int64
	Type           TaskType
	Status         status.Status
	Progress       int
	Metadata       Metadata
	Locked         bool
	PrerequisiteID *int64
	Version        int64
	UpdatedAt      time.Time
}

// Response is a stored field response. Exactly one of FieldKey/LegacyFieldID
// is usually set; both may be present for rows written mid-migration.
type Response struct {
	TaskID        int64
	FieldKey      string // "" when the row only carries a legacy id
	LegacyFieldID *int64
	Value         *string
	UpdatedAt     time.Time
}

// Completed reports whether the response carries a non-empty value.
func (r Response) Completed() bool {
	return r.Value != nil && strings.TrimSpace(*r.Value) != ""
}

// Snapshot is the applied (status, progress, metadata, version) unit returned
// by ApplyState and carried by change notifications.
type Snapshot struct {
	TaskID    int64         `json:"id"`
	Status    status.Status `json:"status"`
	Progress  int           `json:"progress"`
	Metadata  Metadata      `json:"metadata"`
	Version   int64         `json:"version"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func marshalMetadata(m Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw string) (Metadata, error) {
	if raw == "" {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if m == nil {
		m = Metadata{}
	}
	return m, nil
}
