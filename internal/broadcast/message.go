package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/complyos/taskcore/internal/status"
	"github.com/complyos/taskcore/internal/store"
)

// MessageType enumerates the closed set of real-time message kinds. Unknown
// types are rejected at the transport boundary; nothing downstream ever sees
// a free-form message string.
type MessageType string

const (
	// TypeTaskUpdate is the canonical change notification, engine -> clients.
	TypeTaskUpdate MessageType = "task_update"

	// TypeCompanyTabsUpdated is an entitlement change produced by a
	// collaborator; it rides the same channel and dedupe discipline.
	TypeCompanyTabsUpdated MessageType = "company_tabs_updated"

	// TypeFormFields carries form lifecycle actions, collaborator -> engine.
	TypeFormFields MessageType = "form_fields"

	// TypeAuthenticate scopes a connection to a user and company.
	TypeAuthenticate MessageType = "authenticate"
)

// Message is the decoded union. Exactly one concrete type per MessageType.
type Message interface {
	Kind() MessageType
}

// TaskUpdate mirrors a store.Snapshot on the wire.
type TaskUpdate struct {
	ID       int64          `json:"id"`
	Status   status.Status  `json:"status"`
	Progress int            `json:"progress"`
	Metadata store.Metadata `json:"metadata"`
	Version  int64          `json:"version"`
}

func (TaskUpdate) Kind() MessageType { return TypeTaskUpdate }

// CompanyTabsUpdated announces an entitlement change for a company.
type CompanyTabsUpdated struct {
	CompanyID         int64    `json:"companyId"`
	AvailableTabs     []string `json:"availableTabs"`
	CacheInvalidation bool     `json:"cache_invalidation"`
	Version           int64    `json:"version"`
}

func (CompanyTabsUpdated) Kind() MessageType { return TypeCompanyTabsUpdated }

// FormFieldsAction values accepted on form_fields messages.
const FieldsClearedAction = "fields_cleared"

// FormFields signals a form lifecycle action such as fields_cleared.
type FormFields struct {
	Action   string             `json:"action"`
	TaskID   int64              `json:"taskId"`
	FormType string             `json:"formType"`
	Metadata FormFieldsMetadata `json:"metadata"`
}

// FormFieldsMetadata carries per-action options.
type FormFieldsMetadata struct {
	PreserveProgress bool `json:"preserveProgress"`
}

func (FormFields) Kind() MessageType { return TypeFormFields }

// Authenticate binds a connection to a user and company.
type Authenticate struct {
	UserID    int64 `json:"userId"`
	CompanyID int64 `json:"companyId"`
}

func (Authenticate) Kind() MessageType { return TypeAuthenticate }

// envelope is the wire shape: a type tag plus the payload fields inline.
type envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"payload"`
}

// Decode validates and decodes a wire message into the closed union.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("decode message: missing payload")
	}

	switch env.Type {
	case TypeTaskUpdate:
		var m TaskUpdate
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeCompanyTabsUpdated:
		var m CompanyTabsUpdated
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeFormFields:
		var m FormFields
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if m.Action != FieldsClearedAction {
			return nil, fmt.Errorf("decode %s: unsupported action %q", env.Type, m.Action)
		}
		return m, nil
	case TypeAuthenticate:
		var m Authenticate
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("decode message: unknown type %q", env.Type)
	}
}

// Encode wraps a message in its envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Type: m.Kind(), Data: payload})
}

// TaskUpdateOf converts an applied snapshot into its wire message.
func TaskUpdateOf(snap store.Snapshot) TaskUpdate {
	return TaskUpdate{
		ID:       snap.TaskID,
		Status:   snap.Status,
		Progress: snap.Progress,
		Metadata: snap.Metadata,
		Version:  snap.Version,
	}
}
