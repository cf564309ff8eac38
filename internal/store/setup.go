package store

import (
	"context"
	"fmt"
	"time"

	"github.com/complyos/taskcore/internal/status"
)

// Collaborator-shaped writes. Task rows are created by platform workflows and
// response rows by form submission; these helpers exist for admin tooling,
// demo fill and tests. They deliberately bypass ApplyState: creation is not a
// state mutation, and response writes are not owned by this engine.

// CreateTask inserts a task row in its initial state: locked when a
// prerequisite is given, not_started otherwise. Idempotent on id.
func (s *Store) CreateTask(ctx context.Context, id int64, taskType TaskType, prerequisiteID *int64) (Task, error) {
	initial := status.NotStarted
	locked := 0
	if prerequisiteID != nil {
		initial = status.Locked
		locked = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, task_type, status, progress, metadata, locked, prerequisite_id, version, updated_at)
		VALUES (?, ?, ?, 0, '{}', ?, ?, 0, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(taskType), string(initial), locked, prerequisiteID, time.Now().UnixNano())
	if err != nil {
		return Task{}, fmt.Errorf("create task %d: %w", id, err)
	}

	return s.GetTask(ctx, id)
}

// PutResponse upserts a response row keyed by (task, canonical key) when the
// key is present, or appends a legacy-id row otherwise. Mirrors how the form
// service writes: canonical rows are updated in place, legacy rows accrete
// until migration collapses them.
func (s *Store) PutResponse(ctx context.Context, r Response) error {
	if r.FieldKey == "" && r.LegacyFieldID == nil {
		return fmt.Errorf("put response for task %d: no field reference", r.TaskID)
	}

	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	if r.FieldKey != "" {
		res, err := s.db.ExecContext(ctx, `
			UPDATE responses SET legacy_field_id = ?, value = ?, updated_at = ?
			WHERE task_id = ? AND field_key = ?
		`, r.LegacyFieldID, r.Value, updatedAt.UnixNano(), r.TaskID, r.FieldKey)
		if err != nil {
			return fmt.Errorf("put response for task %d: %w", r.TaskID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
	}

	var key any
	if r.FieldKey != "" {
		key = r.FieldKey
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (task_id, field_key, legacy_field_id, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.TaskID, key, r.LegacyFieldID, r.Value, updatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put response for task %d: %w", r.TaskID, err)
	}
	return nil
}

// SetLocked flips the lock column directly. Used by prerequisite workflows
// and tests; the status transition itself still flows through ApplyState via
// an unlock event.
func (s *Store) SetLocked(ctx context.Context, taskID int64, locked bool) error {
	v := 0
	if locked {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET locked = ? WHERE id = ?`, v, taskID)
	if err != nil {
		return fmt.Errorf("set locked for task %d: %w", taskID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTaskNotFound
	}
	return nil
}
