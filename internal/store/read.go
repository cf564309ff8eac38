package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetTask reads a task row. Returns ErrTaskNotFound for unknown ids.
func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_type, status, progress, metadata, locked, prerequisite_id, version, updated_at
		FROM tasks
		WHERE id = ?
	`, id)
	return scanTask(row)
}

// ListTaskIDs returns every task id in ascending order.
// Used by the drift sweeper; deterministic order keeps sweep logs stable.
func (s *Store) ListTaskIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list task ids: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	return ids, nil
}

// ListResponses returns all responses for a task ordered by update time then
// row id, so last-write-wins collapsing is deterministic.
func (s *Store) ListResponses(ctx context.Context, taskID int64) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, field_key, legacy_field_id, value, updated_at
		FROM responses
		WHERE task_id = ?
		ORDER BY updated_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list responses for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var (
			r         Response
			key       sql.NullString
			legacy    sql.NullInt64
			value     sql.NullString
			updatedAt int64
		)
		if err := rows.Scan(&r.TaskID, &key, &legacy, &value, &updatedAt); err != nil {
			return nil, fmt.Errorf("list responses: scan: %w", err)
		}
		if key.Valid {
			r.FieldKey = key.String
		}
		if legacy.Valid {
			id := legacy.Int64
			r.LegacyFieldID = &id
		}
		if value.Valid {
			v := value.String
			r.Value = &v
		}
		r.UpdatedAt = time.Unix(0, updatedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t         Task
		rawMeta   string
		locked    int
		prereq    sql.NullInt64
		updatedAt int64
	)
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.Progress, &rawMeta, &locked, &prereq, &t.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("scan task: %w", err)
	}

	t.Metadata, err = unmarshalMetadata(rawMeta)
	if err != nil {
		return Task{}, fmt.Errorf("task %d: %w", t.ID, err)
	}
	t.Locked = locked != 0
	if prereq.Valid {
		id := prereq.Int64
		t.PrerequisiteID = &id
	}
	t.UpdatedAt = time.Unix(0, updatedAt)

	if !t.Status.Valid() {
		return Task{}, fmt.Errorf("task %d: unknown stored status %q", t.ID, t.Status)
	}
	return t, nil
}
