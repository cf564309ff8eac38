package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/complyos/taskcore/internal/status"
)

// applyAttempts bounds the optimistic write loop: the initial attempt plus
// exactly one retry against the fresh row after a version conflict.
const applyAttempts = 2

// ApplyState applies a (status, progress, metadata) triple to a task as a
// single consistent unit. This is the only mutation path for those columns.
//
// Semantics:
//   - read-modify-write against the row's current version; a concurrent
//     writer is detected by UPDATE ... WHERE version = ? affecting no rows,
//     which triggers one retry against the re-read row.
//   - after writing, the row is re-read and the written fields verified; a
//     mismatch triggers exactly one corrective write before the whole call
//     is reported as a TransientError.
//   - always stamps metadata.lastProgressUpdate and preserves the prior
//     status/progress under metadata.previousStatus/previousProgress.
//   - invalidates the snapshot cache on every successful write.
func (s *Store) ApplyState(ctx context.Context, taskID int64, newStatus status.Status, newProgress int, patch Metadata) (Snapshot, error) {
	if !newStatus.Valid() {
		return Snapshot{}, fmt.Errorf("apply state: task %d: unknown status %q", taskID, newStatus)
	}
	if newProgress < 0 || newProgress > 100 {
		return Snapshot{}, fmt.Errorf("apply state: task %d: progress %d out of range", taskID, newProgress)
	}

	now := time.Now()

	for attempt := 1; attempt <= applyAttempts; attempt++ {
		cur, err := s.GetTask(ctx, taskID)
		if err != nil {
			return Snapshot{}, err
		}

		meta := cur.Metadata.Clone()
		for k, v := range patch {
			meta[k] = v
		}
		meta[MetaPreviousStatus] = string(cur.Status)
		meta[MetaPreviousProgress] = cur.Progress
		meta[MetaLastProgressUpdate] = now.UTC().Format(time.RFC3339Nano)

		rawMeta, err := marshalMetadata(meta)
		if err != nil {
			return Snapshot{}, fmt.Errorf("apply state: task %d: %w", taskID, err)
		}

		res, err := s.db.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?, progress = ?, metadata = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?
		`, string(newStatus), newProgress, rawMeta, now.UnixNano(), taskID, cur.Version)
		if err != nil {
			return Snapshot{}, &TransientError{Op: "apply state", TaskID: taskID, Err: err}
		}

		n, err := res.RowsAffected()
		if err != nil {
			return Snapshot{}, &TransientError{Op: "apply state", TaskID: taskID, Err: err}
		}
		if n == 0 {
			// Version moved under us. Loop retries once with the fresh row.
			continue
		}

		return s.verifyApplied(ctx, taskID, newStatus, newProgress)
	}

	return Snapshot{}, &TransientError{
		Op:     "apply state",
		TaskID: taskID,
		Err:    errors.New("version conflict persisted after retry"),
	}
}

// verifyApplied re-reads the row and confirms the written fields took.
// On mismatch it performs exactly one corrective write, then reports a
// TransientError if the row still disagrees. Never loops.
func (s *Store) verifyApplied(ctx context.Context, taskID int64, wantStatus status.Status, wantProgress int) (Snapshot, error) {
	got, err := s.GetTask(ctx, taskID)
	if err != nil {
		return Snapshot{}, &TransientError{Op: "verify state", TaskID: taskID, Err: err}
	}

	if got.Status == wantStatus && got.Progress == wantProgress {
		s.cache.Invalidate(taskID)
		return snapshotOf(got), nil
	}

	// One corrective write against whatever version we just observed.
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, progress = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(wantStatus), wantProgress, time.Now().UnixNano(), taskID, got.Version)
	if err != nil {
		return Snapshot{}, &TransientError{Op: "corrective write", TaskID: taskID, Err: err}
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return Snapshot{}, &TransientError{Op: "corrective write", TaskID: taskID, Err: errors.New("row changed during correction")}
	}

	got, err = s.GetTask(ctx, taskID)
	if err != nil {
		return Snapshot{}, &TransientError{Op: "verify state", TaskID: taskID, Err: err}
	}
	if got.Status != wantStatus || got.Progress != wantProgress {
		return Snapshot{}, &TransientError{
			Op:     "verify state",
			TaskID: taskID,
			Err:    fmt.Errorf("verification mismatch: got %s/%d want %s/%d", got.Status, got.Progress, wantStatus, wantProgress),
		}
	}

	s.cache.Invalidate(taskID)
	return snapshotOf(got), nil
}

// ClearResponses removes all response rows for a task. Returns the number of
// rows removed. The engine calls this as part of a clear-then-reconcile
// cycle; it never touches status/progress (that is ApplyState's job).
func (s *Store) ClearResponses(ctx context.Context, taskID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, fmt.Errorf("clear responses for task %d: %w", taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear responses for task %d: rows affected: %w", taskID, err)
	}
	return n, nil
}

func snapshotOf(t Task) Snapshot {
	return Snapshot{
		TaskID:    t.ID,
		Status:    t.Status,
		Progress:  t.Progress,
		Metadata:  t.Metadata,
		Version:   t.Version,
		UpdatedAt: t.UpdatedAt,
	}
}
