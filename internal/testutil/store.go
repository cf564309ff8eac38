// Package testutil provides shared helpers for seeding stores in tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/complyos/taskcore/internal/store"
)

// OpenStore opens a fresh store in a temp directory, closed on cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "taskcore.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedTask creates a task row, failing the test on error.
func SeedTask(t testing.TB, s *store.Store, id int64, taskType store.TaskType) store.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), id, taskType, nil)
	if err != nil {
		t.Fatalf("seed task %d: %v", id, err)
	}
	return task
}

// SeedLockedTask creates a task row locked behind a prerequisite.
func SeedLockedTask(t testing.TB, s *store.Store, id int64, taskType store.TaskType, prerequisiteID int64) store.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), id, taskType, &prerequisiteID)
	if err != nil {
		t.Fatalf("seed locked task %d: %v", id, err)
	}
	return task
}

// SeedResponse writes a canonical-key response with the given value.
func SeedResponse(t testing.TB, s *store.Store, taskID int64, key, value string) {
	t.Helper()
	err := s.PutResponse(context.Background(), store.Response{
		TaskID:    taskID,
		FieldKey:  key,
		Value:     StrPtr(value),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed response %s for task %d: %v", key, taskID, err)
	}
}

// SeedLegacyResponse writes a legacy-id response with the given value.
func SeedLegacyResponse(t testing.TB, s *store.Store, taskID, legacyID int64, value string) {
	t.Helper()
	err := s.PutResponse(context.Background(), store.Response{
		TaskID:        taskID,
		LegacyFieldID: &legacyID,
		Value:         StrPtr(value),
		UpdatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("seed legacy response %d for task %d: %v", legacyID, taskID, err)
	}
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
