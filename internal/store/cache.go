package store

import "sync"

// SnapshotCache caches the most recent applied snapshot per task.
//
// This replaces the ad-hoc module-level maps the platform accumulated: the
// invalidation contract is explicit. ApplyState invalidates the entry on
// every successful write, so a hit is never older than the latest write
// through this store.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[int64]Snapshot
}

// NewSnapshotCache creates an empty cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{entries: make(map[int64]Snapshot)}
}

// Get returns the cached snapshot for a task, if present.
func (c *SnapshotCache) Get(taskID int64) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.entries[taskID]
	return snap, ok
}

// Put stores a snapshot, keeping whichever version is newer. Out-of-order
// puts from racing readers can never roll a cached entry backwards.
func (c *SnapshotCache) Put(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[snap.TaskID]; ok && cur.Version >= snap.Version {
		return
	}
	c.entries[snap.TaskID] = snap
}

// Invalidate drops the entry for a task.
func (c *SnapshotCache) Invalidate(taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, taskID)
}

// Len returns the number of cached entries. Used by tests.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
