package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/dlq"
	"github.com/mtask/mtask/id"
	"github.com/mtask/mtask/task"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ task.Store = (*Store)(nil)
	_ dlq.Store  = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	tasks map[string]*task.Task
	dlqs  map[string]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		tasks: make(map[string]*task.Task),
		dlqs:  make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Task Store
// ──────────────────────────────────────────────────

// EnqueueTask persists a new task in pending state.
func (m *Store) EnqueueTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.ID.String()
	if _, exists := m.tasks[key]; exists {
		return mtask.ErrTaskAlreadyExists
	}
	cp := *t
	m.tasks[key] = &cp
	return nil
}

// DequeueTasks atomically claims up to limit due tasks from the given
// queues, sets them to running, and returns them. A task is due when it
// is pending or retrying and its RunAt is not in the future.
func (m *Store) DequeueTasks(_ context.Context, queues []string, limit int) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	now := time.Now().UTC()

	// Collect candidates.
	candidates := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.State != task.StatePending && t.State != task.StateRetrying {
			continue
		}
		if !t.RunAt.IsZero() && t.RunAt.After(now) {
			continue
		}
		if len(queueSet) > 0 {
			if _, ok := queueSet[t.Queue]; !ok {
				continue
			}
		}
		candidates = append(candidates, t)
	}

	// Sort: RunAt ASC so older work drains first.
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].RunAt.Before(candidates[k].RunAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*task.Task, len(candidates))
	for i, t := range candidates {
		t.State = task.StateRunning
		n := now
		t.StartedAt = &n
		// Return a copy so callers can mutate without racing with the store.
		cp := *t
		result[i] = &cp
	}

	return result, nil
}

// GetTask retrieves a task by ID.
func (m *Store) GetTask(_ context.Context, taskID id.TaskID) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID.String()]
	if !ok {
		return nil, mtask.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// UpdateTask persists changes to an existing task.
func (m *Store) UpdateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.ID.String()
	if _, ok := m.tasks[key]; !ok {
		return mtask.ErrTaskNotFound
	}
	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	m.tasks[key] = &cp
	return nil
}

// DeleteTask removes a task by ID.
func (m *Store) DeleteTask(_ context.Context, taskID id.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := taskID.String()
	if _, ok := m.tasks[key]; !ok {
		return mtask.ErrTaskNotFound
	}
	delete(m.tasks, key)
	return nil
}

// ListTasksByState returns tasks matching the given state.
func (m *Store) ListTasksByState(_ context.Context, state task.State, opts task.ListOpts) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.State != state {
			continue
		}
		if opts.Queue != "" && t.Queue != opts.Queue {
			continue
		}
		if opts.TenantID != "" && t.TenantID != opts.TenantID {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// HeartbeatTask updates the heartbeat timestamp for a running task.
func (m *Store) HeartbeatTask(_ context.Context, taskID id.TaskID, _ id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID.String()]
	if !ok {
		return mtask.ErrTaskNotFound
	}
	now := time.Now().UTC()
	t.HeartbeatAt = &now
	return nil
}

// ReapStaleTasks returns running tasks whose last heartbeat is older than
// the given threshold. A task that never heartbeat (worker died before the
// first beat) is judged by StartedAt instead, so it still redelivers.
func (m *Store) ReapStaleTasks(_ context.Context, threshold time.Duration) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*task.Task
	for _, t := range m.tasks {
		if t.State != task.StateRunning {
			continue
		}
		last := t.HeartbeatAt
		if last == nil {
			last = t.StartedAt
		}
		if last != nil && last.Before(cutoff) {
			cp := *t
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// CountTasks returns the number of tasks matching the given options.
func (m *Store) CountTasks(_ context.Context, opts task.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, t := range m.tasks {
		if opts.Queue != "" && t.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && t.State != opts.State {
			continue
		}
		if opts.TenantID != "" && t.TenantID != opts.TenantID {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds a failed task entry to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns DLQ entries matching the given options.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		if opts.TenantID != "" && e.TenantID != opts.TenantID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, mtask.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// ReplayDLQ marks a DLQ entry as replayed.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return mtask.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.dlqs)), nil
}
