package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/id"
	"github.com/mtask/mtask/task"
)

// EnqueueTask stores the task as a Hash and adds it to the queue's Sorted Set.
func (s *Store) EnqueueTask(ctx context.Context, t *task.Task) error {
	tID := t.ID.String()
	key := taskKey(tID)

	// Check for duplicate.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("mtask/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return mtask.ErrTaskAlreadyExists
	}

	fields := taskToMap(t)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, taskIDsKey, tID)

	// Add to queue sorted set: score = run-at time, so delayed tasks stay
	// parked until due.
	pipe.ZAdd(ctx, queueKey(t.Queue), goredis.Z{Score: taskScore(t.RunAt), Member: tID})

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("mtask/redis: enqueue task: %w", err)
	}
	return nil
}

// DequeueTasks atomically claims up to limit due tasks from the given queues.
// Only IDs whose score is at or below now are eligible; the ZRem claim means
// exactly one worker wins each ID under concurrent dequeue.
func (s *Store) DequeueTasks(ctx context.Context, queues []string, limit int) ([]*task.Task, error) {
	now := time.Now().UTC()
	maxScore := strconv.FormatInt(now.Unix(), 10)
	var tasks []*task.Task

	for _, q := range queues {
		if len(tasks) >= limit {
			break
		}
		remaining := limit - len(tasks)
		qk := queueKey(q)

		members, err := s.client.ZRangeByScore(ctx, qk, &goredis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: int64(remaining),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("mtask/redis: dequeue zrangebyscore: %w", err)
		}

		for _, tID := range members {
			// Claim: the worker whose ZRem removes the member owns the task.
			// A crash between the ZRem and the HSet below strands the task
			// pending but off the queue; only an operator re-enqueue recovers
			// it. TODO: fold claim+mark into a single Lua script like the
			// admission bucket.
			removed, remErr := s.client.ZRem(ctx, qk, tID).Result()
			if remErr != nil {
				return nil, fmt.Errorf("mtask/redis: dequeue zrem: %w", remErr)
			}
			if removed == 0 {
				continue // claimed by another worker
			}

			key := taskKey(tID)
			_, err = s.client.HSet(ctx, key,
				"state", string(task.StateRunning),
				"started_at", now.Format(time.RFC3339Nano),
				"updated_at", now.Format(time.RFC3339Nano),
			).Result()
			if err != nil {
				return nil, fmt.Errorf("mtask/redis: dequeue update: %w", err)
			}

			t, getErr := s.getTaskByKey(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, taskID id.TaskID) (*task.Task, error) {
	return s.getTaskByKey(ctx, taskKey(taskID.String()))
}

// UpdateTask persists changes to an existing task. A task moved to the
// retrying state is re-added to its queue sorted set scored by RunAt so it
// redelivers after the backoff elapses.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	tID := t.ID.String()
	key := taskKey(tID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("mtask/redis: update task exists: %w", err)
	}
	if exists == 0 {
		return mtask.ErrTaskNotFound
	}

	fields := taskToMap(t)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if t.State == task.StateRetrying || t.State == task.StatePending {
		pipe.ZAdd(ctx, queueKey(t.Queue), goredis.Z{Score: taskScore(t.RunAt), Member: tID})
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("mtask/redis: update task: %w", err)
	}
	return nil
}

// DeleteTask removes a task by ID.
func (s *Store) DeleteTask(ctx context.Context, taskID id.TaskID) error {
	tID := taskID.String()
	key := taskKey(tID)

	// Get queue name before deleting to remove from sorted set.
	q, err := s.client.HGet(ctx, key, "queue").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return mtask.ErrTaskNotFound
		}
		return fmt.Errorf("mtask/redis: delete task get queue: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, taskIDsKey, tID)
	pipe.ZRem(ctx, queueKey(q), tID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("mtask/redis: delete task: %w", err)
	}
	return nil
}

// ListTasksByState returns tasks matching the given state.
func (s *Store) ListTasksByState(ctx context.Context, state task.State, opts task.ListOpts) ([]*task.Task, error) {
	ids, err := s.client.SMembers(ctx, taskIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("mtask/redis: list tasks smembers: %w", err)
	}

	tasks := make([]*task.Task, 0, len(ids))
	for _, tID := range ids {
		t, getErr := s.getTaskByKey(ctx, taskKey(tID))
		if getErr != nil {
			continue // skip missing
		}
		if t.State != state {
			continue
		}
		if opts.Queue != "" && t.Queue != opts.Queue {
			continue
		}
		if opts.TenantID != "" && t.TenantID != opts.TenantID {
			continue
		}
		tasks = append(tasks, t)
	}

	// Apply offset/limit.
	if opts.Offset > 0 && opts.Offset < len(tasks) {
		tasks = tasks[opts.Offset:]
	} else if opts.Offset >= len(tasks) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(tasks) {
		tasks = tasks[:opts.Limit]
	}
	return tasks, nil
}

// HeartbeatTask updates the heartbeat timestamp for a running task.
func (s *Store) HeartbeatTask(ctx context.Context, taskID id.TaskID, workerID id.WorkerID) error {
	key := taskKey(taskID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("mtask/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return mtask.ErrTaskNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.HSet(ctx, key,
		"heartbeat_at", now,
		"worker_id", workerID.String(),
		"updated_at", now,
	).Result()
	if err != nil {
		return fmt.Errorf("mtask/redis: heartbeat task: %w", err)
	}
	return nil
}

// ReapStaleTasks returns running tasks whose last heartbeat is older than the
// threshold. StartedAt stands in for tasks that died before their first beat.
func (s *Store) ReapStaleTasks(ctx context.Context, threshold time.Duration) ([]*task.Task, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	ids, err := s.client.SMembers(ctx, taskIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("mtask/redis: reap smembers: %w", err)
	}

	var stale []*task.Task
	for _, tID := range ids {
		t, getErr := s.getTaskByKey(ctx, taskKey(tID))
		if getErr != nil {
			continue
		}
		if t.State != task.StateRunning {
			continue
		}
		last := t.HeartbeatAt
		if last == nil {
			last = t.StartedAt
		}
		if last != nil && last.Before(cutoff) {
			stale = append(stale, t)
		}
	}
	return stale, nil
}

// CountTasks returns the number of tasks matching the given options.
func (s *Store) CountTasks(ctx context.Context, opts task.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, taskIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("mtask/redis: count smembers: %w", err)
	}

	var count int64
	for _, tID := range ids {
		t, getErr := s.getTaskByKey(ctx, taskKey(tID))
		if getErr != nil {
			continue
		}
		if opts.State != "" && t.State != opts.State {
			continue
		}
		if opts.Queue != "" && t.Queue != opts.Queue {
			continue
		}
		if opts.TenantID != "" && t.TenantID != opts.TenantID {
			continue
		}
		count++
	}
	return count, nil
}

// ── helpers ──

// taskScore computes a sorted-set score from run_at. Lower score = due
// earlier. A zero RunAt sorts first so immediate tasks drain before delayed
// ones.
func taskScore(runAt time.Time) float64 {
	if runAt.IsZero() {
		return 0
	}
	return float64(runAt.Unix())
}

func taskToMap(t *task.Task) map[string]interface{} {
	m := map[string]interface{}{
		"id":           t.ID.String(),
		"name":         t.Name,
		"queue":        t.Queue,
		"tenant_id":    t.TenantID,
		"request_key":  t.RequestKey,
		"payload":      string(t.Payload),
		"state":        string(t.State),
		"attempt":      strconv.Itoa(t.Attempt),
		"max_attempts": strconv.Itoa(t.MaxAttempts),
		"last_error":   t.LastError,
		"result":       string(t.Result),
		"worker_id":    t.WorkerID.String(),
		"run_at":       t.RunAt.Format(time.RFC3339Nano),
		"timeout":      strconv.FormatInt(int64(t.Timeout), 10),
		"created_at":   t.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   t.UpdatedAt.Format(time.RFC3339Nano),
	}
	if t.StartedAt != nil {
		m["started_at"] = t.StartedAt.Format(time.RFC3339Nano)
	}
	if t.CompletedAt != nil {
		m["completed_at"] = t.CompletedAt.Format(time.RFC3339Nano)
	}
	if t.HeartbeatAt != nil {
		m["heartbeat_at"] = t.HeartbeatAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getTaskByKey(ctx context.Context, key string) (*task.Task, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("mtask/redis: get task: %w", err)
	}
	if len(vals) == 0 {
		return nil, mtask.ErrTaskNotFound
	}
	return mapToTask(vals)
}

func mapToTask(m map[string]string) (*task.Task, error) {
	tID, err := id.ParseTaskID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("mtask/redis: parse task id: %w", err)
	}

	attempt, _ := strconv.Atoi(m["attempt"])             //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])    //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	runAt, _ := time.Parse(time.RFC3339Nano, m["run_at"])         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	t := &task.Task{
		Entity: mtask.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          tID,
		Name:        m["name"],
		Queue:       m["queue"],
		TenantID:    m["tenant_id"],
		RequestKey:  m["request_key"],
		Payload:     []byte(m["payload"]),
		State:       task.State(m["state"]),
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		LastError:   m["last_error"],
		Result:      []byte(m["result"]),
		RunAt:       runAt,
		Timeout:     time.Duration(timeout),
	}

	if wid := m["worker_id"]; wid != "" {
		t.WorkerID, _ = id.ParseWorkerID(wid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		ts, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		t.StartedAt = &ts
	}
	if v := m["completed_at"]; v != "" {
		ts, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		t.CompletedAt = &ts
	}
	if v := m["heartbeat_at"]; v != "" {
		ts, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		t.HeartbeatAt = &ts
	}

	return t, nil
}
