package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// Key layout. The processed marker is a separate key from the task document
// so that the replay guard is a single SETNX, independent of document
// rewrites.
const (
	redisTaskPrefix      = "veritas:task:"
	redisProcessedPrefix = "veritas:processed:"
)

// RedisTaskStore keeps validation tasks in Redis. It suits lightweight
// deployments that want a durable replay guard without running PostgreSQL.
// Keys are written without expiry: a processed marker that lapses would
// reopen the task to replay.
type RedisTaskStore struct {
	rdb *redis.Client
}

// NewRedisTaskStore creates a RedisTaskStore on the given client.
func NewRedisTaskStore(rdb *redis.Client) *RedisTaskStore {
	return &RedisTaskStore{rdb: rdb}
}

// Create stores a new pending task document.
func (s *RedisTaskStore) Create(ctx context.Context, task *model.Task) error {
	task.Status = model.TaskStatusPending
	task.CreatedAt = time.Now().UTC()

	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	set, err := s.rdb.SetNX(ctx, redisTaskPrefix+task.ID.String(), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if !set {
		return ErrTaskExists
	}
	return nil
}

// Get retrieves a task document.
func (s *RedisTaskStore) Get(ctx context.Context, id model.TaskID) (*model.Task, error) {
	raw, err := s.rdb.Get(ctx, redisTaskPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	task := &model.Task{}
	if err := json.Unmarshal(raw, task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return task, nil
}

// MarkProcessed flips the replay guard with a single SETNX on the processed
// marker key, then updates the task document to match. The marker, not the
// document, is authoritative: a crash between the two writes leaves a task
// that is guarded against replay but still reads as pending, which is the
// safe side.
func (s *RedisTaskStore) MarkProcessed(ctx context.Context, id model.TaskID) (bool, error) {
	set, err := s.rdb.SetNX(ctx, redisProcessedPrefix+id.String(), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("mark task %s processed: %w", id, err)
	}
	if !set {
		return false, nil
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	task.Status = model.TaskStatusProcessed
	task.ProcessedAt = &now
	if err := s.put(ctx, task); err != nil {
		return false, err
	}
	return true, nil
}

// RecordResult stores the score and payload digest on the task document.
func (s *RedisTaskStore) RecordResult(ctx context.Context, id model.TaskID, score int, payloadDigest string) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	task.Score = &score
	task.PayloadDigest = payloadDigest
	return s.put(ctx, task)
}

// ListBySubject scans the task keyspace and filters by subject. O(n) over
// all tasks; acceptable for the deployments this store targets.
func (s *RedisTaskStore) ListBySubject(ctx context.Context, subject string, limit, offset int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []*model.Task
	iter := s.rdb.Scan(ctx, 0, redisTaskPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan task %s: %w", iter.Val(), err)
		}
		task := &model.Task{}
		if err := json.Unmarshal(raw, task); err != nil {
			continue
		}
		if task.Subject == subject {
			tasks = append(tasks, task)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	if offset >= len(tasks) {
		return nil, nil
	}
	tasks = tasks[offset:]
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *RedisTaskStore) put(ctx context.Context, task *model.Task) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.rdb.Set(ctx, redisTaskPrefix+task.ID.String(), doc, 0).Err(); err != nil {
		return fmt.Errorf("store task %s: %w", task.ID, err)
	}
	return nil
}
