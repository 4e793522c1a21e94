package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// TaskRepository provides validation task storage against PostgreSQL. The
// processed flag on a task row is the engine's replay guard, so rows are
// append-and-update only; nothing deletes them.
type TaskRepository struct {
	db *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new pending task.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	task.Status = model.TaskStatusPending
	task.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO tasks (task_id, rule_id, subject, requester, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		task.ID[:], task.RuleID, task.Subject, task.Requester,
		task.Status, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskExists
	}
	return nil
}

// Get retrieves a task by its identifier.
func (r *TaskRepository) Get(ctx context.Context, id model.TaskID) (*model.Task, error) {
	query := `
		SELECT task_id, rule_id, subject, requester, status, score, payload_digest, created_at, processed_at
		FROM tasks WHERE task_id = $1`

	task := &model.Task{}
	var rawID []byte
	err := r.db.QueryRow(ctx, query, id[:]).Scan(
		&rawID, &task.RuleID, &task.Subject, &task.Requester,
		&task.Status, &task.Score, &task.PayloadDigest,
		&task.CreatedAt, &task.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	copy(task.ID[:], rawID)
	return task, nil
}

// MarkProcessed atomically flips a pending task to processed. The returned
// boolean reports whether this call performed the flip; false means another
// caller already did, which the processor treats as the replay guard
// tripping. The compare-and-set lives in the WHERE clause so concurrent
// completions for one task race on the database row, not in process memory.
func (r *TaskRepository) MarkProcessed(ctx context.Context, id model.TaskID) (bool, error) {
	query := `
		UPDATE tasks SET status = $2, processed_at = $3
		WHERE task_id = $1 AND status = $4`

	tag, err := r.db.Exec(ctx, query,
		id[:], model.TaskStatusProcessed, time.Now().UTC(), model.TaskStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark task %s processed: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordResult stores the score and payload digest on a processed task row.
func (r *TaskRepository) RecordResult(ctx context.Context, id model.TaskID, score int, payloadDigest string) error {
	query := `UPDATE tasks SET score = $2, payload_digest = $3 WHERE task_id = $1`
	tag, err := r.db.Exec(ctx, query, id[:], score, payloadDigest)
	if err != nil {
		return fmt.Errorf("record result for task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListBySubject returns tasks for a subject, newest first.
func (r *TaskRepository) ListBySubject(ctx context.Context, subject string, limit, offset int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT task_id, rule_id, subject, requester, status, score, payload_digest, created_at, processed_at
		FROM tasks
		WHERE subject = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, subject, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		var rawID []byte
		if err := rows.Scan(
			&rawID, &task.RuleID, &task.Subject, &task.Requester,
			&task.Status, &task.Score, &task.PayloadDigest,
			&task.CreatedAt, &task.ProcessedAt,
		); err != nil {
			return nil, err
		}
		copy(task.ID[:], rawID)
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
