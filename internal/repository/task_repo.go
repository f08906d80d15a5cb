package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andy/tasktimer/internal/db"
	"github.com/andy/tasktimer/internal/domain"
)

// TaskRepo is a SQLite implementation of TaskRepository
type TaskRepo struct {
	db *db.DB
}

// NewTaskRepo creates a new TaskRepo
func NewTaskRepo(database *db.DB) *TaskRepo {
	return &TaskRepo{db: database}
}

// Create inserts a new task
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		string(task.Status),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `
		SELECT id, title, status, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns all tasks, oldest first
func (r *TaskRepo) List(ctx context.Context) ([]*domain.Task, error) {
	query := `
		SELECT id, title, status, created_at, updated_at
		FROM tasks
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// UpdateStatus sets a task's status. A terminal status also closes the task's
// open interval in the same transaction; closed reports whether there was one.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, at time.Time) (closed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if status.IsTerminal() {
		result, err := tx.ExecContext(ctx,
			"UPDATE time_logs SET end_time = ? WHERE task_id = ? AND end_time IS NULL",
			formatTime(at), id)
		if err != nil {
			return false, fmt.Errorf("failed to close time log: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to check close result: %w", err)
		}
		closed = n > 0
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to update task status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return false, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return closed, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	task := &domain.Task{}
	var status, createdAt, updatedAt string

	if err := row.Scan(&task.ID, &task.Title, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)

	var err error
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return task, nil
}
