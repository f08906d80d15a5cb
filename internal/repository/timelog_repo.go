package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andy/tasktimer/internal/db"
	"github.com/andy/tasktimer/internal/domain"
	"github.com/google/uuid"
)

// TimeLogRepo is a SQLite implementation of TimeLogRepository
type TimeLogRepo struct {
	db *db.DB
}

// NewTimeLogRepo creates a new TimeLogRepo
func NewTimeLogRepo(database *db.DB) *TimeLogRepo {
	return &TimeLogRepo{db: database}
}

// ListByTask returns a task's intervals in start order
func (r *TimeLogRepo) ListByTask(ctx context.Context, taskID string) ([]domain.TimeLog, error) {
	query := `
		SELECT id, task_id, start_time, end_time
		FROM time_logs
		WHERE task_id = ?
		ORDER BY start_time, id
	`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time logs: %w", err)
	}
	defer rows.Close()

	byTask, err := scanLogs(rows)
	if err != nil {
		return nil, err
	}
	return byTask[taskID], nil
}

// ListAll returns every interval grouped by task ID
func (r *TimeLogRepo) ListAll(ctx context.Context) (map[string][]domain.TimeLog, error) {
	query := `
		SELECT id, task_id, start_time, end_time
		FROM time_logs
		ORDER BY task_id, start_time, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list time logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// GetOpen returns the task's open interval, or nil if there is none
func (r *TimeLogRepo) GetOpen(ctx context.Context, taskID string) (*domain.TimeLog, error) {
	query := `
		SELECT id, start_time
		FROM time_logs
		WHERE task_id = ? AND end_time IS NULL
	`

	log := &domain.TimeLog{}
	err := r.db.QueryRowContext(ctx, query, taskID).Scan(&log.ID, &log.Start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open time log: %w", err)
	}
	return log, nil
}

// Open inserts a new open interval. It fails with ErrOpenIntervalExists when
// the task already has one.
func (r *TimeLogRepo) Open(ctx context.Context, taskID string, start time.Time) (*domain.TimeLog, error) {
	log := &domain.TimeLog{
		ID:    uuid.NewString(),
		Start: formatTime(start),
	}

	query := "INSERT INTO time_logs (id, task_id, start_time) VALUES (?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, log.ID, taskID, log.Start); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOpenIntervalExists
		}
		return nil, fmt.Errorf("failed to open time log: %w", err)
	}
	return log, nil
}

// CloseOpen stamps end on the task's open interval and reports whether there
// was one to close
func (r *TimeLogRepo) CloseOpen(ctx context.Context, taskID string, end time.Time) (bool, error) {
	query := "UPDATE time_logs SET end_time = ? WHERE task_id = ? AND end_time IS NULL"

	result, err := r.db.ExecContext(ctx, query, formatTime(end), taskID)
	if err != nil {
		return false, fmt.Errorf("failed to close time log: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check close result: %w", err)
	}
	return n > 0, nil
}

func scanLogs(rows *sql.Rows) (map[string][]domain.TimeLog, error) {
	byTask := make(map[string][]domain.TimeLog)
	for rows.Next() {
		var log domain.TimeLog
		var taskID string
		var end sql.NullString
		if err := rows.Scan(&log.ID, &taskID, &log.Start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan time log: %w", err)
		}
		if end.Valid {
			log.End = end.String
		}
		byTask[taskID] = append(byTask[taskID], log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time logs: %w", err)
	}
	return byTask, nil
}
