package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andy/tasktimer/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrOpenIntervalExists = errors.New("task already has an open interval")
)

// TaskRepository manages task persistence. Returned tasks carry no time logs;
// those come from TimeLogRepository.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error) // ErrNotFound if missing
	List(ctx context.Context) ([]*domain.Task, error)
	// UpdateStatus closes the open interval too when status is terminal, atomically
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, at time.Time) (closed bool, err error)
}

// TimeLogRepository manages work intervals. The store enforces at most one
// open interval per task.
type TimeLogRepository interface {
	ListByTask(ctx context.Context, taskID string) ([]domain.TimeLog, error)
	ListAll(ctx context.Context) (map[string][]domain.TimeLog, error)
	GetOpen(ctx context.Context, taskID string) (*domain.TimeLog, error) // nil if none
	Open(ctx context.Context, taskID string, start time.Time) (*domain.TimeLog, error)
	CloseOpen(ctx context.Context, taskID string, end time.Time) (bool, error)
}
