package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/repository"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrTimerAlreadyRunning = errors.New("timer is already running")
	ErrTimerNotRunning     = errors.New("timer is not running")
	ErrTaskNotOngoing      = errors.New("task is not ongoing")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTitleRequired       = errors.New("task title is required")
)

// TimerService owns the authoritative time-log state behind the task API
type TimerService interface {
	// CreateTask adds a task; an empty status means TODO
	CreateTask(ctx context.Context, title string, status domain.TaskStatus) (*domain.Task, error)

	// GetTask returns a task with its time logs and total
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// ListTasks returns every task with its time logs and total
	ListTasks(ctx context.Context) ([]domain.Task, error)

	// UpdateStatus changes a task's status; a terminal status closes any open interval
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.Task, error)

	// StartTimer opens an interval (task must be ONGOING with no open interval)
	StartTimer(ctx context.Context, id string) (*domain.Task, error)

	// PauseTimer closes the open interval
	PauseTimer(ctx context.Context, id string) (*domain.Task, error)
}

type timerService struct {
	taskRepo repository.TaskRepository
	logRepo  repository.TimeLogRepository
	clock    clockwork.Clock
}

// NewTimerService creates a new timer service
func NewTimerService(
	taskRepo repository.TaskRepository,
	logRepo repository.TimeLogRepository,
	clock clockwork.Clock,
) TimerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &timerService{
		taskRepo: taskRepo,
		logRepo:  logRepo,
		clock:    clock,
	}
}

func (s *timerService) CreateTask(ctx context.Context, title string, status domain.TaskStatus) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if status == "" {
		status = domain.TaskStatusTodo
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	task := &domain.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    status,
		TimeLogs:  []domain.TimeLog{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *timerService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, err
	}

	logs, err := s.logRepo.ListByTask(ctx, id)
	if err != nil {
		return nil, err
	}
	withLogs(task, logs)
	return task, nil
}

func (s *timerService) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		withLogs(t, logs[t.ID])
		out = append(out, *t)
	}
	return out, nil
}

func (s *timerService) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if _, err := s.GetTask(ctx, id); err != nil {
		return nil, err
	}

	// Finishing a task stops its clock in the same write
	if _, err := s.taskRepo.UpdateStatus(ctx, id, status, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

func (s *timerService) StartTimer(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.Status.AllowsTimer() {
		return nil, fmt.Errorf("%w: status %s", ErrTaskNotOngoing, task.Status)
	}

	open, err := s.logRepo.GetOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrTimerAlreadyRunning
	}

	if _, err := s.logRepo.Open(ctx, id, s.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrOpenIntervalExists) {
			return nil, ErrTimerAlreadyRunning
		}
		return nil, err
	}
	return s.GetTask(ctx, id)
}

func (s *timerService) PauseTimer(ctx context.Context, id string) (*domain.Task, error) {
	if _, err := s.GetTask(ctx, id); err != nil {
		return nil, err
	}

	closed, err := s.logRepo.CloseOpen(ctx, id, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, ErrTimerNotRunning
	}
	return s.GetTask(ctx, id)
}

// withLogs attaches logs and recomputes the closed-interval total
func withLogs(task *domain.Task, logs []domain.TimeLog) {
	if logs == nil {
		logs = []domain.TimeLog{}
	}
	task.TimeLogs = logs
	task.TotalTimeSpent = timecalc.WholeSeconds(timecalc.ClosedDuration(logs))
}
