package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PlaceholderTaskID stands in for "no task" in consumers that always hold a
// controller, such as the header widget when nothing is running.
const PlaceholderTaskID = "none"

type TaskStatus string

const (
	TaskStatusTodo     TaskStatus = "TODO"
	TaskStatusOngoing  TaskStatus = "ONGOING"
	TaskStatusOnHold   TaskStatus = "ON_HOLD"
	TaskStatusDone     TaskStatus = "DONE"
	TaskStatusClosed   TaskStatus = "CLOSED"
	TaskStatusCanceled TaskStatus = "CANCELED"
)

var ErrInvalidStatus = errors.New("invalid task status")

// ParseTaskStatus accepts any casing and "-" or " " in place of "_"
func ParseTaskStatus(s string) (TaskStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	status := TaskStatus(norm)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusOngoing, TaskStatusOnHold,
		TaskStatusDone, TaskStatusClosed, TaskStatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether the task is finished. A terminal task's clock is
// stopped and cannot be restarted.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusClosed || s == TaskStatusCanceled
}

// AllowsTimer reports whether a timer may be started for a task in this status
func (s TaskStatus) AllowsTimer() bool {
	return s == TaskStatusOngoing
}

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Status         TaskStatus `json:"status"`
	TimeLogs       []TimeLog  `json:"timeLogs"`
	TotalTimeSpent int64      `json:"totalTimeSpent"` // seconds, closed intervals only
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IsPlaceholderTaskID reports whether id names no real task
func IsPlaceholderTaskID(id string) bool {
	return id == "" || id == PlaceholderTaskID
}
