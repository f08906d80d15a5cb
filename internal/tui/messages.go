package tui

import (
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/events"
)

// SwitchScreenMsg requests a screen change
type SwitchScreenMsg struct {
	Screen Screen
}

// OpenDetailMsg opens the detail panel for a task
type OpenDetailMsg struct {
	Task domain.Task
}

// ErrorMsg carries error information
type ErrorMsg struct {
	Err error
}

// tasksLoadedMsg carries the shared task list after a (re)fetch
type tasksLoadedMsg struct {
	tasks []domain.Task
	err   error
}

// actionDoneMsg reports the result of a start, pause, or status change
type actionDoneMsg struct {
	res domain.Result
}

// timerChangedMsg is sent whenever a controller's state changes, ticks included
type timerChangedMsg struct {
	taskID string
}

// timerEventMsg relays a bus event published by any consumer
type timerEventMsg struct {
	event events.TimerUpdated
}

// invalidatedMsg is sent when the shared task query is marked stale
type invalidatedMsg struct{}

type toastMsg struct {
	toast toast
}

// clockTickMsg drives once-a-second housekeeping
type clockTickMsg time.Time
