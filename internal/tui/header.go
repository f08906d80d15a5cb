package tui

import (
	"fmt"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/andy/tasktimer/internal/timer"
)

// HeaderModel is the always-visible widget showing the running task. It owns
// a controller of its own, pointed at the placeholder task when nothing runs.
type HeaderModel struct {
	s     *session
	ctrl  *timer.Controller
	title string
}

func NewHeaderModel(s *session) *HeaderModel {
	return &HeaderModel{
		s:    s,
		ctrl: s.newController(domain.Task{ID: domain.PlaceholderTaskID}, "header"),
	}
}

// sync follows whichever task is running now
func (m *HeaderModel) sync(tasks []domain.Task) {
	task, ok := runningTask(tasks)
	if !ok {
		m.title = ""
		m.ctrl.Sync(domain.Task{ID: domain.PlaceholderTaskID})
		return
	}
	m.title = task.Title
	m.ctrl.Sync(task)
}

func (m *HeaderModel) Close() {
	m.ctrl.Close()
}

func (m *HeaderModel) View() string {
	state := m.ctrl.Snapshot()
	if domain.IsPlaceholderTaskID(state.TaskID) || !state.IsRunning {
		return subtitleStyle.Render("No timer running")
	}
	return fmt.Sprintf("%s %s  %s",
		timerRunningStyle.Render("●"),
		truncateStr(m.title, 40),
		timerValueStyle.Render(timecalc.FormatSeconds(m.ctrl.LiveTotal())),
	)
}
