package tui

import (
	"fmt"
	"strings"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/andy/tasktimer/internal/timer"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// DetailModel is the panel for one task. It runs its own controller, apart
// from the task's row, and catches up with the row through the shared query.
type DetailModel struct {
	s    *session
	ctrl *timer.Controller
	task domain.Task
}

func NewDetailModel(s *session, task domain.Task) *DetailModel {
	return &DetailModel{
		s:    s,
		ctrl: s.newController(task, "detail-"+task.ID),
		task: task,
	}
}

func (m *DetailModel) Init() tea.Cmd {
	return nil
}

// sync refreshes from the latest task list; a vanished task leaves the panel
// showing what it last knew
func (m *DetailModel) sync(tasks []domain.Task) {
	if task, ok := findTask(tasks, m.task.ID); ok {
		m.task = task
		m.ctrl.Sync(task)
	}
}

func (m *DetailModel) Close() {
	m.ctrl.Close()
}

func (m *DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		if msg.err == nil {
			m.sync(msg.tasks)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Back):
			return m, func() tea.Msg { return SwitchScreenMsg{Screen: ScreenTasks} }
		case key.Matches(msg, DefaultKeyMap.Start):
			return m, controllerCmd(m.ctrl.Start)
		case key.Matches(msg, DefaultKeyMap.Pause):
			return m, controllerCmd(m.ctrl.Pause)
		case key.Matches(msg, DefaultKeyMap.Done):
			return m, markDoneCmd(m.s, m.ctrl)
		case key.Matches(msg, DefaultKeyMap.Refresh):
			return m, loadTasksCmd(m.s.app.Query, true)
		}
	}
	return m, nil
}

func (m *DetailModel) View() string {
	var b strings.Builder
	state := m.ctrl.Snapshot()

	b.WriteString(titleStyle.Render(m.task.Title))
	b.WriteString("\n\n")

	var stateStr string
	switch {
	case state.IsLoading:
		stateStr = m.s.spin.View() + " working..."
	case state.IsRunning:
		stateStr = timerRunningStyle.Render("RUNNING")
	case state.State == domain.TimerStateCompleted:
		stateStr = timerCompletedStyle.Render("COMPLETED")
	default:
		stateStr = timerPausedStyle.Render("STOPPED")
	}

	fmt.Fprintf(&b, "Status:  %s\n", m.task.Status)
	fmt.Fprintf(&b, "Timer:   %s\n", stateStr)
	if state.IsRunning {
		fmt.Fprintf(&b, "Session: %s\n", timerValueStyle.Render(timecalc.FormatSeconds(state.ElapsedTime)))
	}
	fmt.Fprintf(&b, "Total:   %s\n", timerValueStyle.Render(timecalc.FormatSeconds(m.ctrl.LiveTotal())))

	logs := m.ctrl.TimeLogs()
	b.WriteString("\n")
	if len(logs) == 0 {
		b.WriteString(subtitleStyle.Render("No time logs"))
		b.WriteString("\n")
	} else {
		var rows strings.Builder
		fmt.Fprintf(&rows, "%-25s %-25s %s\n", "Start", "End", "Duration")
		now := m.s.app.Clock.Now()
		for _, l := range logs {
			end := l.End
			duration := timecalc.FormatDuration(timecalc.LogDuration(l))
			if timecalc.IsOpen(l) {
				end = "(running)"
				duration = timecalc.FormatDuration(timecalc.OpenElapsed(l, now))
			}
			fmt.Fprintf(&rows, "%-25s %-25s %s\n", l.Start, end, duration)
		}
		b.WriteString(boxStyle.Render(strings.TrimRight(rows.String(), "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s=start  p=pause  d=done  r=refresh  esc=back"))
	return b.String()
}
