package tui

import (
	"fmt"
	"strings"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/andy/tasktimer/internal/timer"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TasksModel lists tasks, one row per task, each row with its own controller
type TasksModel struct {
	s      *session
	tasks  []domain.Task
	rows   map[string]*timer.Controller
	cursor int

	loading bool
	err     error
}

func NewTasksModel(s *session) *TasksModel {
	return &TasksModel{
		s:       s,
		rows:    make(map[string]*timer.Controller),
		loading: true,
	}
}

func (m *TasksModel) Init() tea.Cmd {
	return loadTasksCmd(m.s.app.Query, false)
}

// setTasks syncs existing rows, builds controllers for new tasks, and closes
// rows whose task disappeared
func (m *TasksModel) setTasks(tasks []domain.Task) {
	m.loading = false
	m.err = nil
	m.tasks = tasks

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		seen[t.ID] = true
		if ctrl, ok := m.rows[t.ID]; ok {
			ctrl.Sync(t)
			continue
		}
		m.rows[t.ID] = m.s.newController(t, "row-"+t.ID)
	}
	for id, ctrl := range m.rows {
		if !seen[id] {
			ctrl.Close()
			delete(m.rows, id)
		}
	}

	if m.cursor >= len(m.tasks) {
		m.cursor = len(m.tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *TasksModel) selected() (*timer.Controller, domain.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return nil, domain.Task{}, false
	}
	task := m.tasks[m.cursor]
	ctrl, ok := m.rows[task.ID]
	return ctrl, task, ok
}

func (m *TasksModel) Close() {
	for id, ctrl := range m.rows {
		ctrl.Close()
		delete(m.rows, id)
	}
}

func (m *TasksModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			return m, nil
		}
		m.setTasks(msg.tasks)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.tasks)-1 {
				m.cursor++
			}
		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, loadTasksCmd(m.s.app.Query, true)
		case key.Matches(msg, DefaultKeyMap.Select):
			if _, task, ok := m.selected(); ok {
				return m, func() tea.Msg { return OpenDetailMsg{Task: task} }
			}
		case key.Matches(msg, DefaultKeyMap.Start):
			if ctrl, _, ok := m.selected(); ok {
				return m, controllerCmd(ctrl.Start)
			}
		case key.Matches(msg, DefaultKeyMap.Pause):
			if ctrl, _, ok := m.selected(); ok {
				return m, controllerCmd(ctrl.Pause)
			}
		case key.Matches(msg, DefaultKeyMap.Done):
			if ctrl, _, ok := m.selected(); ok {
				return m, markDoneCmd(m.s, ctrl)
			}
		}
	}
	return m, nil
}

func (m *TasksModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tasks"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(errorColor).
			Render(fmt.Sprintf("Error: %s", m.err.Error())))
		b.WriteString("\n\nPress r to retry\n")
		return b.String()
	}
	if m.loading && m.tasks == nil {
		b.WriteString(m.s.spin.View() + " Loading tasks...\n")
		return b.String()
	}
	if len(m.tasks) == 0 {
		b.WriteString("No tasks yet. Create one with: tasktimer tasks create \"title\"\n")
		return b.String()
	}

	b.WriteString(subtitleStyle.Render(fmt.Sprintf("  %-2s %-32s %-10s %10s", "", "Title", "Status", "Total")))
	b.WriteString("\n")
	for i, task := range m.tasks {
		ctrl := m.rows[task.ID]
		if ctrl == nil {
			continue
		}
		state := ctrl.Snapshot()

		line := fmt.Sprintf("%-2s %-32s %-10s %10s",
			stateIcon(m.s, state),
			truncateStr(task.Title, 32),
			task.Status,
			timecalc.FormatSeconds(ctrl.LiveTotal()),
		)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s=start  p=pause  d=done  r=refresh  enter=details"))
	return b.String()
}

// stateIcon renders the per-row indicator: spinner while a request is in
// flight, then running, completed, or stopped
func stateIcon(s *session, state domain.TaskTimerState) string {
	switch {
	case state.IsLoading:
		return s.spin.View()
	case state.IsRunning:
		return timerRunningStyle.Render("●")
	case state.State == domain.TimerStateCompleted:
		return timerCompletedStyle.Render("✓")
	default:
		return timerPausedStyle.Render("○")
	}
}
