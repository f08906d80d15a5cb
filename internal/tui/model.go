package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/andy/tasktimer/internal/app"
	"github.com/andy/tasktimer/internal/events"
	"github.com/andy/tasktimer/internal/taskquery"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen represents the current active screen
type Screen int

const (
	ScreenTasks Screen = iota
	ScreenDetail
)

const defaultPollInterval = 30 * time.Second

// String returns the screen name
func (s Screen) String() string {
	switch s {
	case ScreenTasks:
		return "Tasks"
	case ScreenDetail:
		return "Task"
	default:
		return "Unknown"
	}
}

// Model is the root Bubble Tea model
type Model struct {
	s             *session
	currentScreen Screen
	width         int
	height        int

	header *HeaderModel
	tasks  *TasksModel
	detail *DetailModel // nil unless open

	// Cross-consumer refresh
	timerEvents   <-chan events.TimerUpdated
	invalidations <-chan taskquery.Invalidated
	unsubscribe   []func()

	toast    *toast
	err      error
	lastPoll time.Time
}

// New creates a new root model
func New(a *app.Client) Model {
	s := newSession(a)
	timerEvents, unsubBus := a.Bus.Subscribe(events.DefaultBuffer)
	invalidations, unsubQuery := a.Query.Subscribe()

	return Model{
		s:             s,
		currentScreen: ScreenTasks,
		header:        NewHeaderModel(s),
		tasks:         NewTasksModel(s),
		timerEvents:   timerEvents,
		invalidations: invalidations,
		unsubscribe:   []func(){unsubBus, unsubQuery},
		lastPoll:      a.Clock.Now(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tasks.Init(),
		m.s.spin.Tick,
		tickClock(),
		waitForChange(m.s.changes),
		waitForTimerEvent(m.timerEvents),
		waitForInvalidation(m.invalidations),
		waitForToast(m.s.notifier.ch),
	)
}

func tickClock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

// pollDue reports whether a background refetch is due. A non-positive
// interval falls back to defaultPollInterval.
func pollDue(last, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return now.Sub(last) >= interval
}

// shutdown stops every controller and drops the subscriptions
func (m *Model) shutdown() {
	if m.detail != nil {
		m.detail.Close()
		m.detail = nil
	}
	m.tasks.Close()
	m.header.Close()
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}

// Update implements tea.Model - routes keys to screens
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		m.err = nil
		if key.Matches(msg, DefaultKeyMap.Quit) {
			// Running timers live on the server; quitting leaves them running
			m.shutdown()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.s.spin, cmd = m.s.spin.Update(msg)
		return m, cmd

	case clockTickMsg:
		now := time.Time(msg)
		if m.toast != nil && now.Sub(m.toast.at) > toastTTL {
			m.toast = nil
		}
		// Picks up timers started or paused from other terminals
		if pollDue(m.lastPoll, now, m.s.app.Config.API.PollInterval) {
			m.lastPoll = now
			return m, tea.Batch(tickClock(), loadTasksCmd(m.s.app.Query, true))
		}
		return m, tickClock()

	case timerChangedMsg:
		// Nothing to do but re-render
		return m, waitForChange(m.s.changes)

	case timerEventMsg:
		m.s.app.Logger.Debug("timer event", "task", msg.event.TaskID, "action", msg.event.Action, "source", msg.event.Source)
		return m, tea.Batch(loadTasksCmd(m.s.app.Query, false), waitForTimerEvent(m.timerEvents))

	case invalidatedMsg:
		return m, tea.Batch(loadTasksCmd(m.s.app.Query, false), waitForInvalidation(m.invalidations))

	case toastMsg:
		t := msg.toast
		m.toast = &t
		return m, waitForToast(m.s.notifier.ch)

	case tasksLoadedMsg:
		// Every consumer re-syncs, whatever screen is showing
		if msg.err == nil {
			m.header.sync(msg.tasks)
		} else {
			m.s.app.Logger.Warn("task refresh failed", "err", msg.err)
		}
		if m.detail != nil {
			m.detail.Update(msg)
		}
		m.tasks.Update(msg)
		return m, nil

	case actionDoneMsg:
		// Failures were already surfaced through the notifier
		if msg.res.OK && msg.res.Message != "" {
			m.s.notifier.Info(msg.res.Message)
		}
		return m, nil

	case OpenDetailMsg:
		if m.detail != nil {
			m.detail.Close()
		}
		m.detail = NewDetailModel(m.s, msg.Task)
		m.currentScreen = ScreenDetail
		return m, m.detail.Init()

	case SwitchScreenMsg:
		if msg.Screen != ScreenDetail && m.detail != nil {
			m.detail.Close()
			m.detail = nil
		}
		m.currentScreen = msg.Screen
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	// Route message to current screen
	var cmd tea.Cmd
	switch m.currentScreen {
	case ScreenTasks:
		_, cmd = m.tasks.Update(msg)
	case ScreenDetail:
		if m.detail != nil {
			_, cmd = m.detail.Update(msg)
		}
	}
	return m, cmd
}

// View implements tea.Model - renders header + current screen + footer
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	// Header
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render(fmt.Sprintf("tasktimer - %s", m.currentScreen.String())),
		"   ",
		m.header.View(),
	)

	footer := footerStyle.Render("[S]tart  [P]ause  [D]one  [R]efresh  [Q]uit")

	var content string
	switch m.currentScreen {
	case ScreenTasks:
		content = m.tasks.View()
	case ScreenDetail:
		if m.detail != nil {
			content = m.detail.View()
		} else {
			content = "Loading..."
		}
	}

	// Toast/error display
	notice := ""
	if m.toast != nil {
		style := toastInfoStyle
		switch m.toast.level {
		case toastWarn:
			style = toastWarnStyle
		case toastError:
			style = toastErrorStyle
		}
		notice = "\n" + style.Render(m.toast.text)
	} else if m.err != nil {
		notice = "\n" + toastErrorStyle.Render(fmt.Sprintf("Error: %s", m.err.Error()))
	}

	// Divider line between header and content
	innerWidth := m.width - 6 // account for border (2) + padding (4)
	if innerWidth < 20 {
		innerWidth = 20
	}
	dividerWidth := innerWidth - 12
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := lipgloss.NewStyle().Foreground(borderColor).Render(
		strings.Repeat("─", dividerWidth),
	)

	body := fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s\n%s", header, divider, content, notice, divider, footer)

	// Wrap in border, sized to terminal
	frame := appBorderStyle.
		Width(innerWidth).
		Height(m.height - 4) // leave room for border top/bottom
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, frame.Render(body))
}

// Run starts the TUI
func Run(a *app.Client) error {
	p := tea.NewProgram(New(a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
