package tui

import (
	"time"

	"github.com/andy/tasktimer/internal/app"
	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/timer"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/jonboulle/clockwork"
)

const toastTTL = 4 * time.Second

type toastLevel int

const (
	toastInfo toastLevel = iota
	toastWarn
	toastError
)

type toast struct {
	level toastLevel
	text  string
	at    time.Time
}

// toastNotifier turns controller notifications into toasts. Controllers call
// it from command goroutines, so it only ever hands off through a channel.
type toastNotifier struct {
	clock clockwork.Clock
	ch    chan toast
}

func newToastNotifier(clock clockwork.Clock) *toastNotifier {
	return &toastNotifier{clock: clock, ch: make(chan toast, 8)}
}

func (n *toastNotifier) Warn(msg string)  { n.push(toastWarn, msg) }
func (n *toastNotifier) Error(msg string) { n.push(toastError, msg) }
func (n *toastNotifier) Info(msg string)  { n.push(toastInfo, msg) }

func (n *toastNotifier) push(level toastLevel, msg string) {
	if msg == "" {
		return
	}
	select {
	case n.ch <- toast{level: level, text: msg, at: n.clock.Now()}:
	default:
	}
}

// session is what every screen of one TUI run shares
type session struct {
	app      *app.Client
	notifier *toastNotifier
	changes  chan string
	spin     spinner.Model
}

func newSession(a *app.Client) *session {
	return &session{
		app:      a,
		notifier: newToastNotifier(a.Clock),
		changes:  make(chan string, 64),
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
	}
}

// newController builds a controller whose changes re-render the UI
func (s *session) newController(task domain.Task, source string) *timer.Controller {
	return s.app.NewController(task, source, s.notifier, func(st domain.TaskTimerState) {
		select {
		case s.changes <- st.TaskID:
		default:
			// a render is already queued
		}
	})
}
