package tui

import (
	"context"
	"errors"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/events"
	"github.com/andy/tasktimer/internal/taskquery"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/andy/tasktimer/internal/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// truncateStr truncates a string to the specified length with ellipsis
func truncateStr(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// findTask returns the task with id from tasks
func findTask(tasks []domain.Task, id string) (domain.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

// runningTask returns the first task with an open interval that can still run
func runningTask(tasks []domain.Task) (domain.Task, bool) {
	for _, t := range tasks {
		if t.Status.IsTerminal() {
			continue
		}
		if _, open := timecalc.FindOpenInterval(t.TimeLogs); open {
			return t, true
		}
	}
	return domain.Task{}, false
}

// loadTasksCmd reads the shared task query; force bypasses a fresh cache
func loadTasksCmd(q *taskquery.Query, force bool) tea.Cmd {
	return func() tea.Msg {
		var (
			tasks []domain.Task
			err   error
		)
		if force {
			tasks, err = q.Refetch(context.Background())
		} else {
			tasks, err = q.Tasks(context.Background())
		}
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

// controllerCmd runs a blocking controller call off the update loop
func controllerCmd(fn func(context.Context) domain.Result) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{res: fn(context.Background())}
	}
}

// statusUpdater is the slice of the task API markDone needs
type statusUpdater interface {
	UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) (*domain.Task, error)
}

// markDoneCmd stops the timer through the controller, then records DONE
func markDoneCmd(s *session, ctrl *timer.Controller) tea.Cmd {
	return func() tea.Msg {
		res := markDone(context.Background(), ctrl, s.app.API, s.app.Query, s.notifier, s.app.Logger)
		return actionDoneMsg{res: res}
	}
}

// markDone stops the clock, then records DONE on the server. If the server
// refuses, the controller goes back to the status it had.
func markDone(ctx context.Context, ctrl *timer.Controller, api statusUpdater, q timer.Invalidator, n timer.Notifier, logger *log.Logger) domain.Result {
	prev := ctrl.Status()
	res := ctrl.ApplyStatus(ctx, domain.TaskStatusDone)
	if !res.OK {
		// Busy is not notified by the controller itself
		if errors.Is(res.Err, timer.ErrBusy) {
			n.Warn(res.Message)
		}
		return res
	}
	if _, err := api.UpdateStatus(ctx, ctrl.TaskID(), domain.TaskStatusDone); err != nil {
		logger.Error("update status failed", "task", ctrl.TaskID(), "err", err)
		ctrl.ApplyStatus(ctx, prev)
		q.Invalidate()
		n.Error(msgDoneFailed)
		return domain.Failed(msgDoneFailed, err)
	}
	q.Invalidate()
	return domain.Succeeded("Task marked DONE")
}

const msgDoneFailed = "Failed to mark the task done. Please try again."

func waitForChange(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return nil
		}
		return timerChangedMsg{taskID: id}
	}
}

func waitForTimerEvent(ch <-chan events.TimerUpdated) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return timerEventMsg{event: ev}
	}
}

func waitForInvalidation(ch <-chan taskquery.Invalidated) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return invalidatedMsg{}
	}
}

func waitForToast(ch <-chan toast) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg{toast: t}
	}
}
