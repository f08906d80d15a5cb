package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/events"
	"github.com/andy/tasktimer/internal/ticker"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrBusy           = errors.New("a timer request is already in flight")
	ErrNoTask         = errors.New("no task selected")
	ErrNotOngoing     = errors.New("task is not ongoing")
	ErrCompleted      = errors.New("task is completed")
	ErrAlreadyRunning = errors.New("timer is already running")
	ErrNotRunning     = errors.New("timer is not running")
)

const (
	MsgStarted       = "Timer started"
	MsgPaused        = "Timer paused"
	MsgStopped       = "Timer stopped because the task is finished"
	MsgStartFailed   = "Failed to start the timer. Please try again."
	MsgPauseFailed   = "Failed to pause the timer. Please try again."
	MsgNotOngoing    = "Move the task to ONGOING before starting the timer."
	MsgNoTask        = "Select a task first."
	MsgCompleted     = "This task is finished; its timer can no longer change."
	MsgBusy          = "Please wait for the current timer request to finish."
	MsgAlreadyOn     = "The timer is already running."
	MsgNotRunning    = "The timer is not running."
	DefaultTimeout   = 30 * time.Second
	defaultSourceTag = "controller"
)

// Backend is the slice of the task API a controller needs
type Backend interface {
	StartTimer(ctx context.Context, taskID string) (*domain.Task, error)
	PauseTimer(ctx context.Context, taskID string) (*domain.Task, error)
}

// Notifier surfaces user-visible messages (toasts, status lines, stderr)
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

// Invalidator marks shared task data stale after a mutation
type Invalidator interface {
	Invalidate()
}

// Deps is the state-container handle every controller is constructed with.
// Nothing here is global; two pages can run independent sets of controllers.
type Deps struct {
	Backend  Backend
	Notifier Notifier // optional
	Clock    clockwork.Clock
	Bus      *events.TimerBus // optional
	Query    Invalidator      // optional
	Logger   *log.Logger      // optional
	// Timeout bounds each backend call so a hung request cannot leave the
	// controller loading forever. Zero selects DefaultTimeout.
	Timeout time.Duration
	// Source tags published events; defaults to a random id per controller.
	Source string
	// OnChange is called after every state change, including ticks. It runs
	// without the controller lock held.
	OnChange func(domain.TaskTimerState)
}

// Controller owns the timer of one task for one consumer. Each consumer that
// renders a task builds its own controller; controllers converge through the
// shared query and the event bus rather than shared state.
type Controller struct {
	deps   Deps
	clock  clockwork.Clock
	ticker *ticker.Ticker
	logger *log.Logger

	mu        sync.Mutex
	taskID    string
	status    domain.TaskStatus
	logs      []domain.TimeLog
	total     int64
	elapsed   int64
	openStart time.Time
	running   bool
	loading   bool
	completed bool
	closed    bool
}

// New builds a controller for task and, if the task has an open interval,
// starts ticking from that interval's start.
func New(deps Deps, task domain.Task) *Controller {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTimeout
	}
	if deps.Source == "" {
		deps.Source = defaultSourceTag + "-" + uuid.NewString()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(nopWriter{})
	}

	c := &Controller{
		deps:   deps,
		clock:  deps.Clock,
		ticker: ticker.New(deps.Clock, ticker.DefaultInterval),
		logger: logger.With("task", task.ID),
	}
	c.Sync(task)
	return c
}

// TaskID returns the task this controller tracks
func (c *Controller) TaskID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskID
}

// Source is the tag this controller puts on published events
func (c *Controller) Source() string {
	return c.deps.Source
}

// Snapshot returns the current state
func (c *Controller) Snapshot() domain.TaskTimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.TaskTimerState {
	state := domain.TimerStateStopped
	switch {
	case c.completed:
		state = domain.TimerStateCompleted
	case c.running:
		state = domain.TimerStateRunning
	}
	return domain.TaskTimerState{
		TaskID:         c.taskID,
		State:          state,
		IsRunning:      c.running,
		ElapsedTime:    c.elapsed,
		TotalTimeSpent: c.total,
		IsLoading:      c.loading,
	}
}

// LiveTotal is the lifetime total including the running session
func (c *Controller) LiveTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return c.total + c.elapsed
	}
	return c.total
}

// TimeLogs returns the last authoritative logs this controller saw
func (c *Controller) TimeLogs() []domain.TimeLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.TimeLog(nil), c.logs...)
}

// Status returns the task status this controller last saw
func (c *Controller) Status() domain.TaskStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Sync re-initialises the controller from an authoritative copy of the task.
// It is ignored while a request is in flight so a slow refetch cannot undo
// the result of the request.
func (c *Controller) Sync(task domain.Task) {
	c.mu.Lock()
	if c.closed || c.loading {
		c.mu.Unlock()
		return
	}
	if c.taskID != "" && task.ID != c.taskID {
		c.logger.Debug("controller retargeted", "from", c.taskID, "to", task.ID)
	}
	c.taskID = task.ID
	c.status = task.Status
	c.logs = append([]domain.TimeLog(nil), task.TimeLogs...)
	c.total = c.totalFromTask(task)
	c.completed = task.Status.IsTerminal()

	open, hasOpen := timecalc.FindOpenInterval(task.TimeLogs)
	if n := timecalc.CountOpenIntervals(task.TimeLogs); n > 1 {
		c.logger.Warn("task has more than one open interval; using the first", "open", n)
	}

	var start time.Time
	run := false
	if hasOpen && !c.completed {
		if s, ok := timecalc.ParseTimestamp(open.Start); ok {
			start, run = s, true
		} else {
			c.logger.Warn("open interval has an unparsable start", "start", open.Start)
		}
	}

	prevStart, wasTicking := c.ticker.Since()
	c.running = run
	if run {
		c.openStart = start
		c.elapsed = ticker.Elapsed(c.clock, start)
	} else {
		c.openStart = time.Time{}
		c.elapsed = 0
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	switch {
	case run && (!wasTicking || !prevStart.Equal(start)):
		c.ticker.Start(start, c.publishElapsed)
	case !run && wasTicking:
		c.ticker.Stop()
	}
	c.changed(snap)
}

func (c *Controller) totalFromTask(task domain.Task) int64 {
	if task.TotalTimeSpent > 0 {
		return task.TotalTimeSpent
	}
	return timecalc.WholeSeconds(timecalc.ClosedDuration(task.TimeLogs))
}

// Start opens a new interval on the backend. The task must be ONGOING.
func (c *Controller) Start(ctx context.Context) domain.Result {
	c.mu.Lock()
	if res, ok := c.guardLocked(); !ok {
		c.mu.Unlock()
		return c.reject(res)
	}
	if !c.status.AllowsTimer() {
		c.mu.Unlock()
		return c.reject(domain.Failed(MsgNotOngoing, fmt.Errorf("%w: status %s", ErrNotOngoing, c.status)))
	}
	if c.running {
		c.mu.Unlock()
		return c.reject(domain.Failed(MsgAlreadyOn, ErrAlreadyRunning))
	}
	c.loading = true
	taskID := c.taskID
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)

	reqCtx, cancel := context.WithTimeout(ctx, c.deps.Timeout)
	task, err := c.deps.Backend.StartTimer(reqCtx, taskID)
	cancel()
	if err != nil {
		c.logger.Error("start timer failed", "err", err)
		c.finishLoading()
		c.notifyError(MsgStartFailed)
		return domain.Failed(MsgStartFailed, err)
	}

	now := c.clock.Now()
	start := now
	c.mu.Lock()
	if task != nil {
		c.logs = append([]domain.TimeLog(nil), task.TimeLogs...)
		if task.Status != "" {
			c.status = task.Status
		}
		if task.TotalTimeSpent > c.total {
			c.total = task.TotalTimeSpent
		}
		if open, ok := timecalc.FindOpenInterval(task.TimeLogs); ok {
			if s, ok := timecalc.ParseTimestamp(open.Start); ok {
				start = s
			}
		}
	}
	c.running = true
	c.openStart = start
	c.elapsed = 0
	c.mu.Unlock()

	c.ticker.Start(start, c.publishElapsed)
	c.finishLoading()

	c.logger.Info("timer started")
	c.announce(taskID, events.TimerStarted, now)
	return domain.Succeeded(MsgStarted)
}

// Pause closes the open interval on the backend. If the request fails the
// local clock keeps running until the user retries.
func (c *Controller) Pause(ctx context.Context) domain.Result {
	return c.pause(ctx, events.TimerPaused, MsgPaused)
}

func (c *Controller) pause(ctx context.Context, action events.TimerAction, okMsg string) domain.Result {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return c.reject(domain.Failed(MsgBusy, ErrBusy))
	}
	if c.closed || domain.IsPlaceholderTaskID(c.taskID) {
		c.mu.Unlock()
		return c.reject(domain.Failed(MsgNoTask, ErrNoTask))
	}
	if !c.running {
		c.mu.Unlock()
		return c.reject(domain.Failed(MsgNotRunning, ErrNotRunning))
	}
	c.loading = true
	taskID := c.taskID
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)

	reqCtx, cancel := context.WithTimeout(ctx, c.deps.Timeout)
	task, err := c.deps.Backend.PauseTimer(reqCtx, taskID)
	cancel()
	if err != nil {
		c.logger.Error("pause timer failed", "err", err)
		c.finishLoading()
		c.notifyError(MsgPauseFailed)
		return domain.Failed(MsgPauseFailed, err)
	}

	now := c.clock.Now()
	c.ticker.Stop()

	c.mu.Lock()
	session := ticker.Elapsed(c.clock, c.openStart)
	folded := c.total + session
	if task != nil {
		c.logs = append([]domain.TimeLog(nil), task.TimeLogs...)
		if task.Status != "" {
			c.status = task.Status
		}
		// The server total is authoritative but may be truncated differently
		// from the local session; never let the total go backwards.
		if task.TotalTimeSpent > folded {
			folded = task.TotalTimeSpent
		}
	}
	c.total = folded
	c.running = false
	c.openStart = time.Time{}
	c.elapsed = 0
	c.mu.Unlock()
	c.finishLoading()

	c.logger.Info("timer paused", "session", session, "total", folded)
	c.announce(taskID, action, now)
	return domain.Succeeded(okMsg)
}

// ApplyStatus records a status change made elsewhere (a board drag, a "mark
// done" click). Reaching a terminal status stops a running clock and freezes
// the controller in the completed state.
func (c *Controller) ApplyStatus(ctx context.Context, status domain.TaskStatus) domain.Result {
	c.mu.Lock()
	// An in-flight start would otherwise land after the task completed
	if c.loading {
		c.mu.Unlock()
		return c.reject(domain.Failed(MsgBusy, ErrBusy))
	}
	prev := c.status
	c.status = status
	running := c.running
	terminal := status.IsTerminal()
	if !terminal {
		c.completed = false
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !terminal {
		c.changed(snap)
		return domain.Succeeded("")
	}

	res := domain.Succeeded("")
	if running {
		res = c.pause(ctx, events.TimerStopped, MsgStopped)
	}

	c.mu.Lock()
	// A failed forced pause leaves the clock running and the old status in
	// place so the user can retry
	if res.OK {
		c.completed = true
	} else {
		c.status = prev
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)
	return res
}

// Close stops ticking. The controller rejects further operations.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.ticker.Stop()
}

// guardLocked applies the checks shared by every mutating call
func (c *Controller) guardLocked() (domain.Result, bool) {
	switch {
	case c.loading:
		return domain.Failed(MsgBusy, ErrBusy), false
	case c.closed || domain.IsPlaceholderTaskID(c.taskID):
		return domain.Failed(MsgNoTask, ErrNoTask), false
	case c.completed:
		return domain.Failed(MsgCompleted, ErrCompleted), false
	}
	return domain.Result{}, true
}

func (c *Controller) reject(res domain.Result) domain.Result {
	if errors.Is(res.Err, ErrBusy) {
		c.logger.Debug("request rejected while loading")
		return res
	}
	if c.deps.Notifier != nil {
		c.deps.Notifier.Warn(res.Message)
	}
	return res
}

func (c *Controller) finishLoading() {
	c.mu.Lock()
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)
}

func (c *Controller) notifyError(msg string) {
	if c.deps.Notifier != nil {
		c.deps.Notifier.Error(msg)
	}
}

func (c *Controller) announce(taskID string, action events.TimerAction, at time.Time) {
	if c.deps.Query != nil {
		c.deps.Query.Invalidate()
	}
	if c.deps.Bus != nil {
		c.deps.Bus.Publish(events.TimerUpdated{
			TaskID: taskID,
			Action: action,
			Source: c.deps.Source,
			At:     at,
		})
	}
}

// publishElapsed runs on the ticker goroutine
func (c *Controller) publishElapsed(elapsed int64) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.elapsed = elapsed
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)
}

func (c *Controller) changed(snap domain.TaskTimerState) {
	if c.deps.OnChange != nil {
		c.deps.OnChange(snap)
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
