package timer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/events"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/jonboulle/clockwork"
)

var t0 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	startCalls atomic.Int64
	pauseCalls atomic.Int64
	gate       chan struct{}

	mu      sync.Mutex
	startFn func(ctx context.Context) (*domain.Task, error)
	pauseFn func(ctx context.Context) (*domain.Task, error)
}

func (b *fakeBackend) StartTimer(ctx context.Context, taskID string) (*domain.Task, error) {
	b.startCalls.Add(1)
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	fn := b.startFn
	b.mu.Unlock()
	if fn == nil {
		return &domain.Task{ID: taskID}, nil
	}
	return fn(ctx)
}

func (b *fakeBackend) PauseTimer(ctx context.Context, taskID string) (*domain.Task, error) {
	b.pauseCalls.Add(1)
	b.mu.Lock()
	fn := b.pauseFn
	b.mu.Unlock()
	if fn == nil {
		return &domain.Task{ID: taskID}, nil
	}
	return fn(ctx)
}

type fakeNotifier struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (n *fakeNotifier) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warns = append(n.warns, msg)
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *fakeNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

type countingInvalidator struct{ n atomic.Int64 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func ongoing(id string, logs ...domain.TimeLog) domain.Task {
	return domain.Task{ID: id, Status: domain.TaskStatusOngoing, TimeLogs: logs}
}

func openLogAt(clock clockwork.Clock) func(ctx context.Context) (*domain.Task, error) {
	return func(ctx context.Context) (*domain.Task, error) {
		return &domain.Task{
			ID:       "t1",
			Status:   domain.TaskStatusOngoing,
			TimeLogs: []domain.TimeLog{{ID: "l1", Start: timecalc.FormatTimestamp(clock.Now())}},
		}, nil
	}
}

func TestController_StartPauseEndToEnd(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{}
	be.startFn = openLogAt(clock)
	be.pauseFn = func(ctx context.Context) (*domain.Task, error) {
		return &domain.Task{ID: "t1", Status: domain.TaskStatusOngoing, TotalTimeSpent: 5}, nil
	}

	c := New(Deps{Backend: be, Clock: clock}, ongoing("t1"))
	defer c.Close()

	if res := c.Start(ctx); !res.OK {
		t.Fatalf("Start failed: %+v", res)
	}
	snap := c.Snapshot()
	if !snap.IsRunning || snap.State != domain.TimerStateRunning || snap.ElapsedTime != 0 {
		t.Fatalf("after start snapshot = %+v", snap)
	}

	for i := int64(1); i <= 5; i++ {
		clock.Advance(time.Second)
		want := i
		waitFor(t, func() bool { return c.Snapshot().ElapsedTime == want })
	}

	if res := c.Pause(ctx); !res.OK {
		t.Fatalf("Pause failed: %+v", res)
	}

	snap = c.Snapshot()
	if snap.IsRunning || snap.State != domain.TimerStateStopped {
		t.Errorf("after pause snapshot = %+v", snap)
	}
	if snap.TotalTimeSpent != 5 || c.LiveTotal() != 5 {
		t.Errorf("total = %d (live %d), want 5", snap.TotalTimeSpent, c.LiveTotal())
	}
	if got := timecalc.FormatSeconds(snap.TotalTimeSpent); got != "00:00:05" {
		t.Errorf("displayed total = %q", got)
	}
}

func TestController_PauseTotalNeverDecreases(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{}
	be.startFn = openLogAt(clock)
	// a server that under-reports must not shrink the local total
	be.pauseFn = func(ctx context.Context) (*domain.Task, error) {
		return &domain.Task{ID: "t1", TotalTimeSpent: 1}, nil
	}

	closed := domain.TimeLog{Start: "2025-01-01T07:00:00Z", End: "2025-01-01T08:00:00Z"}
	c := New(Deps{Backend: be, Clock: clock}, ongoing("t1", closed))
	defer c.Close()

	before := c.Snapshot().TotalTimeSpent
	if before != 3600 {
		t.Fatalf("initial total = %d, want 3600", before)
	}

	c.Start(ctx)
	clock.Advance(7 * time.Second)
	c.Pause(ctx)

	if got := c.Snapshot().TotalTimeSpent; got < before+7 {
		t.Errorf("total after pause = %d, want >= %d", got, before+7)
	}
}

func TestController_StartRequiresOngoing(t *testing.T) {
	be := &fakeBackend{}
	n := &fakeNotifier{}
	c := New(Deps{Backend: be, Notifier: n, Clock: clockwork.NewFakeClock()},
		domain.Task{ID: "t1", Status: domain.TaskStatusTodo})
	defer c.Close()

	res := c.Start(context.Background())
	if res.OK || !errors.Is(res.Err, ErrNotOngoing) {
		t.Fatalf("Start = %+v, want ErrNotOngoing", res)
	}
	if got := be.startCalls.Load(); got != 0 {
		t.Errorf("backend called %d times, want 0", got)
	}
	if len(n.warns) != 1 || n.warns[0] != MsgNotOngoing {
		t.Errorf("warnings = %v", n.warns)
	}
}

func TestController_PlaceholderShortCircuits(t *testing.T) {
	be := &fakeBackend{}
	c := New(Deps{Backend: be, Clock: clockwork.NewFakeClock()},
		domain.Task{ID: domain.PlaceholderTaskID, Status: domain.TaskStatusOngoing})
	defer c.Close()

	if res := c.Start(context.Background()); !errors.Is(res.Err, ErrNoTask) {
		t.Errorf("Start = %+v, want ErrNoTask", res)
	}
	if res := c.Pause(context.Background()); !errors.Is(res.Err, ErrNoTask) {
		t.Errorf("Pause = %+v, want ErrNoTask", res)
	}
	if be.startCalls.Load()+be.pauseCalls.Load() != 0 {
		t.Error("placeholder controller reached the backend")
	}
}

func TestController_SecondStartWhileLoadingIsRejected(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{gate: make(chan struct{})}
	be.startFn = openLogAt(clock)

	c := New(Deps{Backend: be, Clock: clock}, ongoing("t1"))
	defer c.Close()

	done := make(chan domain.Result)
	go func() { done <- c.Start(context.Background()) }()

	waitFor(t, func() bool { return be.startCalls.Load() == 1 })
	if !c.Snapshot().IsLoading {
		t.Error("IsLoading false while request in flight")
	}

	second := c.Start(context.Background())
	if second.OK || !errors.Is(second.Err, ErrBusy) {
		t.Errorf("second Start = %+v, want ErrBusy", second)
	}
	if p := c.Pause(context.Background()); !errors.Is(p.Err, ErrBusy) {
		t.Errorf("Pause while loading = %+v, want ErrBusy", p)
	}

	close(be.gate)
	if first := <-done; !first.OK {
		t.Fatalf("first Start = %+v", first)
	}
	if got := be.startCalls.Load(); got != 1 {
		t.Errorf("backend start calls = %d, want 1", got)
	}
	if c.Snapshot().IsLoading {
		t.Error("IsLoading still true after request finished")
	}
}

func TestController_StartFailureLeavesStopped(t *testing.T) {
	be := &fakeBackend{}
	be.startFn = func(ctx context.Context) (*domain.Task, error) {
		return nil, errors.New("503")
	}
	n := &fakeNotifier{}
	c := New(Deps{Backend: be, Notifier: n, Clock: clockwork.NewFakeClock()}, ongoing("t1"))
	defer c.Close()

	res := c.Start(context.Background())
	if res.OK || res.Message != MsgStartFailed {
		t.Fatalf("Start = %+v", res)
	}
	snap := c.Snapshot()
	if snap.IsRunning || snap.IsLoading {
		t.Errorf("snapshot = %+v, want stopped and idle", snap)
	}
	if n.lastError() != MsgStartFailed {
		t.Errorf("notified %q", n.lastError())
	}
}

func TestController_PauseFailureKeepsTicking(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{}
	be.startFn = openLogAt(clock)
	be.pauseFn = func(ctx context.Context) (*domain.Task, error) {
		return nil, errors.New("network down")
	}
	n := &fakeNotifier{}

	c := New(Deps{Backend: be, Notifier: n, Clock: clock}, ongoing("t1"))
	defer c.Close()
	c.Start(ctx)

	res := c.Pause(ctx)
	if res.OK || res.Message != MsgPauseFailed {
		t.Fatalf("Pause = %+v", res)
	}
	if n.lastError() != MsgPauseFailed {
		t.Errorf("notified %q", n.lastError())
	}
	if !c.Snapshot().IsRunning {
		t.Fatal("timer stopped after failed pause")
	}

	clock.Advance(3 * time.Second)
	waitFor(t, func() bool { return c.Snapshot().ElapsedTime == 3 })
}

func TestController_TimeoutClearsLoading(t *testing.T) {
	be := &fakeBackend{}
	be.startFn = func(ctx context.Context) (*domain.Task, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := New(Deps{Backend: be, Clock: clockwork.NewFakeClock(), Timeout: 20 * time.Millisecond}, ongoing("t1"))
	defer c.Close()

	res := c.Start(context.Background())
	if res.OK || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("Start = %+v, want deadline exceeded", res)
	}
	if c.Snapshot().IsLoading {
		t.Error("IsLoading stuck after timeout")
	}
}

func TestController_TerminalStatusForcesStop(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{}
	be.startFn = openLogAt(clock)
	bus := events.NewTimerBus()
	sub, unsub := bus.Subscribe(4)
	defer unsub()

	c := New(Deps{Backend: be, Clock: clock, Bus: bus}, ongoing("t1"))
	defer c.Close()
	c.Start(ctx)
	<-sub

	clock.Advance(4 * time.Second)
	res := c.ApplyStatus(ctx, domain.TaskStatusDone)
	if !res.OK {
		t.Fatalf("ApplyStatus = %+v", res)
	}
	if got := be.pauseCalls.Load(); got != 1 {
		t.Errorf("pause calls = %d, want 1", got)
	}

	snap := c.Snapshot()
	if snap.IsRunning || snap.State != domain.TimerStateCompleted {
		t.Errorf("snapshot = %+v, want completed", snap)
	}
	if snap.TotalTimeSpent != 4 {
		t.Errorf("total = %d, want 4", snap.TotalTimeSpent)
	}

	ev := <-sub
	if ev.Action != events.TimerStopped || ev.TaskID != "t1" {
		t.Errorf("event = %+v", ev)
	}

	if res := c.Start(ctx); !errors.Is(res.Err, ErrCompleted) {
		t.Errorf("Start on completed task = %+v", res)
	}
	if be.startCalls.Load() != 1 {
		t.Error("completed task reached the backend")
	}
}

func TestController_TerminalStatusWhenStopped(t *testing.T) {
	be := &fakeBackend{}
	c := New(Deps{Backend: be, Clock: clockwork.NewFakeClock()}, ongoing("t1"))
	defer c.Close()

	if res := c.ApplyStatus(context.Background(), domain.TaskStatusCanceled); !res.OK {
		t.Fatalf("ApplyStatus = %+v", res)
	}
	if be.pauseCalls.Load() != 0 {
		t.Error("stopped timer paused on backend")
	}
	if c.Snapshot().State != domain.TimerStateCompleted {
		t.Errorf("state = %s", c.Snapshot().State)
	}
}

func TestController_StatusChangeWhileStartInFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{gate: make(chan struct{})}
	be.startFn = openLogAt(clock)

	c := New(Deps{Backend: be, Clock: clock}, ongoing("t1"))
	defer c.Close()

	done := make(chan domain.Result)
	go func() { done <- c.Start(ctx) }()
	waitFor(t, func() bool { return be.startCalls.Load() == 1 })

	res := c.ApplyStatus(ctx, domain.TaskStatusDone)
	if res.OK || !errors.Is(res.Err, ErrBusy) {
		t.Fatalf("ApplyStatus during start = %+v, want ErrBusy", res)
	}

	close(be.gate)
	if first := <-done; !first.OK {
		t.Fatalf("Start = %+v", first)
	}

	snap := c.Snapshot()
	if snap.State != domain.TimerStateRunning || !snap.IsRunning {
		t.Errorf("snapshot = %+v, want running", snap)
	}
	if got := c.Status(); got != domain.TaskStatusOngoing {
		t.Errorf("status = %s, want ONGOING", got)
	}

	// Once the start has landed, completing the task stops the clock
	if res := c.ApplyStatus(ctx, domain.TaskStatusDone); !res.OK {
		t.Fatalf("ApplyStatus after start = %+v", res)
	}
	snap = c.Snapshot()
	if snap.IsRunning || snap.State != domain.TimerStateCompleted {
		t.Errorf("snapshot = %+v, want completed and stopped", snap)
	}
}

func TestController_FailedForcedStopKeepsStatus(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{}
	be.startFn = openLogAt(clock)
	be.pauseFn = func(ctx context.Context) (*domain.Task, error) {
		return nil, errors.New("network down")
	}

	c := New(Deps{Backend: be, Notifier: &fakeNotifier{}, Clock: clock}, ongoing("t1"))
	defer c.Close()
	c.Start(ctx)

	if res := c.ApplyStatus(ctx, domain.TaskStatusDone); res.OK {
		t.Fatalf("ApplyStatus = %+v, want failure", res)
	}
	snap := c.Snapshot()
	if !snap.IsRunning || snap.State != domain.TimerStateRunning {
		t.Errorf("snapshot = %+v, want still running", snap)
	}
	if got := c.Status(); got != domain.TaskStatusOngoing {
		t.Errorf("status = %s, want ONGOING restored", got)
	}
}

func TestController_ResumesOpenIntervalOnMount(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	task := ongoing("t1",
		domain.TimeLog{Start: "2025-01-01T07:00:00Z", End: "2025-01-01T08:00:00Z"},
		domain.TimeLog{Start: "2025-01-01T08:59:30Z"},
	)

	c := New(Deps{Backend: &fakeBackend{}, Clock: clock}, task)
	defer c.Close()

	snap := c.Snapshot()
	if !snap.IsRunning || snap.ElapsedTime != 30 || snap.TotalTimeSpent != 3600 {
		t.Fatalf("snapshot = %+v", snap)
	}

	clock.Advance(time.Second)
	waitFor(t, func() bool { return c.Snapshot().ElapsedTime == 31 })
	if got := c.LiveTotal(); got != 3631 {
		t.Errorf("LiveTotal = %d, want 3631", got)
	}
}

func TestController_SyncStopsWhenIntervalClosedElsewhere(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	var ticks atomic.Int64
	c := New(Deps{
		Backend:  &fakeBackend{},
		Clock:    clock,
		OnChange: func(domain.TaskTimerState) { ticks.Add(1) },
	}, ongoing("t1", domain.TimeLog{Start: "2025-01-01T08:59:00Z"}))
	defer c.Close()

	if !c.Snapshot().IsRunning {
		t.Fatal("not running after mount")
	}

	c.Sync(domain.Task{
		ID:             "t1",
		Status:         domain.TaskStatusOngoing,
		TimeLogs:       []domain.TimeLog{{Start: "2025-01-01T08:59:00Z", End: "2025-01-01T09:00:00Z"}},
		TotalTimeSpent: 60,
	})

	snap := c.Snapshot()
	if snap.IsRunning || snap.TotalTimeSpent != 60 {
		t.Errorf("snapshot after sync = %+v", snap)
	}

	before := ticks.Load()
	clock.Advance(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != before {
		t.Error("ticker kept publishing after sync stopped it")
	}
}

func TestController_AnnouncesMutations(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	be := &fakeBackend{}
	be.startFn = openLogAt(clock)
	bus := events.NewTimerBus()
	sub, unsub := bus.Subscribe(4)
	defer unsub()
	inv := &countingInvalidator{}

	c := New(Deps{Backend: be, Clock: clock, Bus: bus, Query: inv, Source: "header"}, ongoing("t1"))
	defer c.Close()

	c.Start(context.Background())
	c.Pause(context.Background())

	if got := inv.n.Load(); got != 2 {
		t.Errorf("invalidations = %d, want 2", got)
	}
	for _, want := range []events.TimerAction{events.TimerStarted, events.TimerPaused} {
		ev := <-sub
		if ev.Action != want || ev.Source != "header" || ev.TaskID != "t1" {
			t.Errorf("event = %+v, want %s from header", ev, want)
		}
	}
}

func TestController_FirstOpenIntervalWins(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	task := ongoing("t1",
		domain.TimeLog{Start: "2025-01-01T08:00:00Z"},
		domain.TimeLog{Start: "2025-01-01T08:30:00Z"},
	)
	c := New(Deps{Backend: &fakeBackend{}, Clock: clock}, task)
	defer c.Close()

	if got := c.Snapshot().ElapsedTime; got != 3600 {
		t.Errorf("elapsed = %d, want 3600 (from first open interval)", got)
	}
}
