package ticker

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is how often a running timer is re-rendered
const DefaultInterval = time.Second

// Ticker re-reads the wall-clock delta from an interval start on every tick
// and hands it to a publish callback. Because each tick derives the value from
// the clock rather than incrementing a counter, missed or delayed ticks (a
// suspended laptop, a slow consumer) never accumulate skew.
type Ticker struct {
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	since   time.Time
	running bool
}

// New creates a stopped ticker
func New(clock clockwork.Clock, interval time.Duration) *Ticker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{clock: clock, interval: interval}
}

// Start begins publishing whole seconds elapsed since the given instant. A
// ticker that is already running is stopped first.
//
// publish runs on the ticker's goroutine. It must not call Stop.
func (t *Ticker) Start(since time.Time, publish func(elapsed int64)) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	tk := t.clock.NewTicker(t.interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	t.since = since
	t.running = true

	go func() {
		defer close(done)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.Chan():
				select {
				case <-stop:
					return
				default:
				}
				publish(Elapsed(t.clock, since))
			}
		}
	}()
}

// Stop halts the ticker and waits for its goroutine to exit, so no publish
// call happens after Stop returns. Stopping a stopped ticker is a no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the ticker is active
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Since returns the instant the running ticker counts from
func (t *Ticker) Since() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.since, t.running
}

// Elapsed is the whole seconds between since and the clock's now, never negative
func Elapsed(clock clockwork.Clock, since time.Time) int64 {
	d := clock.Since(since)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
