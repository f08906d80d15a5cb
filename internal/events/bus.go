package events

import (
	"sync"
	"time"
)

// DefaultBuffer is the per-subscriber channel capacity used when Subscribe is
// given a non-positive size.
const DefaultBuffer = 16

// Bus is an in-process publish/subscribe channel with a typed payload.
// Delivery is best effort: Publish never blocks, and a subscriber whose buffer
// is full misses the event. Consumers are expected to refetch from the source
// of truth on any event, so a dropped duplicate is harmless.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan T
	nextID uint64
	closed bool
}

// NewBus creates an empty bus
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[uint64]chan T)}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel; calling it more than once is safe.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer and returns
// how many received it.
func (b *Bus[T]) Publish(ev T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Len returns the number of active subscribers
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Publishing to a closed bus is a no-op.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

type TimerAction string

const (
	TimerStarted TimerAction = "started"
	TimerPaused  TimerAction = "paused"
	// TimerStopped is a pause forced by the task reaching a terminal status
	TimerStopped TimerAction = "stopped"
)

// TimerUpdated announces that a controller changed a task's timer on the
// backend. Source identifies the publishing controller so it can ignore its
// own events.
type TimerUpdated struct {
	TaskID string
	Action TimerAction
	Source string
	At     time.Time
}

// TimerBus is the page/session-scoped channel all timer consumers share
type TimerBus = Bus[TimerUpdated]

// NewTimerBus creates a bus for timer events
func NewTimerBus() *TimerBus {
	return NewBus[TimerUpdated]()
}
