package taskquery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/events"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

var ErrTaskNotFound = errors.New("task not found")

// Fetcher loads the authoritative task list
type Fetcher interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
}

// Invalidated is published whenever the cached task list is marked stale
type Invalidated struct {
	At time.Time
}

// Query is the shared task-list query every consumer reads from. A timer
// mutation invalidates it so the next read refetches; subscribers are told
// about the invalidation so they can refetch immediately instead of waiting
// for their poll interval.
type Query struct {
	fetcher    Fetcher
	clock      clockwork.Clock
	staleAfter time.Duration
	group      singleflight.Group
	bus        *events.Bus[Invalidated]

	mu        sync.RWMutex
	tasks     []domain.Task
	fetchedAt time.Time
	valid     bool
	version   uint64
	// version the cached tasks were fetched under
	storedVersion uint64
}

// New creates a Query. staleAfter <= 0 means cached data never expires on its
// own and is only refreshed by Invalidate.
func New(fetcher Fetcher, clock clockwork.Clock, staleAfter time.Duration) *Query {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Query{
		fetcher:    fetcher,
		clock:      clock,
		staleAfter: staleAfter,
		bus:        events.NewBus[Invalidated](),
	}
}

// Tasks returns the task list, fetching it when the cache is empty, stale or
// invalidated. Concurrent callers share one fetch.
func (q *Query) Tasks(ctx context.Context) ([]domain.Task, error) {
	q.mu.RLock()
	if q.fresh() {
		out := cloneTasks(q.tasks)
		q.mu.RUnlock()
		return out, nil
	}
	q.mu.RUnlock()

	return q.load(ctx, false)
}

// Refetch always goes to the backend (deduplicated with in-flight fetches)
func (q *Query) Refetch(ctx context.Context) ([]domain.Task, error) {
	return q.load(ctx, true)
}

func (q *Query) load(ctx context.Context, force bool) ([]domain.Task, error) {
	// Keyed by version so a read issued after Invalidate never joins a
	// fetch that started before it
	q.mu.RLock()
	version := q.version
	q.mu.RUnlock()
	key := fmt.Sprintf("tasks:%d", version)
	if force {
		key += ":force"
	}

	v, err, _ := q.group.Do(key, func() (interface{}, error) {
		q.mu.RLock()
		if !force && q.fresh() {
			out := cloneTasks(q.tasks)
			q.mu.RUnlock()
			return out, nil
		}
		q.mu.RUnlock()

		tasks, err := q.fetcher.ListTasks(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tasks: %w", err)
		}

		q.mu.Lock()
		defer q.mu.Unlock()
		if version >= q.storedVersion {
			q.tasks = cloneTasks(tasks)
			q.fetchedAt = q.clock.Now()
			q.storedVersion = version
			// An invalidation that raced this fetch keeps the cache stale
			q.valid = q.version == version
		}
		return cloneTasks(tasks), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneTasks(v.([]domain.Task)), nil
}

// Task returns one task from the (possibly refreshed) list
func (q *Query) Task(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := q.Tasks(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// Cached returns the last fetched list without touching the backend
func (q *Query) Cached() ([]domain.Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return cloneTasks(q.tasks), q.tasks != nil
}

// Invalidate marks the cache stale and notifies subscribers
func (q *Query) Invalidate() {
	q.mu.Lock()
	q.valid = false
	q.version++
	q.mu.Unlock()

	q.bus.Publish(Invalidated{At: q.clock.Now()})
}

// Subscribe returns a channel of invalidation notices and its unsubscribe func
func (q *Query) Subscribe() (<-chan Invalidated, func()) {
	return q.bus.Subscribe(1)
}

// Close releases subscribers
func (q *Query) Close() {
	q.bus.Close()
}

func (q *Query) fresh() bool {
	if !q.valid {
		return false
	}
	if q.staleAfter <= 0 {
		return true
	}
	return q.clock.Since(q.fetchedAt) < q.staleAfter
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return nil
	}
	out := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t
		if t.TimeLogs != nil {
			out[i].TimeLogs = append([]domain.TimeLog(nil), t.TimeLogs...)
		}
	}
	return out
}
