package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"horse.fit/newsroom/internal/globaltime"
)

type delayedTask struct {
	task Task
	due  time.Time
}

// MemoryQueue is an in-process Queue for single-binary runs and tests.
type MemoryQueue struct {
	mu       sync.Mutex
	ready    []Task
	delayed  []delayedTask
	statuses map[string]Status
	notify   chan struct{}
	closed   bool
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		statuses: make(map[string]Status),
		notify:   make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Push(_ context.Context, task Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errQueueClosed
	}
	if delay > 0 {
		q.delayed = append(q.delayed, delayedTask{task: task, due: globaltime.Now().Add(delay)})
		sort.SliceStable(q.delayed, func(i, j int) bool { return q.delayed[i].due.Before(q.delayed[j].due) })
	} else {
		q.ready = append(q.ready, task)
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, wait time.Duration) (*Task, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		task, nextDue, err := q.take()
		if err != nil || task != nil {
			return task, err
		}

		var (
			dueTimer *time.Timer
			dueC     <-chan time.Time
		)
		if !nextDue.IsZero() {
			dueTimer = time.NewTimer(max(nextDue.Sub(globaltime.Now()), time.Millisecond))
			dueC = dueTimer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(dueTimer)
			return nil, ctx.Err()
		case <-deadline.C:
			stopTimer(dueTimer)
			task, _, err := q.take()
			return task, err
		case <-q.notify:
		case <-dueC:
		}
		stopTimer(dueTimer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// take pops the oldest ready task, promoting delayed tasks that are due.
func (q *MemoryQueue) take() (*Task, time.Time, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, time.Time{}, errQueueClosed
	}

	now := globaltime.Now()
	for len(q.delayed) > 0 && !q.delayed[0].due.After(now) {
		q.ready = append(q.ready, q.delayed[0].task)
		q.delayed = q.delayed[1:]
	}

	var nextDue time.Time
	if len(q.delayed) > 0 {
		nextDue = q.delayed[0].due
	}
	if len(q.ready) == 0 {
		return nil, nextDue, nil
	}
	task := q.ready[0]
	q.ready = q.ready[1:]
	return &task, nextDue, nil
}

// Pending reports ready and delayed task counts.
func (q *MemoryQueue) Pending() (ready int, delayed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.delayed)
}

func (q *MemoryQueue) SetStatus(_ context.Context, status Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[status.ID] = status
	return nil
}

func (q *MemoryQueue) Status(_ context.Context, id string) (*Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.statuses[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &status, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
