package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one product URL awaiting a scrape pass.
type Task struct {
	URL       string
	CreatedAt time.Time
}

func NewTask(url string) *Task {
	return &Task{URL: url, CreatedAt: time.Now()}
}

// Queue feeds the worker pool. FIFO: output row order is completion order
// anyway, so there is nothing to gain from prioritization.
type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a channel-signalled FIFO. The buffered wake channel keeps
// signals from being lost when no Pop is blocked yet, and closing it wakes
// every waiter at once, so a cancelled or closing Pop never leaves the mutex
// in a broken state.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	wake   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		wake:  make(chan struct{}, 1),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	q.signal()

	return nil
}

// signal nudges one blocked Pop. Callers must hold the mutex.
func (q *InMemoryQueue) signal() {
	if q.closed {
		// The closed wake channel already wakes every waiter.
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop blocks until a task is available, the queue is closed and drained, or
// the context ends.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			if len(q.tasks) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.wake)
	}

	return nil
}
