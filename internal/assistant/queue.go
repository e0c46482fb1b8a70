package assistant

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Submit after Close. Callers should surface it
// as a shutdown condition, not retry it.
var ErrQueueClosed = errors.New("inference queue closed")

// Queue is the bounded multi-producer, single-consumer admission queue. Its
// capacity is the only overload-control knob: when full, Submit blocks the
// caller until a slot frees or the caller gives up, converting unbounded
// demand into bounded memory and predictable latency. Tasks are never dropped
// and never reordered.
type Queue struct {
	ch        chan *Task
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a queue with the given capacity.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = 1
	}
	queueCapacity.Set(float64(depth))
	return &Queue{
		ch:   make(chan *Task, depth),
		done: make(chan struct{}),
	}
}

// Submit enqueues t, blocking while the queue is at capacity. It returns
// ctx.Err() if the caller gives up while waiting and ErrQueueClosed once the
// queue has been shut down.
func (q *Queue) Submit(ctx context.Context, t *Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- t:
		queueDepth.Set(float64(len(q.ch)))
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops admission. Tasks already admitted are still served before the
// worker exits. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
