package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded in-memory queue. Publishing never races Close.
type Queue[T any] struct {
	ch     chan T
	done   chan struct{}
	mu     sync.RWMutex
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an item without blocking.
func (q *Queue[T]) TryPublish(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish enqueues an item, waiting for capacity until ctx is done or the queue closes.
func (q *Queue[T]) Publish(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue from accepting new items. Buffered items stay readable.
func (q *Queue[T]) Close() {
	if !atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		return
	}
	close(q.done)
	q.mu.Lock()
	close(q.ch)
	q.mu.Unlock()
}

// Closed reports whether Close was called.
func (q *Queue[T]) Closed() bool {
	return atomic.LoadUint32(&q.closed) != 0
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// C exposes the receive side for select loops.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Recv waits for the next item. It returns ErrQueueClosed once the queue is closed and drained.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case item, ok := <-q.ch:
		if !ok {
			return zero, ErrQueueClosed
		}
		return item, nil
	}
}

// TryRecv returns the next buffered item without blocking.
func (q *Queue[T]) TryRecv() (T, bool) {
	var zero T
	select {
	case item, ok := <-q.ch:
		if !ok {
			return zero, false
		}
		return item, true
	default:
		return zero, false
	}
}

// Run consumes items until the context is done or the queue is closed and drained.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.ch:
			if !ok {
				return
			}
			handler(item)
		}
	}
}
