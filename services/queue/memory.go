package queue

import (
	"context"
	"sync"

	"github.com/trezcool/mahudhurio/core"
)

type memoryQueue struct {
	ch   chan core.Notification
	done chan struct{}
	once sync.Once
}

var _ Queue = (*memoryQueue)(nil)

// NewMemoryQueue is a buffered in-process queue holding up to size notifications.
func NewMemoryQueue(size int) Queue {
	if size <= 0 {
		size = 1
	}
	return &memoryQueue{
		ch:   make(chan core.Notification, size),
		done: make(chan struct{}),
	}
}

func (q *memoryQueue) Push(_ context.Context, n core.Notification) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return ErrFull
	}
}

func (q *memoryQueue) Pop(ctx context.Context) (core.Notification, error) {
	select {
	case n := <-q.ch:
		return n, nil
	case <-ctx.Done():
		return core.Notification{}, ctx.Err()
	case <-q.done:
		// drain what is left before reporting closed
		select {
		case n := <-q.ch:
			return n, nil
		default:
			return core.Notification{}, ErrClosed
		}
	}
}

func (q *memoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
