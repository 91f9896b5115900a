package queue

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	ErrFull   = errors.New("notification queue is full")
	ErrClosed = errors.New("notification queue is closed")
)

// Queue is the outbox between the decision path and the notification workers.
// Push never blocks: a full queue rejects with ErrFull.
type Queue interface {
	Push(ctx context.Context, n core.Notification) error
	// Pop blocks until a notification is available, ctx is done or the queue is closed.
	Pop(ctx context.Context) (core.Notification, error)
	Close() error
}
