package notifysvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/services/queue"
)

// Service is the asynchronous Notifier: Notify enqueues, a pool of workers dispatches.
type Service struct {
	queue      queue.Queue
	dispatcher core.Dispatcher
	hooks      []core.DeliveryHook
	log        core.Logger
	workers    int

	sendTimeout time.Duration
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

var _ core.Notifier = (*Service)(nil)

func NewService(q queue.Queue, d core.Dispatcher, logger core.Logger, workers int, hooks ...core.DeliveryHook) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		queue:       q,
		dispatcher:  d,
		hooks:       hooks,
		log:         logger,
		workers:     workers,
		sendTimeout: 30 * time.Second,
	}
}

// Notify never blocks the caller; a notification that cannot be queued is dropped and logged.
func (svc *Service) Notify(n core.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.queue.Push(ctx, n); err != nil {
		svc.log.Warn(fmt.Sprintf("dropping %s notification %s: %v", n.Kind, n.ID, err), err)
	}
}

// Start spawns the workers. They run until Stop.
func (svc *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	for i := 0; i < svc.workers; i++ {
		svc.wg.Add(1)
		go func() {
			defer svc.wg.Done()
			svc.work(ctx)
		}()
	}
}

func (svc *Service) work(ctx context.Context) {
	for {
		n, err := svc.queue.Pop(ctx)
		if err != nil {
			if errors.Cause(err) == queue.ErrClosed || ctx.Err() != nil {
				return
			}
			svc.log.Error(fmt.Sprintf("reading notification queue: %v", err), err)
			time.Sleep(time.Second)
			continue
		}
		svc.deliver(ctx, n)
	}
}

func (svc *Service) deliver(ctx context.Context, n core.Notification) {
	ctx, cancel := context.WithTimeout(ctx, svc.sendTimeout)
	defer cancel()

	d, err := svc.dispatcher.Send(ctx, n)
	if err != nil {
		svc.log.Error(fmt.Sprintf("sending %s notification %s: %v", n.Kind, n.ID, err), err)
		if d.Error == "" {
			d.Error = err.Error()
		}
	}
	for _, hook := range svc.hooks {
		hook(ctx, n, d)
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (svc *Service) Stop() {
	_ = svc.queue.Close()
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(svc.sendTimeout):
		svc.log.Warn("notification workers did not stop in time")
	}
	if svc.cancel != nil {
		svc.cancel()
	}
}
