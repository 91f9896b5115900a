package notifysvc

import (
	"context"
	"sync"

	"github.com/trezcool/mahudhurio/core"
)

// Recorder keeps every notification in memory and delivers synchronously. Used in tests.
type Recorder struct {
	mu    sync.Mutex
	sent  []core.Notification
	hooks []core.DeliveryHook
}

var (
	_ core.Notifier   = (*Recorder)(nil)
	_ core.Dispatcher = (*Recorder)(nil)
)

func NewRecorder(hooks ...core.DeliveryHook) *Recorder {
	return &Recorder{hooks: hooks}
}

func (r *Recorder) Notify(n core.Notification) {
	d, _ := r.Send(context.Background(), n)
	for _, hook := range r.hooks {
		hook(context.Background(), n, d)
	}
}

func (r *Recorder) Send(_ context.Context, n core.Notification) (core.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return core.Delivery{Success: true, Channel: "recorder", ProviderMessageID: n.ID}, nil
}

func (r *Recorder) Sent() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Notification(nil), r.sent...)
}

// Kinds lists the kinds sent, in order.
func (r *Recorder) Kinds() []core.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]core.NotificationKind, 0, len(r.sent))
	for _, n := range r.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
