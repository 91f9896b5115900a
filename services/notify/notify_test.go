package notifysvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/services/queue"
)

type stubDispatcher struct {
	delivery core.Delivery
	err      error
	block    chan struct{}

	mu   sync.Mutex
	sent []core.Notification
}

func (d *stubDispatcher) Send(_ context.Context, n core.Notification) (core.Delivery, error) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.sent = append(d.sent, n)
	d.mu.Unlock()
	return d.delivery, d.err
}

func (d *stubDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func TestService_DeliversAndRunsHooks(t *testing.T) {
	disp := &stubDispatcher{delivery: core.Delivery{Success: true, ProviderMessageID: "p-1"}}

	var mu sync.Mutex
	var hooked []core.Delivery
	hook := func(_ context.Context, _ core.Notification, d core.Delivery) {
		mu.Lock()
		hooked = append(hooked, d)
		mu.Unlock()
	}

	svc := NewService(queue.NewMemoryQueue(8), disp, logsvc.NewNopLogger(), 2, hook)
	svc.Start()
	for i := 0; i < 5; i++ {
		svc.Notify(core.Notification{ID: "n", Kind: core.KindAttendanceSuccess})
	}
	svc.Stop()

	assert.Equal(t, 5, disp.count())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, hooked, 5)
	assert.True(t, hooked[0].Success)
}

func TestService_NotifyNeverBlocks(t *testing.T) {
	disp := &stubDispatcher{block: make(chan struct{})}
	svc := NewService(queue.NewMemoryQueue(1), disp, logsvc.NewNopLogger(), 1)
	// workers not started: the queue fills up after one notification

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			svc.Notify(core.Notification{ID: "n"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	close(disp.block)
}

func TestService_FailedDeliveryIsReportedToHooks(t *testing.T) {
	disp := &stubDispatcher{err: errors.New("provider down")}
	var got core.Delivery
	hook := func(_ context.Context, _ core.Notification, d core.Delivery) { got = d }

	svc := NewService(queue.NewMemoryQueue(1), disp, logsvc.NewNopLogger(), 1, hook)
	svc.Start()
	svc.Notify(core.Notification{ID: "n"})
	svc.Stop()

	assert.False(t, got.Success)
	assert.Equal(t, "provider down", got.Error)
}

func TestMultiDispatcher(t *testing.T) {
	email := &stubDispatcher{delivery: core.Delivery{Success: true, ProviderMessageID: "e-1"}}
	sms := &stubDispatcher{err: errors.New("gateway down")}
	md := NewMultiDispatcher(EmailRoute(email), PhoneRoute("sms", sms))

	tests := []struct {
		name        string
		contact     core.Contact
		wantSuccess bool
		wantErr     bool
		wantChannel string
	}{
		{name: "email only", contact: core.Contact{Email: "g@test.test"}, wantSuccess: true, wantChannel: "email"},
		{name: "email ok, sms fails", contact: core.Contact{Email: "g@test.test", Phone: "+255"}, wantSuccess: true, wantChannel: "email"},
		{name: "sms only fails", contact: core.Contact{Phone: "+255"}, wantErr: true},
		{name: "unreachable", contact: core.Contact{Name: "nobody"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := md.Send(context.Background(), core.Notification{Recipient: tt.contact})
			assert.Equal(t, tt.wantSuccess, d.Success)
			assert.Equal(t, tt.wantChannel, d.Channel)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if !tt.wantSuccess {
				assert.NotEmpty(t, d.Error)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	var hooked int
	r := NewRecorder(func(context.Context, core.Notification, core.Delivery) { hooked++ })
	r.Notify(core.Notification{Kind: core.KindLateBlock})
	r.Notify(core.Notification{Kind: core.KindFinalWarning})

	assert.Equal(t, []core.NotificationKind{core.KindLateBlock, core.KindFinalWarning}, r.Kinds())
	assert.Equal(t, 2, hooked)
	r.Reset()
	assert.Empty(t, r.Sent())
}
