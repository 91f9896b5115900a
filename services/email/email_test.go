package emailsvc

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
)

var testConf = Config{
	AppName: "Mahudhurio",
	From:    mail.Address{Name: "Center", Address: "noreply@center.test"},
	APIKey:  "sg-key",
}

func notification() core.Notification {
	return core.Notification{
		ID:        "n-1",
		Kind:      core.KindCreditWarning,
		Recipient: core.Contact{Name: "Guardian", Email: "guardian@test.test"},
		Context:   map[string]string{"student_name": "Amina", "remaining": "1", "group_name": "Physics"},
	}
}

func TestConsoleDispatcher_Send(t *testing.T) {
	var buf bytes.Buffer
	d := NewConsoleDispatcher(core.MustDefaultRenderer(), testConf, log.New(&buf, "", 0))

	res, err := d.Send(context.Background(), notification())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, buf.String(), "Subject: [Mahudhurio] Prepaid sessions running out")
	assert.Contains(t, buf.String(), "Amina has 1 prepaid session left in Physics.")

	n := notification()
	delete(n.Context, "remaining")
	res, err = d.Send(context.Background(), n)
	assert.Equal(t, core.ErrMissingVariable, errors.Cause(err))
	assert.False(t, res.Success)
}

func TestSendgridDispatcher_Send(t *testing.T) {
	tests := []struct {
		name      string
		notif     func() core.Notification
		resp      *rest.Response
		apiErr    error
		wantOK    bool
		wantErr   bool
		wantMsgID string
		wantCalls int
	}{
		{
			name:      "delivered",
			notif:     notification,
			resp:      &rest.Response{StatusCode: http.StatusAccepted, Headers: map[string][]string{"X-Message-Id": {"sg-42"}}},
			wantOK:    true,
			wantMsgID: "sg-42",
			wantCalls: 1,
		},
		{
			name:      "rejected by provider",
			notif:     notification,
			resp:      &rest.Response{StatusCode: http.StatusBadRequest, Body: "bad"},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "provider unreachable",
			notif:     notification,
			apiErr:    errors.New("dial tcp: timeout"),
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name: "no email address",
			notif: func() core.Notification {
				n := notification()
				n.Recipient = core.Contact{Name: "Guardian", Phone: "+255700000000"}
				return n
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			var sent rest.Request
			d := NewSendgridDispatcher(core.MustDefaultRenderer(), testConf).(*sendgridDispatcher)
			d.api = func(req rest.Request) (*rest.Response, error) {
				calls++
				sent = req
				return tt.resp, tt.apiErr
			}

			res, err := d.Send(context.Background(), tt.notif())
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantOK, res.Success)
			assert.Equal(t, tt.wantMsgID, res.ProviderMessageID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if calls > 0 {
				assert.Equal(t, http.MethodPost, string(sent.Method))
				assert.Contains(t, string(sent.Body), "guardian@test.test")
				assert.Contains(t, string(sent.Body), "[Mahudhurio] Prepaid sessions running out")
			}
		})
	}
}
