package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/mahudhurio/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	subjects = map[core.NotificationKind]string{
		core.KindAttendanceSuccess:   "Attendance recorded",
		core.KindLateBlock:           "Late arrival",
		core.KindFinancialBlock:      "Entry refused: payment due",
		core.KindPaymentConfirmation: "Payment received",
		core.KindCreditWarning:       "Prepaid sessions running out",
		core.KindFinalWarning:        "Final payment notice",
		core.KindSessionCancelled:    "Session cancelled",
	}
)

// Config holds what the email dispatchers need from the app configuration.
type Config struct {
	AppName string
	From    mail.Address
	APIKey  string
}

// Subject is the email subject of a notification kind.
func Subject(kind core.NotificationKind) string {
	if s, ok := subjects[kind]; ok {
		return s
	}
	return string(kind)
}

type sendgridDispatcher struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	renderer   core.Renderer
	api        func(req rest.Request) (*rest.Response, error)
}

var _ core.Dispatcher = (*sendgridDispatcher)(nil)

// NewSendgridDispatcher emails the recipient through the sendgrid v3 API.
func NewSendgridDispatcher(renderer core.Renderer, conf Config) core.Dispatcher {
	return &sendgridDispatcher{
		key:        conf.APIKey,
		from:       sgmail.NewEmail(conf.From.Name, conf.From.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		renderer:   renderer,
		api:        sendgrid.API,
	}
}

func (d sendgridDispatcher) prepare(n core.Notification, text string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = d.subjPrefix + Subject(n.Kind)
	p.AddTos(sgmail.NewEmail(n.Recipient.Name, n.Recipient.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(d.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", text))
	return m
}

func (d sendgridDispatcher) Send(_ context.Context, n core.Notification) (core.Delivery, error) {
	delivery := core.Delivery{Channel: "email"}
	if !n.Recipient.HasEmail() {
		delivery.Error = "recipient has no email address"
		return delivery, nil
	}

	text, err := d.renderer.Render(n.TemplateID(), n.Context)
	if err != nil {
		delivery.Error = err.Error()
		return delivery, errors.Wrap(err, "rendering notification")
	}

	req := sendgrid.GetRequest(d.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(d.prepare(n, text))

	res, err := d.api(req)
	if err != nil {
		delivery.Error = err.Error()
		return delivery, errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		delivery.Error = fmt.Sprintf("status: %d - body: %s", res.StatusCode, res.Body)
		return delivery, errors.New("sending email: " + delivery.Error)
	}

	delivery.Success = true
	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		delivery.ProviderMessageID = ids[0]
	}
	return delivery, nil
}
