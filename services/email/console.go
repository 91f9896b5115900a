package emailsvc

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

type consoleDispatcher struct {
	renderer      core.Renderer
	from          mail.Address
	subjPrefix    string
	std           *log.Logger
	disableOutput bool
}

var _ core.Dispatcher = (*consoleDispatcher)(nil)

// NewConsoleDispatcher prints notifications instead of sending them; for local development.
func NewConsoleDispatcher(renderer core.Renderer, conf Config, std *log.Logger) core.Dispatcher {
	return &consoleDispatcher{
		renderer:   renderer,
		from:       conf.From,
		subjPrefix: "[" + conf.AppName + "] ",
		std:        std,
	}
}

func (d consoleDispatcher) Send(_ context.Context, n core.Notification) (core.Delivery, error) {
	text, err := d.renderer.Render(n.TemplateID(), n.Context)
	if err != nil {
		return core.Delivery{Channel: "console", Error: err.Error()}, errors.Wrap(err, "rendering notification")
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", d.from.String())
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", d.subjPrefix+Subject(n.Kind))
	_, _ = fmt.Fprintf(body, "To: %s <%s> %s\r\n", n.Recipient.Name, n.Recipient.Email, n.Recipient.Phone)
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", text)

	if !d.disableOutput {
		d.std.Println(body.String())
	}
	return core.Delivery{Success: true, Channel: "console", ProviderMessageID: n.ID}, nil
}
