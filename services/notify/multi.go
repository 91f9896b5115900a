package notifysvc

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

// Route sends over Dispatcher when Accepts says the contact is reachable on Channel.
type Route struct {
	Channel    string
	Accepts    func(c core.Contact) bool
	Dispatcher core.Dispatcher
}

func EmailRoute(d core.Dispatcher) Route {
	return Route{Channel: "email", Accepts: core.Contact.HasEmail, Dispatcher: d}
}

func PhoneRoute(channel string, d core.Dispatcher) Route {
	return Route{Channel: channel, Accepts: core.Contact.HasPhone, Dispatcher: d}
}

type multiDispatcher struct {
	routes []Route
}

var _ core.Dispatcher = (*multiDispatcher)(nil)

// NewMultiDispatcher fans a notification out to every route the recipient can be reached on.
// The delivery succeeds when any route does.
func NewMultiDispatcher(routes ...Route) core.Dispatcher {
	return &multiDispatcher{routes: routes}
}

func (md *multiDispatcher) Send(ctx context.Context, n core.Notification) (core.Delivery, error) {
	var (
		channels []string
		ids      []string
		errs     []string
		success  bool
	)
	for _, r := range md.routes {
		if !r.Accepts(n.Recipient) {
			continue
		}
		d, err := r.Dispatcher.Send(ctx, n)
		if err != nil {
			errs = append(errs, r.Channel+": "+err.Error())
			continue
		}
		if d.Success {
			success = true
			channels = append(channels, r.Channel)
			if d.ProviderMessageID != "" {
				ids = append(ids, d.ProviderMessageID)
			}
		} else if d.Error != "" {
			errs = append(errs, r.Channel+": "+d.Error)
		}
	}

	d := core.Delivery{
		Success:           success,
		Channel:           strings.Join(channels, ","),
		ProviderMessageID: strings.Join(ids, ","),
		Error:             strings.Join(errs, "; "),
	}
	if len(channels) == 0 && len(errs) == 0 {
		d.Error = "no channel can reach the recipient"
	}
	if !success && len(errs) > 0 {
		return d, errors.New(d.Error)
	}
	return d, nil
}
