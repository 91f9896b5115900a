package core

import (
	"context"
	"time"
)

type NotificationKind string

const (
	KindAttendanceSuccess   NotificationKind = "attendance_success"
	KindLateBlock           NotificationKind = "late_block"
	KindFinancialBlock      NotificationKind = "financial_block"
	KindPaymentConfirmation NotificationKind = "payment_confirmation"
	KindCreditWarning       NotificationKind = "credit_warning"
	KindFinalWarning        NotificationKind = "final_warning"
	KindSessionCancelled    NotificationKind = "session_cancelled"
)

type (
	// Contact is whoever receives a notification, usually a student's guardian.
	Contact struct {
		Name  string `json:"name"`
		Phone string `json:"phone,omitempty"`
		Email string `json:"email,omitempty"`
	}

	Notification struct {
		ID        string            `json:"id"`
		Kind      NotificationKind  `json:"kind"`
		Recipient Contact           `json:"recipient"`
		Template  string            `json:"template"` // defaults to Kind
		Context   map[string]string `json:"context"`
		CreatedAt time.Time         `json:"created_at"`

		// AttendanceID links the notification back to the attendance it reports on, if any.
		AttendanceID string `json:"attendance_id,omitempty"`
	}

	// Delivery is the outcome reported by a Dispatcher.
	Delivery struct {
		Success           bool   `json:"success"`
		Channel           string `json:"channel,omitempty"`
		ProviderMessageID string `json:"provider_message_id,omitempty"`
		Error             string `json:"error,omitempty"`
	}

	// Dispatcher delivers a single notification over some channel (email, sms, ...).
	Dispatcher interface {
		Send(ctx context.Context, n Notification) (Delivery, error)
	}

	// Notifier enqueues notifications. Notify never blocks and never fails the caller.
	Notifier interface {
		Notify(n Notification)
	}

	// DeliveryHook is called once a notification has been handed to a Dispatcher.
	DeliveryHook func(ctx context.Context, n Notification, d Delivery)
)

func (c Contact) HasEmail() bool { return c.Email != "" }
func (c Contact) HasPhone() bool { return c.Phone != "" }
func (c Contact) IsZero() bool   { return !c.HasEmail() && !c.HasPhone() }

func (n Notification) TemplateID() string {
	if n.Template != "" {
		return n.Template
	}
	return string(n.Kind)
}

// NopNotifier drops everything.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Notify(Notification) {}
