package services

import (
	"context"
	"os"

	"academy_billing_app/internal/billing"
)

// EmailNotifier delivers reminders over SMTP. net/smtp has no context
// support, so the send runs in a goroutine and the deadline is enforced
// around it; a timed-out send is reported like any other failure.
type EmailNotifier struct {
	Email *EmailService
}

func (n *EmailNotifier) Send(ctx context.Context, contact billing.Contact, msg billing.ReminderMessage) error {
	if contact.Email == "" {
		return billing.ErrNoContact
	}

	done := make(chan error, 1)
	go func() {
		done <- n.Email.SendEmail([]string{contact.Email}, msg.Subject, msg.Body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WahaNotifier delivers reminders over WhatsApp through a WAHA instance.
type WahaNotifier struct {
	Waha *WahaService
}

func (n *WahaNotifier) Send(ctx context.Context, contact billing.Contact, msg billing.ReminderMessage) error {
	if contact.Phone == "" {
		return billing.ErrNoContact
	}
	return n.Waha.SendMessage(ctx, contact.Phone, msg.Body)
}

// NotifierFromEnv picks the reminder channel from NOTIFY_CHANNEL
// ("email" or "whatsapp"); email is the default.
func NotifierFromEnv() billing.Notifier {
	if os.Getenv("NOTIFY_CHANNEL") == "whatsapp" {
		return &WahaNotifier{Waha: NewWahaService()}
	}
	return &EmailNotifier{Email: NewEmailService()}
}
