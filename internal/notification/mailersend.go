package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

const mailSendTimeout = 10 * time.Second

// MailerSendNotifier delivers e-mail notifications through MailerSend.
type MailerSendNotifier struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

// NewMailerSendNotifier builds an e-mail notifier from an API key and sender identity.
func NewMailerSendNotifier(apiKey, fromName, fromEmail string) (*MailerSendNotifier, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, errors.New("mailersend api key and sender email are required")
	}
	return &MailerSendNotifier{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}, nil
}

// Send e-mails message.Body as plain text to message.Destination.
func (m *MailerSendNotifier) Send(ctx context.Context, message Message) error {
	ctx, cancel := context.WithTimeout(ctx, mailSendTimeout)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: message.Destination}})
	msg.SetSubject(message.Subject)
	msg.SetText(message.Body)

	if _, err := m.client.Email.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
