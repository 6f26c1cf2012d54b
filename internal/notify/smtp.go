package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPDispatcher delivers email messages through a plain SMTP relay
// (Mailpit in development).
type SMTPDispatcher struct {
	Host string
	Port int
	From string
}

// Send delivers the message to the relay.
func (d *SMTPDispatcher) Send(_ context.Context, msg Message) error {
	if msg.Recipient == "" {
		return ErrNoRecipient
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", d.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	addr := fmt.Sprintf("%s:%d", d.Host, d.Port)
	if err := smtp.SendMail(addr, nil, d.From, []string{msg.Recipient}, []byte(b.String())); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}
