// Package notify dispatches billing notifications over email and SMS.
//
// Dispatch is at-most-once: a failed send is logged by the caller and never
// retried, and the business record it announces is still considered created.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// Channel enumerates delivery channels.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Kind enumerates notification templates.
type Kind string

const (
	KindInvoiceSent        Kind = "invoice-sent"
	KindReminder           Kind = "reminder"
	KindLateFee            Kind = "late-fee"
	KindTerminationWarning Kind = "termination-warning"
	KindCollectionsCallLog Kind = "collections-call-log"
)

// Message is one notification to one recipient on one channel.
type Message struct {
	ID        uuid.UUID
	TenantID  int64
	Channel   Channel
	Kind      Kind
	Recipient string
	Subject   string
	Body      string
}

// ErrNoRecipient indicates the client has no address for the channel.
var ErrNoRecipient = errors.New("notify: no recipient for channel")

// Dispatcher sends a single message.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// NewMessage stamps a message with a fresh id.
func NewMessage(tenantID int64, ch Channel, kind Kind, recipient, subject, body string) Message {
	return Message{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Channel:   ch,
		Kind:      kind,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	}
}

// LogDispatcher writes messages to the log instead of delivering them. Used
// in development and as the SMS transport until a gateway is wired up.
type LogDispatcher struct {
	Logger *slog.Logger
}

// Send logs the message.
func (d *LogDispatcher) Send(_ context.Context, msg Message) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if msg.Recipient == "" {
		return ErrNoRecipient
	}
	logger.Info("notification dispatched",
		slog.String("id", msg.ID.String()),
		slog.String("channel", string(msg.Channel)),
		slog.String("kind", string(msg.Kind)),
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject))
	return nil
}

// Router fans a message out to the dispatcher registered for its channel.
type Router struct {
	routes map[Channel]Dispatcher
}

// NewRouter builds a Router from per-channel dispatchers.
func NewRouter(routes map[Channel]Dispatcher) *Router {
	return &Router{routes: routes}
}

// Send routes the message by channel.
func (r *Router) Send(ctx context.Context, msg Message) error {
	d, ok := r.routes[msg.Channel]
	if !ok {
		return errors.New("notify: no dispatcher for channel " + string(msg.Channel))
	}
	return d.Send(ctx, msg)
}

// Channels lists the channels the router can deliver on.
func (r *Router) Channels() []Channel {
	chans := make([]Channel, 0, len(r.routes))
	for ch := range r.routes {
		chans = append(chans, ch)
	}
	return chans
}
