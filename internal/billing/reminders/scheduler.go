// Package reminders dispatches pre-due payment reminders at fixed
// day-offsets before an invoice falls due.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/billing/ledger"
	"github.com/moinfo/MoBilling-sub001/internal/clients"
	"github.com/moinfo/MoBilling-sub001/internal/notify"
)

// Thresholds are the day-offsets before due date at which a reminder fires,
// descending. Collections cadence depends on these values.
var Thresholds = []int32{21, 14, 7, 3, 1}

// LedgerPort is the slice of the ledger the scheduler uses.
type LedgerPort interface {
	ListUnpaidInvoiceStates(ctx context.Context) ([]ledger.InvoiceReminderState, error)
	AppendReminderOffset(ctx context.Context, invoiceID int64, offset int32) error
}

// InvoiceSource resolves invoices for balance and number.
type InvoiceSource interface {
	Get(ctx context.Context, id int64) (*invoicing.Invoice, error)
}

// ClientSource resolves clients for notification addressing.
type ClientSource interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// Scheduler emits pre-due reminders, once per (invoice, threshold).
type Scheduler struct {
	ledger     LedgerPort
	invoices   InvoiceSource
	clients    ClientSource
	dispatcher notify.Dispatcher
	logger     *slog.Logger
}

// NewScheduler wires the scheduler's collaborators.
func NewScheduler(ldg LedgerPort, invoices InvoiceSource, cls ClientSource, dispatcher notify.Dispatcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{ledger: ldg, invoices: invoices, clients: cls, dispatcher: dispatcher, logger: logger}
}

// Run executes one reminder pass as of the injected reference time and
// returns the number of reminders sent. Per-invoice failures are logged and
// the pass continues.
func (s *Scheduler) Run(ctx context.Context, asOf time.Time) (int, error) {
	states, err := s.ledger.ListUnpaidInvoiceStates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unpaid ledger states: %w", err)
	}

	// One invoice can aggregate several ledger rows; dedupe per invoice
	// within the run, on top of the offsets persisted in the ledger.
	processed := make(map[int64]bool)
	sent := 0
	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if processed[state.InvoiceID] {
			continue
		}
		processed[state.InvoiceID] = true

		daysUntilDue := daysBetween(asOf, state.DueDate)
		if daysUntilDue < 0 {
			// Past due: the escalation engine owns it now.
			continue
		}
		offset, ok := matchThreshold(daysUntilDue)
		if !ok {
			continue
		}
		if contains(state.OffsetsSent, offset) {
			continue
		}

		ok, err := s.remind(ctx, state, offset, daysUntilDue)
		if err != nil {
			s.logger.Error("reminder failed",
				slog.Int64("invoice_id", state.InvoiceID),
				slog.Int("offset", int(offset)),
				slog.Any("error", err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (s *Scheduler) remind(ctx context.Context, state ledger.InvoiceReminderState, offset int32, daysUntilDue int) (bool, error) {
	inv, err := s.invoices.Get(ctx, state.InvoiceID)
	if err != nil {
		return false, fmt.Errorf("resolve invoice: %w", err)
	}
	if !inv.Unpaid() {
		return false, nil
	}
	client, err := s.clients.Get(ctx, state.ClientID)
	if err != nil {
		return false, fmt.Errorf("resolve client: %w", err)
	}

	subject, body := notify.ReminderBody(client.Name, inv.Number, inv.Currency, inv.Balance(), inv.DueDate, daysUntilDue)
	msg := notify.NewMessage(state.TenantID, notify.ChannelEmail, notify.KindReminder, client.Email, subject, body)
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("dispatch reminder: %w", err)
	}

	// Record on every ledger entry sharing the invoice so partial
	// subscription groups stay consistent.
	if err := s.ledger.AppendReminderOffset(ctx, state.InvoiceID, offset); err != nil {
		return false, fmt.Errorf("record reminder offset: %w", err)
	}

	s.logger.Info("reminder sent",
		slog.Int64("invoice_id", state.InvoiceID),
		slog.String("number", inv.Number),
		slog.Int("days_until_due", daysUntilDue))
	return true, nil
}

func matchThreshold(days int) (int32, bool) {
	for _, t := range Thresholds {
		if int32(days) == t {
			return t, true
		}
	}
	return 0, false
}

func contains(offsets []int32, offset int32) bool {
	for _, o := range offsets {
		if o == offset {
			return true
		}
	}
	return false
}

// daysBetween returns whole calendar days from asOf to due, negative when
// due is in the past.
func daysBetween(asOf, due time.Time) int {
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(a).Hours() / 24)
}
