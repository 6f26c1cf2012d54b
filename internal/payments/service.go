package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
)

var (
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("payments: amount must be positive")
	// ErrOverpayment indicates the amount exceeds the invoice balance.
	ErrOverpayment = errors.New("payments: amount exceeds invoice balance")
	// ErrInvoiceClosed indicates the invoice no longer accepts payments.
	ErrInvoiceClosed = errors.New("payments: invoice is not payable")
)

// InvoiceSource resolves invoices.
type InvoiceSource interface {
	Get(ctx context.Context, id int64) (*invoicing.Invoice, error)
}

// NumberSource allocates receipt numbers.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType, tenantID int64, asOf time.Time) (string, error)
}

// Service records payments and derives invoice status transitions.
type Service struct {
	repo     RepositoryPort
	invoices InvoiceSource
	numbers  NumberSource
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invoices InvoiceSource, numbers NumberSource, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		invoices: invoices,
		numbers:  numbers,
		logger:   logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RecordInput carries the fields for one payment.
type RecordInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	Reference string
	PaidAt    time.Time
}

// Record registers a payment against an invoice. Full settlement moves the
// invoice to paid, which stops reminders and escalation for it.
func (s *Service) Record(ctx context.Context, input RecordInput) (*Payment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	inv, err := s.invoices.Get(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Unpaid() {
		return nil, ErrInvoiceClosed
	}
	balance := inv.Balance()
	if input.Amount.GreaterThan(balance) {
		return nil, ErrOverpayment
	}

	if input.PaidAt.IsZero() {
		input.PaidAt = s.now()
	}
	number, err := s.numbers.Next(ctx, numbering.DocTypeReceipt, inv.TenantID, input.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("allocate receipt number: %w", err)
	}

	newStatus := invoicing.StatusPartial
	if input.Amount.Equal(balance) {
		newStatus = invoicing.StatusPaid
	}
	payment, err := s.repo.RecordInvoicePayment(ctx, Payment{
		TenantID:  inv.TenantID,
		InvoiceID: inv.ID,
		Number:    number,
		Amount:    input.Amount,
		Method:    input.Method,
		Reference: input.Reference,
		PaidAt:    input.PaidAt,
	}, newStatus)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		slog.Int64("invoice_id", inv.ID),
		slog.String("receipt", payment.Number),
		slog.String("amount", input.Amount.String()),
		slog.String("status", string(newStatus)))
	return payment, nil
}

// History returns the payments recorded against an invoice.
func (s *Service) History(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}
