package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
)

type memoryRepo struct {
	invoices map[int64]*invoicing.Invoice
	payments []Payment
	nextID   int64
}

func (m *memoryRepo) RecordInvoicePayment(ctx context.Context, p Payment, newStatus invoicing.Status) (*Payment, error) {
	m.nextID++
	p.ID = m.nextID
	m.payments = append(m.payments, p)
	inv := m.invoices[p.InvoiceID]
	inv.PaidAmount = inv.PaidAmount.Add(p.Amount)
	inv.Status = newStatus
	out := p
	return &out, nil
}

func (m *memoryRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

type invoiceSource struct {
	rows map[int64]*invoicing.Invoice
}

func (s *invoiceSource) Get(ctx context.Context, id int64) (*invoicing.Invoice, error) {
	inv, ok := s.rows[id]
	if !ok {
		return nil, invoicing.ErrNotFound
	}
	out := *inv
	return &out, nil
}

type stubNumbers struct {
	seq int
}

func (s *stubNumbers) Next(ctx context.Context, docType numbering.DocType, tenantID int64, asOf time.Time) (string, error) {
	s.seq++
	return fmt.Sprintf("%s-2026-%06d", docType, s.seq), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(invs ...*invoicing.Invoice) (*Service, *memoryRepo) {
	rows := make(map[int64]*invoicing.Invoice)
	for _, inv := range invs {
		rows[inv.ID] = inv
	}
	repo := &memoryRepo{invoices: rows}
	return NewService(repo, &invoiceSource{rows: rows}, &stubNumbers{}, discardLogger()), repo
}

func sentInvoice(id int64, total int64) *invoicing.Invoice {
	return &invoicing.Invoice{
		ID:       id,
		TenantID: 1,
		ClientID: 10,
		Number:   "INV-2026-000001",
		Status:   invoicing.StatusSent,
		Currency: "TZS",
		Total:    decimal.NewFromInt(total),
		DueDate:  time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestRecordPartialPayment(t *testing.T) {
	inv := sentInvoice(1, 100000)
	s, repo := newTestService(inv)

	p, err := s.Record(context.Background(), RecordInput{
		InvoiceID: 1,
		Amount:    decimal.NewFromInt(40000),
		Method:    "mobile_money",
		Reference: "MPESA-12345",
	})
	require.NoError(t, err)
	require.Equal(t, "RCT-2026-000001", p.Number)
	require.Equal(t, invoicing.StatusPartial, inv.Status)
	require.True(t, inv.Balance().Equal(decimal.NewFromInt(60000)))
	require.Len(t, repo.payments, 1)
}

func TestRecordFullSettlementMarksPaid(t *testing.T) {
	inv := sentInvoice(1, 100000)
	s, _ := newTestService(inv)

	_, err := s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(40000)})
	require.NoError(t, err)

	_, err = s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(60000)})
	require.NoError(t, err)
	require.Equal(t, invoicing.StatusPaid, inv.Status)
	require.True(t, inv.Balance().IsZero())
}

func TestRecordRejectsOverpayment(t *testing.T) {
	inv := sentInvoice(1, 100000)
	s, _ := newTestService(inv)

	_, err := s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(100001)})
	require.ErrorIs(t, err, ErrOverpayment)
	require.Equal(t, invoicing.StatusSent, inv.Status)
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	s, _ := newTestService(sentInvoice(1, 100000))

	_, err := s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(-500)})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordRejectsClosedInvoice(t *testing.T) {
	inv := sentInvoice(1, 100000)
	inv.Status = invoicing.StatusPaid
	inv.PaidAmount = inv.Total
	s, _ := newTestService(inv)

	_, err := s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(1000)})
	require.ErrorIs(t, err, ErrInvoiceClosed)
}

func TestHistoryListsPaymentsForInvoice(t *testing.T) {
	inv := sentInvoice(1, 100000)
	s, _ := newTestService(inv)

	_, err := s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(25000)})
	require.NoError(t, err)
	_, err = s.Record(context.Background(), RecordInput{InvoiceID: 1, Amount: decimal.NewFromInt(25000)})
	require.NoError(t, err)

	history, err := s.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "RCT-2026-000002", history[1].Number)
}
