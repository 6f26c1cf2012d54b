package statutory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
)

type memoryRepo struct {
	obligations map[int64]*Obligation
	bills       map[int64]*Bill
	nextBillID  int64
}

func newMemoryRepo(obs ...*Obligation) *memoryRepo {
	m := &memoryRepo{obligations: make(map[int64]*Obligation), bills: make(map[int64]*Bill)}
	for _, o := range obs {
		m.obligations[o.ID] = o
	}
	return m
}

func (m *memoryRepo) GetObligation(ctx context.Context, id int64) (*Obligation, error) {
	o, ok := m.obligations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *o
	return &out, nil
}

func (m *memoryRepo) ListDueObligations(ctx context.Context, horizon time.Time) ([]Obligation, error) {
	var out []Obligation
	for _, o := range m.obligations {
		if o.Active && !o.NextDueDate.After(horizon) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateBill(ctx context.Context, b Bill) (*Bill, error) {
	for _, existing := range m.bills {
		if existing.ObligationID == b.ObligationID && existing.DueDate.Equal(b.DueDate) {
			return nil, ErrBillExists
		}
	}
	m.nextBillID++
	b.ID = m.nextBillID
	m.bills[b.ID] = &b
	out := b
	return &out, nil
}

func (m *memoryRepo) GetBill(ctx context.Context, id int64) (*Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

func (m *memoryRepo) MarkBillPaid(ctx context.Context, id int64, paidAt time.Time) error {
	b, ok := m.bills[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = BillStatusPaid
	b.PaidAt = &paidAt
	return nil
}

func (m *memoryRepo) AdvanceObligation(ctx context.Context, id int64, nextDue time.Time) error {
	o, ok := m.obligations[id]
	if !ok {
		return ErrNotFound
	}
	o.NextDueDate = nextDue
	return nil
}

func (m *memoryRepo) DeactivateObligation(ctx context.Context, id int64) error {
	o, ok := m.obligations[id]
	if !ok {
		return ErrNotFound
	}
	o.Active = false
	return nil
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

func obligation(id int64, c cycle.Cycle, due time.Time) *Obligation {
	return &Obligation{
		ID:          id,
		TenantID:    1,
		Name:        "City service levy",
		Amount:      decimal.NewFromInt(250000),
		Cycle:       c,
		NextDueDate: due,
		Active:      true,
	}
}

func TestGenerateBillsWithinHorizon(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(
		obligation(1, cycle.CycleMonthly, asOf.AddDate(0, 0, 10)),
		obligation(2, cycle.CycleMonthly, asOf.AddDate(0, 0, 45)),
	)
	a := NewAdvancer(repo, &stubNumbers{}, discardLogger(), 30)

	created, err := a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Len(t, repo.bills, 1)

	bill := repo.bills[1]
	require.Equal(t, int64(1), bill.ObligationID)
	require.Equal(t, BillStatusPending, bill.Status)
	require.True(t, bill.Amount.Equal(decimal.NewFromInt(250000)))
}

func TestGenerateBillsIsIdempotentPerPeriod(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(obligation(1, cycle.CycleMonthly, asOf.AddDate(0, 0, 10)))
	a := NewAdvancer(repo, &stubNumbers{}, discardLogger(), 30)

	created, err := a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	created, err = a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Len(t, repo.bills, 1)
}

func TestGenerateBillsSkipsInactiveObligations(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	retired := obligation(1, cycle.CycleOnce, asOf.AddDate(0, 0, 5))
	retired.Active = false
	repo := newMemoryRepo(retired)
	a := NewAdvancer(repo, &stubNumbers{}, discardLogger(), 30)

	created, err := a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestOnBillPaidAdvancesRecurringObligation(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(obligation(1, cycle.CycleMonthly, due))
	a := NewAdvancer(repo, &stubNumbers{}, discardLogger(), 30)

	created, err := a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	paidAt := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, a.OnBillPaid(context.Background(), 1, paidAt))

	bill := repo.bills[1]
	require.Equal(t, BillStatusPaid, bill.Status)
	require.NotNil(t, bill.PaidAt)

	o := repo.obligations[1]
	require.True(t, o.Active)
	require.Equal(t, time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC), o.NextDueDate)

	// The next sweep generates the following period's bill.
	created, err = a.GenerateBills(context.Background(), time.Date(2026, 9, 30, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Len(t, repo.bills, 2)
}

func TestOnBillPaidRetiresOneOffObligation(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(obligation(1, cycle.CycleOnce, asOf.AddDate(0, 0, 5)))
	a := NewAdvancer(repo, &stubNumbers{}, discardLogger(), 30)

	created, err := a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	require.NoError(t, a.OnBillPaid(context.Background(), 1, asOf))
	require.False(t, repo.obligations[1].Active)

	created, err = a.GenerateBills(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, created)
}
