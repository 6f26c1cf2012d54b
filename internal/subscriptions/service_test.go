package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
	"github.com/moinfo/MoBilling-sub001/internal/catalog"
)

type memoryRepo struct {
	rows   map[int64]*Subscription
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]*Subscription)}
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Subscription, error) {
	sub, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sub
	return &out, nil
}

func (m *memoryRepo) Create(ctx context.Context, sub Subscription) (*Subscription, error) {
	m.nextID++
	sub.ID = m.nextID
	m.rows[sub.ID] = &sub
	out := sub
	return &out, nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	sub, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	return nil
}

func (m *memoryRepo) ListByClient(ctx context.Context, clientID int64) ([]Subscription, error) {
	var out []Subscription
	for id := int64(1); id <= m.nextID; id++ {
		if sub, ok := m.rows[id]; ok && sub.ClientID == clientID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListBillable(ctx context.Context) ([]BillableRow, error) {
	return nil, nil
}

type stubCatalog struct {
	services map[int64]*catalog.Service
}

func (s *stubCatalog) Get(ctx context.Context, id int64) (*catalog.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return svc, nil
}

func webHosting(active bool) *catalog.Service {
	return &catalog.Service{
		ID:         100,
		TenantID:   1,
		Name:       "Web hosting",
		Price:      decimal.NewFromInt(50000),
		TaxPercent: decimal.NewFromInt(18),
		Cycle:      cycle.CycleMonthly,
		Active:     active,
	}
}

func newTestService(svc *catalog.Service) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	cat := &stubCatalog{services: map[int64]*catalog.Service{}}
	if svc != nil {
		cat.services[svc.ID] = svc
	}
	return NewService(repo, cat), repo
}

func createInput() CreateSubscriptionInput {
	return CreateSubscriptionInput{
		TenantID:  1,
		ClientID:  10,
		ServiceID: 100,
		Quantity:  decimal.NewFromInt(1),
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateStartsPending(t *testing.T) {
	s, _ := newTestService(webHosting(true))

	sub, err := s.Create(context.Background(), createInput())
	require.NoError(t, err)
	require.Equal(t, StatusPending, sub.Status)
	require.Equal(t, int64(100), sub.ServiceID)
}

func TestCreateRejectsInactiveService(t *testing.T) {
	s, _ := newTestService(webHosting(false))

	_, err := s.Create(context.Background(), createInput())
	require.ErrorIs(t, err, ErrInactiveService)
}

func TestCreateRejectsUnknownService(t *testing.T) {
	s, _ := newTestService(nil)

	_, err := s.Create(context.Background(), createInput())
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	s, _ := newTestService(webHosting(true))

	input := createInput()
	input.Quantity = decimal.Zero
	_, err := s.Create(context.Background(), input)
	require.Error(t, err)
}

func TestActivateFromPendingAndSuspended(t *testing.T) {
	s, repo := newTestService(webHosting(true))
	sub, err := s.Create(context.Background(), createInput())
	require.NoError(t, err)

	require.NoError(t, s.Activate(context.Background(), sub.ID))
	require.Equal(t, StatusActive, repo.rows[sub.ID].Status)

	require.NoError(t, s.Suspend(context.Background(), sub.ID))
	require.Equal(t, StatusSuspended, repo.rows[sub.ID].Status)

	require.NoError(t, s.Activate(context.Background(), sub.ID))
	require.Equal(t, StatusActive, repo.rows[sub.ID].Status)
}

func TestSuspendRequiresActive(t *testing.T) {
	s, _ := newTestService(webHosting(true))
	sub, err := s.Create(context.Background(), createInput())
	require.NoError(t, err)

	require.ErrorIs(t, s.Suspend(context.Background(), sub.ID), ErrInvalidStatus)
}

func TestCancelIsTerminal(t *testing.T) {
	s, repo := newTestService(webHosting(true))
	sub, err := s.Create(context.Background(), createInput())
	require.NoError(t, err)

	require.NoError(t, s.Cancel(context.Background(), sub.ID))
	require.Equal(t, StatusCancelled, repo.rows[sub.ID].Status)

	require.ErrorIs(t, s.Cancel(context.Background(), sub.ID), ErrInvalidStatus)
	require.ErrorIs(t, s.Activate(context.Background(), sub.ID), ErrInvalidStatus)
}

func TestListByClient(t *testing.T) {
	s, _ := newTestService(webHosting(true))
	_, err := s.Create(context.Background(), createInput())
	require.NoError(t, err)

	other := createInput()
	other.ClientID = 20
	_, err = s.Create(context.Background(), other)
	require.NoError(t, err)

	subs, err := s.ListByClient(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, int64(10), subs[0].ClientID)
}
