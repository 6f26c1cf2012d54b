package followups

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows   map[int64]*Followup
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]*Followup)}
}

func (m *memoryRepo) Create(ctx context.Context, f Followup) (*Followup, error) {
	m.nextID++
	f.ID = m.nextID
	m.rows[f.ID] = &f
	out := f
	return &out, nil
}

func (m *memoryRepo) Update(ctx context.Context, f Followup) error {
	if _, ok := m.rows[f.ID]; !ok {
		return ErrNotFound
	}
	row := f
	m.rows[f.ID] = &row
	return nil
}

func (m *memoryRepo) CountLoggedCalls(ctx context.Context, invoiceID int64) (int, error) {
	n := 0
	for _, f := range m.rows {
		if f.InvoiceID == invoiceID && f.CallDate != nil {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Followup, error) {
	f, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *f
	return &out, nil
}

func (m *memoryRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]Followup, error) {
	var out []Followup
	for id := int64(1); id <= m.nextID; id++ {
		if f, ok := m.rows[id]; ok && f.InvoiceID == invoiceID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetActiveByInvoice(ctx context.Context, invoiceID int64) (*Followup, error) {
	for _, f := range m.rows {
		if f.InvoiceID == invoiceID && f.Active() {
			out := *f
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

func newTestService(repo *memoryRepo) *Service {
	s := NewService(repo, discardLogger())
	s.now = func() time.Time { return testNow }
	return s
}

func scheduleOne(t *testing.T, s *Service, invoiceID int64) *Followup {
	t.Helper()
	f, err := s.Schedule(context.Background(), ScheduleInput{
		TenantID:   1,
		InvoiceID:  invoiceID,
		ClientID:   10,
		AssignedTo: 5,
		NextDate:   testNow.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	return f
}

func TestScheduleCreatesPendingFollowup(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)

	f := scheduleOne(t, s, 100)
	require.Equal(t, StatusPending, f.Status)
	require.NotNil(t, f.NextFollowup)
	require.True(t, f.Active())
}

func TestScheduleRejectsSecondActiveFollowup(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)

	scheduleOne(t, s, 100)
	_, err := s.Schedule(context.Background(), ScheduleInput{
		TenantID:  1,
		InvoiceID: 100,
		ClientID:  10,
		NextDate:  testNow.AddDate(0, 0, 2),
	})
	require.ErrorIs(t, err, ErrAlreadyScheduled)
}

func TestLogCallPromisedReschedulesDayAfterPromise(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	promise := testNow.AddDate(0, 0, 4)
	res, err := s.LogCall(context.Background(), f.ID, LogCallInput{
		Outcome:     OutcomePromised,
		PromiseDate: &promise,
	})
	require.NoError(t, err)
	require.False(t, res.Escalated)
	require.Equal(t, StatusOpen, res.Logged.Status)
	require.NotNil(t, res.Logged.CallDate)
	require.Nil(t, res.Logged.NextFollowup)

	require.NotNil(t, res.Successor)
	require.Equal(t, StatusPending, res.Successor.Status)
	require.Equal(t, promise.AddDate(0, 0, 1), *res.Successor.NextFollowup)
}

func TestLogCallNoAnswerReschedulesTwoDaysOut(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	res, err := s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: OutcomeNoAnswer})
	require.NoError(t, err)
	require.Equal(t, testNow.AddDate(0, 0, 2), *res.Successor.NextFollowup)
}

func TestLogCallThirdCallEscalates(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)

	f := scheduleOne(t, s, 100)
	for i := 0; i < 2; i++ {
		res, err := s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: OutcomeNoAnswer})
		require.NoError(t, err)
		require.NotNil(t, res.Successor)
		f = res.Successor
	}

	res, err := s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: OutcomeNoAnswer})
	require.NoError(t, err)
	require.True(t, res.Escalated)
	require.Nil(t, res.Successor)
	require.Equal(t, StatusEscalated, res.Logged.Status)
	require.Nil(t, res.Logged.NextFollowup)

	// The cap now blocks new schedules for the invoice.
	_, err = s.Schedule(context.Background(), ScheduleInput{
		TenantID:  1,
		InvoiceID: 100,
		ClientID:  10,
		NextDate:  testNow.AddDate(0, 0, 1),
	})
	require.ErrorIs(t, err, ErrCallCapReached)
}

func TestLogCallRejectsUnknownOutcome(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	_, err := s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: Outcome("ghosted")})
	require.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestLogCallRejectsPastPromiseDate(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	past := testNow.AddDate(0, 0, -1)
	_, err := s.LogCall(context.Background(), f.ID, LogCallInput{
		Outcome:     OutcomePromised,
		PromiseDate: &past,
	})
	require.ErrorIs(t, err, ErrPromiseDateNotFuture)
}

func TestLogCallRejectsAlreadyLoggedRow(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	_, err := s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: OutcomeNoAnswer})
	require.NoError(t, err)

	_, err = s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: OutcomeNoAnswer})
	require.ErrorIs(t, err, ErrNotActionable)
}

func TestLogCallOverrideNextDateWins(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	override := testNow.AddDate(0, 0, 10)
	res, err := s.LogCall(context.Background(), f.ID, LogCallInput{
		Outcome:          OutcomeDeclined,
		OverrideNextDate: &override,
	})
	require.NoError(t, err)
	require.Equal(t, override, *res.Successor.NextFollowup)
}

func TestCancelTerminatesWithoutSuccessor(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	require.NoError(t, s.Cancel(context.Background(), f.ID))
	got, err := repo.Get(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.Nil(t, got.NextFollowup)

	require.ErrorIs(t, s.Cancel(context.Background(), f.ID), ErrNotActionable)
}

func TestHistoryReturnsChainInOrder(t *testing.T) {
	repo := newMemoryRepo()
	s := newTestService(repo)
	f := scheduleOne(t, s, 100)

	res, err := s.LogCall(context.Background(), f.ID, LogCallInput{Outcome: OutcomeNoAnswer})
	require.NoError(t, err)

	history, err := s.History(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, f.ID, history[0].ID)
	require.Equal(t, res.Successor.ID, history[1].ID)
}
