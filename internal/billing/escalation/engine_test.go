package escalation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/clients"
	"github.com/moinfo/MoBilling-sub001/internal/notify"
	"github.com/moinfo/MoBilling-sub001/internal/shared"
	"github.com/moinfo/MoBilling-sub001/internal/tenants"
)

type memoryInvoices struct {
	rows map[int64]*invoicing.Invoice
}

func (m *memoryInvoices) ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]invoicing.Invoice, error) {
	var out []invoicing.Invoice
	for _, inv := range m.rows {
		if inv.Unpaid() && inv.DueDate.Before(asOf) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memoryInvoices) AdvanceStage(ctx context.Context, id int64, from, to invoicing.OverdueStage) error {
	inv, ok := m.rows[id]
	if !ok {
		return invoicing.ErrNotFound
	}
	if inv.OverdueStage != from {
		return invoicing.ErrStagePassed
	}
	inv.OverdueStage = to
	return nil
}

func (m *memoryInvoices) ApplyLateFee(ctx context.Context, id int64, fee decimal.Decimal) error {
	inv, ok := m.rows[id]
	if !ok {
		return invoicing.ErrNotFound
	}
	if inv.OverdueStage != invoicing.StageReminderSent {
		return invoicing.ErrStagePassed
	}
	inv.OverdueStage = invoicing.StageLateFeeApplied
	inv.Total = inv.Total.Add(fee)
	return nil
}

type stubClients struct{}

func (stubClients) Get(ctx context.Context, id int64) (*clients.Client, error) {
	return &clients.Client{ID: id, TenantID: 1, Name: "Acme Ltd", Email: "billing@acme.test", Phone: "+255700000001"}, nil
}

type stubSettings struct {
	s tenants.ReminderSettings
}

func (s *stubSettings) Settings(ctx context.Context, tenantID int64) (tenants.ReminderSettings, error) {
	return s.s, nil
}

type channelRecorder struct {
	msgs []notify.Message
}

func (r *channelRecorder) Send(ctx context.Context, msg notify.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func overdueInvoice(id int64, due time.Time, stage invoicing.OverdueStage) *invoicing.Invoice {
	return &invoicing.Invoice{
		ID:           id,
		TenantID:     1,
		ClientID:     10,
		Number:       "INV-2026-000001",
		Status:       invoicing.StatusSent,
		OverdueStage: stage,
		Currency:     "TZS",
		Subtotal:     decimal.NewFromInt(100000),
		Total:        decimal.NewFromInt(100000),
		DueDate:      due,
	}
}

type testHarness struct {
	invoices *memoryInvoices
	email    *channelRecorder
	sms      *channelRecorder
	audit    *memoryAudit
	engine   *Engine
}

func newHarness(settings tenants.ReminderSettings, invs ...*invoicing.Invoice) *testHarness {
	h := &testHarness{
		invoices: &memoryInvoices{rows: make(map[int64]*invoicing.Invoice)},
		email:    &channelRecorder{},
		sms:      &channelRecorder{},
		audit:    &memoryAudit{},
	}
	for _, inv := range invs {
		h.invoices.rows[inv.ID] = inv
	}
	router := notify.NewRouter(map[notify.Channel]notify.Dispatcher{
		notify.ChannelEmail: h.email,
		notify.ChannelSMS:   h.sms,
	})
	h.engine = NewEngine(h.invoices, stubClients{}, &stubSettings{s: settings}, router, h.audit, discardLogger(), DefaultConfig())
	return h
}

func TestRunSendsOverdueReminderAndAdvancesStage(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -3)
	h := newHarness(tenants.ReminderSettings{EmailReminders: true}, overdueInvoice(1, due, invoicing.StageNone))

	res, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, res.RemindersSent)
	require.Equal(t, invoicing.StageReminderSent, h.invoices.rows[1].OverdueStage)
	require.Len(t, h.email.msgs, 1)
	require.Equal(t, notify.KindReminder, h.email.msgs[0].Kind)
	require.Empty(t, h.sms.msgs)
}

func TestRunHonoursSMSToggle(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -2)
	h := newHarness(tenants.ReminderSettings{EmailReminders: true, SMSReminders: true}, overdueInvoice(1, due, invoicing.StageNone))

	_, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, h.email.msgs, 1)
	require.Len(t, h.sms.msgs, 1)
	require.Equal(t, "+255700000001", h.sms.msgs[0].Recipient)
}

func TestRunAppliesLateFeeAfterThreshold(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -14)
	h := newHarness(tenants.ReminderSettings{EmailReminders: true}, overdueInvoice(1, due, invoicing.StageReminderSent))

	res, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, res.LateFeesApplied)

	inv := h.invoices.rows[1]
	require.Equal(t, invoicing.StageLateFeeApplied, inv.OverdueStage)
	require.True(t, inv.Total.Equal(decimal.NewFromInt(110000)), "total %s", inv.Total)

	require.Len(t, h.audit.logs, 1)
	require.Equal(t, "billing.late_fee_applied", h.audit.logs[0].Action)
	require.Len(t, h.email.msgs, 1)
	require.Equal(t, notify.KindLateFee, h.email.msgs[0].Kind)
}

func TestRunDoesNotApplyLateFeeBeforeThreshold(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -10)
	h := newHarness(tenants.ReminderSettings{EmailReminders: true}, overdueInvoice(1, due, invoicing.StageReminderSent))

	res, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, res.LateFeesApplied)
	require.Equal(t, invoicing.StageReminderSent, h.invoices.rows[1].OverdueStage)
}

func TestRunSendsTerminationWarningOnAllChannels(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -31)
	// SMS disabled in settings: termination warnings ignore the toggles.
	h := newHarness(tenants.ReminderSettings{EmailReminders: true}, overdueInvoice(1, due, invoicing.StageLateFeeApplied))

	res, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, res.TerminationWarnings)
	require.Equal(t, invoicing.StageTerminationWarning, h.invoices.rows[1].OverdueStage)
	require.Len(t, h.email.msgs, 1)
	require.Len(t, h.sms.msgs, 1)
	require.Len(t, h.audit.logs, 1)
	require.Equal(t, "billing.termination_warning", h.audit.logs[0].Action)
}

func TestRunIsIdempotentPerStage(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -3)
	h := newHarness(tenants.ReminderSettings{EmailReminders: true}, overdueInvoice(1, due, invoicing.StageNone))

	res, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, res.RemindersSent)

	// A second pass on the same day finds the stage already advanced and,
	// with only 3 days overdue, nothing else to do.
	res, err = h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, res.RemindersSent)
	require.Zero(t, res.LateFeesApplied)
	require.Len(t, h.email.msgs, 1)
}

func TestRunLeavesTerminalStageAlone(t *testing.T) {
	asOf := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	due := asOf.AddDate(0, 0, -60)
	h := newHarness(tenants.ReminderSettings{EmailReminders: true}, overdueInvoice(1, due, invoicing.StageTerminationWarning))

	res, err := h.engine.Run(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, res.RemindersSent+res.LateFeesApplied+res.TerminationWarnings)
	require.Empty(t, h.email.msgs)
}
