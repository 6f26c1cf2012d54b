// Package escalation drives the forward-only overdue state machine:
// none -> reminder_sent -> late_fee_applied -> termination_warning.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/clients"
	"github.com/moinfo/MoBilling-sub001/internal/notify"
	"github.com/moinfo/MoBilling-sub001/internal/shared"
	"github.com/moinfo/MoBilling-sub001/internal/tenants"
)

// InvoiceStore is the slice of invoice persistence the engine mutates.
type InvoiceStore interface {
	ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]invoicing.Invoice, error)
	AdvanceStage(ctx context.Context, id int64, from, to invoicing.OverdueStage) error
	ApplyLateFee(ctx context.Context, id int64, fee decimal.Decimal) error
}

// ClientSource resolves clients for notification addressing.
type ClientSource interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// SettingsSource supplies per-tenant reminder toggles.
type SettingsSource interface {
	Settings(ctx context.Context, tenantID int64) (tenants.ReminderSettings, error)
}

// AuditPort records escalation actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Config tunes the escalation thresholds.
type Config struct {
	// LateFeeAfterDays is the overdue age at which the late fee applies.
	LateFeeAfterDays int
	// TerminationAfterDays is the overdue age at which the termination
	// warning goes out on every channel.
	TerminationAfterDays int
	// LateFeePercent of the invoice total, applied once.
	LateFeePercent decimal.Decimal
}

// DefaultConfig mirrors the standing collections policy.
func DefaultConfig() Config {
	return Config{
		LateFeeAfterDays:     14,
		TerminationAfterDays: 30,
		LateFeePercent:       decimal.NewFromInt(10),
	}
}

// Engine advances overdue invoices through the escalation stages. The stage
// field on the invoice is the sole idempotency guard: each transition is a
// conditional update, so a re-run of the scan is a no-op once a stage has
// been reached.
type Engine struct {
	invoices InvoiceStore
	clients  ClientSource
	settings SettingsSource
	router   *notify.Router
	audit    AuditPort
	logger   *slog.Logger
	cfg      Config
}

// NewEngine wires the engine's collaborators.
func NewEngine(invoices InvoiceStore, cls ClientSource, settings SettingsSource, router *notify.Router, audit AuditPort, logger *slog.Logger, cfg Config) *Engine {
	if cfg.LateFeeAfterDays <= 0 {
		cfg.LateFeeAfterDays = 14
	}
	if cfg.TerminationAfterDays <= cfg.LateFeeAfterDays {
		cfg.TerminationAfterDays = cfg.LateFeeAfterDays + 16
	}
	if cfg.LateFeePercent.IsZero() {
		cfg.LateFeePercent = decimal.NewFromInt(10)
	}
	return &Engine{invoices: invoices, clients: cls, settings: settings, router: router, audit: audit, logger: logger, cfg: cfg}
}

// Result summarises one escalation pass.
type Result struct {
	RemindersSent       int
	LateFeesApplied     int
	TerminationWarnings int
}

// Run examines every unpaid overdue invoice and performs at most one stage
// transition per invoice per pass. Per-invoice failures are logged and the
// pass continues.
func (e *Engine) Run(ctx context.Context, asOf time.Time) (Result, error) {
	var res Result
	invoices, err := e.invoices.ListOverdueUnpaid(ctx, asOf)
	if err != nil {
		return res, fmt.Errorf("list overdue invoices: %w", err)
	}
	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.escalate(ctx, inv, asOf, &res); err != nil {
			if errors.Is(err, invoicing.ErrStagePassed) {
				continue
			}
			e.logger.Error("escalation failed",
				slog.Int64("invoice_id", inv.ID),
				slog.String("stage", string(inv.OverdueStage)),
				slog.Any("error", err))
		}
	}
	return res, nil
}

func (e *Engine) escalate(ctx context.Context, inv invoicing.Invoice, asOf time.Time, res *Result) error {
	if !inv.Unpaid() {
		return nil
	}
	daysOverdue := daysPast(asOf, inv.DueDate)
	if daysOverdue < 1 {
		return nil
	}

	switch inv.OverdueStage {
	case invoicing.StageNone:
		return e.sendOverdueReminder(ctx, inv, daysOverdue, res)
	case invoicing.StageReminderSent:
		if daysOverdue < e.cfg.LateFeeAfterDays {
			return nil
		}
		return e.applyLateFee(ctx, inv, res)
	case invoicing.StageLateFeeApplied:
		if daysOverdue < e.cfg.TerminationAfterDays {
			return nil
		}
		return e.sendTerminationWarning(ctx, inv, res)
	case invoicing.StageTerminationWarning:
		return nil
	default:
		return fmt.Errorf("unknown overdue stage %q", string(inv.OverdueStage))
	}
}

func (e *Engine) sendOverdueReminder(ctx context.Context, inv invoicing.Invoice, daysOverdue int, res *Result) error {
	// Record the transition first; losing a notification is preferable to
	// sending it twice.
	if err := e.invoices.AdvanceStage(ctx, inv.ID, invoicing.StageNone, invoicing.StageReminderSent); err != nil {
		return err
	}
	client, err := e.clients.Get(ctx, inv.ClientID)
	if err != nil {
		return fmt.Errorf("resolve client: %w", err)
	}
	settings, err := e.settings.Settings(ctx, inv.TenantID)
	if err != nil {
		e.logger.Warn("tenant settings lookup failed, defaulting to email",
			slog.Int64("tenant_id", inv.TenantID), slog.Any("error", err))
		settings = tenants.ReminderSettings{EmailReminders: true}
	}

	subject, body := notify.OverdueBody(client.Name, inv.Number, inv.Currency, inv.Balance(), daysOverdue)
	if settings.EmailReminders {
		e.send(ctx, inv, notify.ChannelEmail, notify.KindReminder, client.Email, subject, body)
	}
	if settings.SMSReminders {
		e.send(ctx, inv, notify.ChannelSMS, notify.KindReminder, client.Phone, subject, body)
	}
	res.RemindersSent++
	return nil
}

func (e *Engine) applyLateFee(ctx context.Context, inv invoicing.Invoice, res *Result) error {
	fee := inv.Total.Mul(e.cfg.LateFeePercent).Div(decimal.NewFromInt(100)).Round(2)
	if err := e.invoices.ApplyLateFee(ctx, inv.ID, fee); err != nil {
		return err
	}
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			Action:   "billing.late_fee_applied",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", inv.ID),
			Meta:     map[string]any{"fee": fee.String(), "number": inv.Number},
		})
	}
	client, err := e.clients.Get(ctx, inv.ClientID)
	if err != nil {
		return fmt.Errorf("resolve client: %w", err)
	}
	subject, body := notify.LateFeeBody(client.Name, inv.Number, inv.Currency, fee, inv.Total.Add(fee))
	e.send(ctx, inv, notify.ChannelEmail, notify.KindLateFee, client.Email, subject, body)

	e.logger.Info("late fee applied",
		slog.Int64("invoice_id", inv.ID),
		slog.String("number", inv.Number),
		slog.String("fee", fee.String()))
	res.LateFeesApplied++
	return nil
}

func (e *Engine) sendTerminationWarning(ctx context.Context, inv invoicing.Invoice, res *Result) error {
	if err := e.invoices.AdvanceStage(ctx, inv.ID, invoicing.StageLateFeeApplied, invoicing.StageTerminationWarning); err != nil {
		return err
	}
	client, err := e.clients.Get(ctx, inv.ClientID)
	if err != nil {
		return fmt.Errorf("resolve client: %w", err)
	}
	subject, body := notify.TerminationWarningBody(client.Name, inv.Number, inv.Currency, inv.Balance())
	// Every enabled channel, regardless of per-tenant reminder toggles.
	for _, ch := range e.router.Channels() {
		recipient := client.Email
		if ch == notify.ChannelSMS {
			recipient = client.Phone
		}
		e.send(ctx, inv, ch, notify.KindTerminationWarning, recipient, subject, body)
	}
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			Action:   "billing.termination_warning",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", inv.ID),
			Meta:     map[string]any{"number": inv.Number},
		})
	}
	res.TerminationWarnings++
	return nil
}

func (e *Engine) send(ctx context.Context, inv invoicing.Invoice, ch notify.Channel, kind notify.Kind, recipient, subject, body string) {
	msg := notify.NewMessage(inv.TenantID, ch, kind, recipient, subject, body)
	if err := e.router.Send(ctx, msg); err != nil {
		e.logger.Warn("escalation notification failed",
			slog.Int64("invoice_id", inv.ID),
			slog.String("channel", string(ch)),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
	}
}

// daysPast returns whole calendar days the due date lies behind asOf.
func daysPast(asOf, due time.Time) int {
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(d).Hours() / 24)
}
