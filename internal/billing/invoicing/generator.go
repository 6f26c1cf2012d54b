package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
	"github.com/moinfo/MoBilling-sub001/internal/billing/ledger"
	"github.com/moinfo/MoBilling-sub001/internal/clients"
	"github.com/moinfo/MoBilling-sub001/internal/notify"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
	"github.com/moinfo/MoBilling-sub001/internal/subscriptions"
)

// SubscriptionSource supplies the billable scan rows.
type SubscriptionSource interface {
	ListBillable(ctx context.Context) ([]subscriptions.BillableRow, error)
}

// LedgerChecker answers the already-billed pre-check.
type LedgerChecker interface {
	Exists(ctx context.Context, key ledger.Key) (bool, error)
}

// AccessChecker gates invoice generation per tenant.
type AccessChecker interface {
	HasBillingAccess(ctx context.Context, tenantID int64) (bool, error)
}

// NumberSource allocates document numbers.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType, tenantID int64, asOf time.Time) (string, error)
}

// ClientSource resolves clients for notification addressing.
type ClientSource interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// GeneratorConfig tunes the generation run.
type GeneratorConfig struct {
	// HorizonDays is how far ahead of asOf a due date may fall and still be
	// billed in this run.
	HorizonDays int
	Currency    string
}

// Generator scans due subscriptions and creates at most one invoice per
// client per run, deduplicated through the recurrence ledger.
type Generator struct {
	repo       RepositoryPort
	subs       SubscriptionSource
	ledger     LedgerChecker
	access     AccessChecker
	numbers    NumberSource
	clients    ClientSource
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	cfg        GeneratorConfig
}

// NewGenerator wires the generator's collaborators.
func NewGenerator(repo RepositoryPort, subs SubscriptionSource, ldg LedgerChecker, access AccessChecker, numbers NumberSource, cls ClientSource, dispatcher notify.Dispatcher, logger *slog.Logger, cfg GeneratorConfig) *Generator {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 30
	}
	if cfg.Currency == "" {
		cfg.Currency = "TZS"
	}
	return &Generator{
		repo:       repo,
		subs:       subs,
		ledger:     ldg,
		access:     access,
		numbers:    numbers,
		clients:    cls,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

type dueRow struct {
	subscriptions.BillableRow
	DueDate time.Time
}

type groupKey struct {
	TenantID int64
	ClientID int64
}

// Run executes one generation pass as of the injected reference time and
// returns the number of invoices created. A failure in one client group is
// logged and never aborts the remaining groups.
func (g *Generator) Run(ctx context.Context, asOf time.Time) (int, error) {
	rows, err := g.subs.ListBillable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list billable subscriptions: %w", err)
	}

	horizon := asOf.AddDate(0, 0, g.cfg.HorizonDays)
	var due []dueRow
	for _, row := range rows {
		dueDate, err := cycle.NextDueDate(row.StartDate, row.Cycle, asOf)
		if err != nil {
			g.logger.Warn("skip subscription with bad cycle",
				slog.Int64("subscription_id", row.SubscriptionID),
				slog.String("cycle", string(row.Cycle)),
				slog.Any("error", err))
			continue
		}
		if dueDate.After(horizon) {
			continue
		}
		billed, err := g.ledger.Exists(ctx, ledger.Key{
			TenantID:  row.TenantID,
			ClientID:  row.ClientID,
			ServiceID: row.ServiceID,
			DueDate:   dueDate,
		})
		if err != nil {
			g.logger.Error("ledger lookup failed",
				slog.Int64("subscription_id", row.SubscriptionID),
				slog.Any("error", err))
			continue
		}
		if billed {
			continue
		}
		due = append(due, dueRow{BillableRow: row, DueDate: dueDate})
	}
	if len(due) == 0 {
		return 0, nil
	}

	// One invoice per client per run, never one per subscription.
	groups := lo.GroupBy(due, func(r dueRow) groupKey {
		return groupKey{TenantID: r.TenantID, ClientID: r.ClientID}
	})
	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TenantID != keys[j].TenantID {
			return keys[i].TenantID < keys[j].TenantID
		}
		return keys[i].ClientID < keys[j].ClientID
	})

	created := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if err := g.generateForClient(ctx, key, groups[key], asOf); err != nil {
			if errors.Is(err, ledger.ErrAlreadyBilled) {
				// A concurrent run won the insert; the period is billed.
				g.logger.Info("client group already billed",
					slog.Int64("tenant_id", key.TenantID),
					slog.Int64("client_id", key.ClientID))
				continue
			}
			g.logger.Error("invoice generation failed for client group",
				slog.Int64("tenant_id", key.TenantID),
				slog.Int64("client_id", key.ClientID),
				slog.Any("error", err))
			continue
		}
		created++
	}
	return created, nil
}

func (g *Generator) generateForClient(ctx context.Context, key groupKey, rows []dueRow, asOf time.Time) error {
	allowed, err := g.access.HasBillingAccess(ctx, key.TenantID)
	if err != nil {
		return fmt.Errorf("tenant access check: %w", err)
	}
	if !allowed {
		return fmt.Errorf("tenant %d has no billing access", key.TenantID)
	}

	client, err := g.clients.Get(ctx, key.ClientID)
	if err != nil {
		return fmt.Errorf("resolve client: %w", err)
	}

	number, err := g.numbers.Next(ctx, numbering.DocTypeInvoice, key.TenantID, asOf)
	if err != nil {
		return fmt.Errorf("allocate invoice number: %w", err)
	}

	inv := Invoice{
		TenantID:     key.TenantID,
		ClientID:     key.ClientID,
		Number:       number,
		Status:       StatusSent,
		OverdueStage: StageNone,
		Currency:     g.cfg.Currency,
		Subtotal:     decimal.Zero,
		TaxAmount:    decimal.Zero,
		Total:        decimal.Zero,
		PaidAmount:   decimal.Zero,
		IssuedAt:     asOf,
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		item := NewItem(row.ServiceID, row.SubscriptionID, row.ServiceName, row.Quantity, row.UnitPrice, row.TaxPercent)
		inv.Items = append(inv.Items, item)
		inv.Subtotal = inv.Subtotal.Add(item.UnitPrice.Mul(item.Quantity))
		inv.TaxAmount = inv.TaxAmount.Add(item.TaxAmount)
		inv.Total = inv.Total.Add(item.LineTotal)

		// Latest due date in the group wins, so the client is never billed
		// before the latest-due item is actually due.
		if row.DueDate.After(inv.DueDate) {
			inv.DueDate = row.DueDate
		}

		entries = append(entries, ledger.Entry{
			TenantID:  row.TenantID,
			ClientID:  row.ClientID,
			ServiceID: row.ServiceID,
			DueDate:   row.DueDate,
			CreatedAt: asOf,
		})
	}

	saved, err := g.repo.CreateWithLedger(ctx, inv, entries)
	if err != nil {
		return err
	}

	subject, body := notify.InvoiceSentBody(client.Name, saved.Number, saved.Currency, saved.Total, saved.DueDate)
	msg := notify.NewMessage(key.TenantID, notify.ChannelEmail, notify.KindInvoiceSent, client.Email, subject, body)
	if err := g.dispatcher.Send(ctx, msg); err != nil {
		// The invoice exists regardless; dispatch is at-most-once.
		g.logger.Warn("invoice notification failed",
			slog.Int64("invoice_id", saved.ID),
			slog.String("number", saved.Number),
			slog.Any("error", err))
	}

	g.logger.Info("invoice generated",
		slog.Int64("invoice_id", saved.ID),
		slog.String("number", saved.Number),
		slog.Int64("client_id", key.ClientID),
		slog.Int("lines", len(saved.Items)),
		slog.Time("due_date", saved.DueDate))
	return nil
}
