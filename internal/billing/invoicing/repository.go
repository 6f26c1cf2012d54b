package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/ledger"
	"github.com/moinfo/MoBilling-sub001/internal/platform/db"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = errors.New("invoicing: not found")
	// ErrStagePassed indicates the conditional stage update matched no row,
	// i.e. another run already advanced the invoice (or it got paid).
	ErrStagePassed = errors.New("invoicing: overdue stage already advanced")
)

// LedgerTxWriter writes ledger entries inside the invoice transaction.
type LedgerTxWriter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, entry ledger.Entry) error
}

// RepositoryPort defines invoice data access.
type RepositoryPort interface {
	CreateWithLedger(ctx context.Context, inv Invoice, entries []ledger.Entry) (*Invoice, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]Invoice, error)
	AdvanceStage(ctx context.Context, id int64, from, to OverdueStage) error
	ApplyLateFee(ctx context.Context, id int64, fee decimal.Decimal) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool     *pgxpool.Pool
	ledgerTx LedgerTxWriter
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, ledgerTx LedgerTxWriter) *Repository {
	return &Repository{pool: pool, ledgerTx: ledgerTx}
}

// CreateWithLedger persists the invoice, its items and the ledger entries in
// one transaction. A ledger unique violation aborts the transaction and
// surfaces as ledger.ErrAlreadyBilled.
func (r *Repository) CreateWithLedger(ctx context.Context, inv Invoice, entries []ledger.Entry) (*Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO invoices (tenant_id, client_id, number, status, overdue_stage, currency, subtotal, tax_amount, total, paid_amount, due_date, issued_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13) RETURNING id, created_at, updated_at`,
			inv.TenantID, inv.ClientID, inv.Number, inv.Status, inv.OverdueStage, inv.Currency,
			inv.Subtotal, inv.TaxAmount, inv.Total, inv.PaidAmount, inv.DueDate, inv.IssuedAt, inv.IssuedAt).
			Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range inv.Items {
			item := &inv.Items[i]
			item.InvoiceID = inv.ID
			err := tx.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, service_id, subscription_id, description, quantity, unit_price, tax_percent, tax_amount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
				item.InvoiceID, item.ServiceID, item.SubscriptionID, item.Description,
				item.Quantity, item.UnitPrice, item.TaxPercent, item.TaxAmount, item.LineTotal).
				Scan(&item.ID)
			if err != nil {
				return err
			}
		}
		for i := range entries {
			entries[i].InvoiceID = inv.ID
			if err := r.ledgerTx.InsertTx(ctx, tx, entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

const invoiceColumns = `id, tenant_id, client_id, number, status, overdue_stage, currency, subtotal, tax_amount, total, paid_amount, due_date, issued_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.ClientID, &inv.Number, &inv.Status, &inv.OverdueStage,
		&inv.Currency, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.PaidAmount,
		&inv.DueDate, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Get returns one invoice without items.
func (r *Repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

// ListOverdueUnpaid returns unpaid invoices past their due date, oldest
// first.
func (r *Repository) ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE status NOT IN ('paid', 'rejected') AND due_date < $1 ORDER BY due_date, id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// AdvanceStage moves the overdue stage forward, guarded in SQL so that a
// re-run or a paid invoice is a no-op surfaced as ErrStagePassed.
func (r *Repository) AdvanceStage(ctx context.Context, id int64, from, to OverdueStage) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET overdue_stage = $3, updated_at = NOW()
WHERE id = $1 AND overdue_stage = $2 AND status NOT IN ('paid', 'rejected')`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStagePassed
	}
	return nil
}

// ApplyLateFee adds the fee to the total and advances the stage in a single
// statement, so the fee can be applied at most once.
func (r *Repository) ApplyLateFee(ctx context.Context, id int64, fee decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices
SET total = total + $2, overdue_stage = $3, updated_at = NOW()
WHERE id = $1 AND overdue_stage = $4 AND status NOT IN ('paid', 'rejected')`,
		id, fee, StageLateFeeApplied, StageReminderSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStagePassed
	}
	return nil
}
