package payments

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/platform/db"
)

// RepositoryPort defines payment data access.
type RepositoryPort interface {
	RecordInvoicePayment(ctx context.Context, p Payment, newStatus invoicing.Status) (*Payment, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordInvoicePayment inserts the payment and applies the paid amount and
// new status to the invoice in one transaction.
func (r *Repository) RecordInvoicePayment(ctx context.Context, p Payment, newStatus invoicing.Status) (*Payment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO payments (tenant_id, invoice_id, number, amount, method, reference, paid_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id, created_at`,
			p.TenantID, p.InvoiceID, p.Number, p.Amount, p.Method, p.Reference, p.PaidAt).
			Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE invoices SET paid_amount = paid_amount + $2, status = $3, updated_at = NOW() WHERE id = $1`,
			p.InvoiceID, p.Amount, newStatus)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByInvoice returns payments for an invoice, oldest first.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, invoice_id, number, amount, method, reference, paid_at, created_at
FROM payments WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceID, &p.Number, &p.Amount, &p.Method, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
