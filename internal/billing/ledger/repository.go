package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// InvoiceReminderState aggregates the ledger rows of one unpaid invoice for
// the reminder scheduler: the union of offsets already sent across all
// entries sharing the invoice.
type InvoiceReminderState struct {
	InvoiceID   int64
	TenantID    int64
	ClientID    int64
	DueDate     time.Time
	OffsetsSent []int32
}

// RepositoryPort defines ledger data access.
type RepositoryPort interface {
	Exists(ctx context.Context, key Key) (bool, error)
	InsertTx(ctx context.Context, tx pgx.Tx, entry Entry) error
	ListUnpaidInvoiceStates(ctx context.Context) ([]InvoiceReminderState, error)
	AppendReminderOffset(ctx context.Context, invoiceID int64, offset int32) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether the key is already ledgered. This is the cheap
// pre-check; the unique index remains the authority under races.
func (r *Repository) Exists(ctx context.Context, key Key) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM recurrence_ledger WHERE tenant_id = $1 AND client_id = $2 AND service_id = $3 AND due_date = $4)`,
		key.TenantID, key.ClientID, key.ServiceID, key.DueDate).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// InsertTx writes an entry inside the invoice-creation transaction. A unique
// violation on the period key maps to ErrAlreadyBilled so a concurrent
// sweep's loser fails cleanly.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, entry Entry) error {
	_, err := tx.Exec(ctx, `INSERT INTO recurrence_ledger (tenant_id, client_id, service_id, invoice_id, due_date, reminders_sent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.TenantID, entry.ClientID, entry.ServiceID, entry.InvoiceID, entry.DueDate, entry.RemindersSent, entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyBilled
		}
		return err
	}
	return nil
}

// ListUnpaidInvoiceStates returns one row per unpaid invoice referenced by
// the ledger, with the union of reminder offsets already sent.
func (r *Repository) ListUnpaidInvoiceStates(ctx context.Context) ([]InvoiceReminderState, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.invoice_id, l.tenant_id, l.client_id, l.due_date,
COALESCE(array_agg(DISTINCT o.offset_sent) FILTER (WHERE o.offset_sent IS NOT NULL), '{}')
FROM recurrence_ledger l
JOIN invoices i ON i.id = l.invoice_id
LEFT JOIN LATERAL unnest(l.reminders_sent) AS o(offset_sent) ON TRUE
WHERE i.status NOT IN ('paid', 'rejected')
GROUP BY l.invoice_id, l.tenant_id, l.client_id, l.due_date
ORDER BY l.due_date, l.invoice_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []InvoiceReminderState
	for rows.Next() {
		var s InvoiceReminderState
		if err := rows.Scan(&s.InvoiceID, &s.TenantID, &s.ClientID, &s.DueDate, &s.OffsetsSent); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// AppendReminderOffset records the offset on every ledger entry sharing the
// invoice, skipping entries that already carry it.
func (r *Repository) AppendReminderOffset(ctx context.Context, invoiceID int64, offset int32) error {
	_, err := r.pool.Exec(ctx, `UPDATE recurrence_ledger
SET reminders_sent = array_append(reminders_sent, $2)
WHERE invoice_id = $1 AND NOT ($2 = ANY(reminders_sent))`, invoiceID, offset)
	return err
}
