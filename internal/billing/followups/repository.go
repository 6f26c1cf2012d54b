package followups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the followup does not exist.
var ErrNotFound = errors.New("followups: not found")

// TxPort exposes the operations available inside a transaction. LogCall
// mutates the logged row and inserts its successor atomically.
type TxPort interface {
	Create(ctx context.Context, f Followup) (*Followup, error)
	Update(ctx context.Context, f Followup) error
	CountLoggedCalls(ctx context.Context, invoiceID int64) (int, error)
}

// RepositoryPort defines followup data access.
type RepositoryPort interface {
	TxPort
	WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error
	Get(ctx context.Context, id int64) (*Followup, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]Followup, error)
	GetActiveByInvoice(ctx context.Context, invoiceID int64) (*Followup, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const followupColumns = `id, tenant_id, invoice_id, client_id, assigned_to, call_date, outcome, notes, promise_date, promise_amount, next_followup, status, created_at, updated_at`

func scanFollowup(row pgx.Row) (*Followup, error) {
	var f Followup
	err := row.Scan(&f.ID, &f.TenantID, &f.InvoiceID, &f.ClientID, &f.AssignedTo, &f.CallDate, &f.Outcome,
		&f.Notes, &f.PromiseDate, &f.PromiseAmount, &f.NextFollowup, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// Get returns one followup by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Followup, error) {
	return scanFollowup(r.pool.QueryRow(ctx, `SELECT `+followupColumns+` FROM followups WHERE id = $1`, id))
}

// ListByInvoice returns the call chain for an invoice, oldest first.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceID int64) ([]Followup, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+followupColumns+` FROM followups WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chain []Followup
	for rows.Next() {
		f, err := scanFollowup(rows)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *f)
	}
	return chain, rows.Err()
}

// GetActiveByInvoice returns the invoice's live row, or ErrNotFound.
func (r *Repository) GetActiveByInvoice(ctx context.Context, invoiceID int64) (*Followup, error) {
	return scanFollowup(r.pool.QueryRow(ctx, `SELECT `+followupColumns+` FROM followups
WHERE invoice_id = $1 AND status IN ('pending', 'open') AND next_followup IS NOT NULL
ORDER BY id DESC LIMIT 1`, invoiceID))
}

// Create inserts a followup outside a transaction.
func (r *Repository) Create(ctx context.Context, f Followup) (*Followup, error) {
	return create(ctx, r.pool, f)
}

// Update persists the mutable fields of a followup.
func (r *Repository) Update(ctx context.Context, f Followup) error {
	return update(ctx, r.pool, f)
}

// CountLoggedCalls counts rows with a recorded call for the invoice.
func (r *Repository) CountLoggedCalls(ctx context.Context, invoiceID int64) (int, error) {
	return countLoggedCalls(ctx, r.pool, invoiceID)
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) Create(ctx context.Context, f Followup) (*Followup, error) {
	return create(ctx, t.tx, f)
}

func (t *txRepo) Update(ctx context.Context, f Followup) error {
	return update(ctx, t.tx, f)
}

func (t *txRepo) CountLoggedCalls(ctx context.Context, invoiceID int64) (int, error) {
	return countLoggedCalls(ctx, t.tx, invoiceID)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func create(ctx context.Context, q dbtx, f Followup) (*Followup, error) {
	err := q.QueryRow(ctx, `INSERT INTO followups (tenant_id, invoice_id, client_id, assigned_to, call_date, outcome, notes, promise_date, promise_amount, next_followup, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		f.TenantID, f.InvoiceID, f.ClientID, f.AssignedTo, f.CallDate, f.Outcome, f.Notes,
		f.PromiseDate, f.PromiseAmount, f.NextFollowup, f.Status).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func update(ctx context.Context, q dbtx, f Followup) error {
	tag, err := q.Exec(ctx, `UPDATE followups
SET call_date = $2, outcome = $3, notes = $4, promise_date = $5, promise_amount = $6, next_followup = $7, status = $8, updated_at = NOW()
WHERE id = $1`,
		f.ID, f.CallDate, f.Outcome, f.Notes, f.PromiseDate, f.PromiseAmount, f.NextFollowup, f.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func countLoggedCalls(ctx context.Context, q dbtx, invoiceID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM followups WHERE invoice_id = $1 AND call_date IS NOT NULL`, invoiceID).Scan(&n)
	return n, err
}
