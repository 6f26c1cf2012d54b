package statutory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("statutory: not found")
	// ErrBillExists indicates a bill for (obligation, due date) is already
	// generated; callers treat it as already processed.
	ErrBillExists = errors.New("statutory: bill already generated for period")
)

const uniqueViolation = "23505"

// RepositoryPort defines statutory data access.
type RepositoryPort interface {
	GetObligation(ctx context.Context, id int64) (*Obligation, error)
	ListDueObligations(ctx context.Context, horizon time.Time) ([]Obligation, error)
	CreateBill(ctx context.Context, bill Bill) (*Bill, error)
	GetBill(ctx context.Context, id int64) (*Bill, error)
	MarkBillPaid(ctx context.Context, id int64, paidAt time.Time) error
	AdvanceObligation(ctx context.Context, id int64, nextDue time.Time) error
	DeactivateObligation(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetObligation returns one obligation by id.
func (r *Repository) GetObligation(ctx context.Context, id int64) (*Obligation, error) {
	var o Obligation
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, amount, billing_cycle, next_due_date, active, created_at, updated_at
FROM statutory_obligations WHERE id = $1`, id).
		Scan(&o.ID, &o.TenantID, &o.Name, &o.Amount, &o.Cycle, &o.NextDueDate, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// ListDueObligations returns active obligations due on or before the horizon.
func (r *Repository) ListDueObligations(ctx context.Context, horizon time.Time) ([]Obligation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, name, amount, billing_cycle, next_due_date, active, created_at, updated_at
FROM statutory_obligations WHERE active AND next_due_date <= $1 ORDER BY next_due_date, id`, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var obligations []Obligation
	for rows.Next() {
		var o Obligation
		if err := rows.Scan(&o.ID, &o.TenantID, &o.Name, &o.Amount, &o.Cycle, &o.NextDueDate, &o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	return obligations, rows.Err()
}

// CreateBill inserts a bill; the unique index on (obligation_id, due_date)
// maps to ErrBillExists.
func (r *Repository) CreateBill(ctx context.Context, bill Bill) (*Bill, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO statutory_bills (tenant_id, obligation_id, number, amount, due_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		bill.TenantID, bill.ObligationID, bill.Number, bill.Amount, bill.DueDate, bill.Status).
		Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrBillExists
		}
		return nil, err
	}
	return &bill, nil
}

// GetBill returns one bill by id.
func (r *Repository) GetBill(ctx context.Context, id int64) (*Bill, error) {
	var b Bill
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, obligation_id, number, amount, due_date, status, paid_at, created_at, updated_at
FROM statutory_bills WHERE id = $1`, id).
		Scan(&b.ID, &b.TenantID, &b.ObligationID, &b.Number, &b.Amount, &b.DueDate, &b.Status, &b.PaidAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// MarkBillPaid records full payment of a bill.
func (r *Repository) MarkBillPaid(ctx context.Context, id int64, paidAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE statutory_bills SET status = 'paid', paid_at = $2, updated_at = NOW()
WHERE id = $1 AND status <> 'paid'`, id, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceObligation moves the obligation's next due date forward.
func (r *Repository) AdvanceObligation(ctx context.Context, id int64, nextDue time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE statutory_obligations SET next_due_date = $2, updated_at = NOW() WHERE id = $1`, id, nextDue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateObligation retires a one-off obligation after payment.
func (r *Repository) DeactivateObligation(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE statutory_obligations SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
