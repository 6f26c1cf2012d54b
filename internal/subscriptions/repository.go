package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the subscription does not exist.
var ErrNotFound = errors.New("subscriptions: not found")

// RepositoryPort defines data access for subscriptions.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Subscription, error)
	Create(ctx context.Context, sub Subscription) (*Subscription, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ListByClient(ctx context.Context, clientID int64) ([]Subscription, error)
	ListBillable(ctx context.Context) ([]BillableRow, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns one subscription by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Subscription, error) {
	var s Subscription
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, client_id, service_id, quantity, start_date, status, created_at, updated_at
FROM subscriptions WHERE id = $1`, id).Scan(&s.ID, &s.TenantID, &s.ClientID, &s.ServiceID, &s.Quantity, &s.StartDate, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new subscription.
func (r *Repository) Create(ctx context.Context, sub Subscription) (*Subscription, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO subscriptions (tenant_id, client_id, service_id, quantity, start_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id, created_at, updated_at`,
		sub.TenantID, sub.ClientID, sub.ServiceID, sub.Quantity, sub.StartDate, sub.Status, now).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateStatus sets the subscription status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByClient returns all subscriptions for a client.
func (r *Repository) ListByClient(ctx context.Context, clientID int64) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, client_id, service_id, quantity, start_date, status, created_at, updated_at
FROM subscriptions WHERE client_id = $1 ORDER BY id`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ClientID, &s.ServiceID, &s.Quantity, &s.StartDate, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListBillable returns active subscriptions joined with active, recurring
// services. One-off services never enter the scan.
func (r *Repository) ListBillable(ctx context.Context) ([]BillableRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.tenant_id, s.client_id, s.service_id, sv.name, s.quantity, sv.price, sv.tax_percent, sv.billing_cycle, s.start_date
FROM subscriptions s
JOIN services sv ON sv.id = s.service_id
WHERE s.status = 'active' AND sv.active AND sv.billing_cycle <> 'once'
ORDER BY s.tenant_id, s.client_id, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var billable []BillableRow
	for rows.Next() {
		var b BillableRow
		if err := rows.Scan(&b.SubscriptionID, &b.TenantID, &b.ClientID, &b.ServiceID, &b.ServiceName, &b.Quantity, &b.UnitPrice, &b.TaxPercent, &b.Cycle, &b.StartDate); err != nil {
			return nil, err
		}
		billable = append(billable, b)
	}
	return billable, rows.Err()
}
