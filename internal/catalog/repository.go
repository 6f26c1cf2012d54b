package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the service does not exist.
var ErrNotFound = errors.New("catalog: service not found")

// Repository provides PostgreSQL backed access to services.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns one service by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Service, error) {
	var s Service
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, price, tax_percent, billing_cycle, active, created_at, updated_at
FROM services WHERE id = $1`, id).Scan(&s.ID, &s.TenantID, &s.Name, &s.Price, &s.TaxPercent, &s.Cycle, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListActive returns active services for a tenant.
func (r *Repository) ListActive(ctx context.Context, tenantID int64) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, name, price, tax_percent, billing_cycle, active, created_at, updated_at
FROM services WHERE tenant_id = $1 AND active ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.Price, &s.TaxPercent, &s.Cycle, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}
