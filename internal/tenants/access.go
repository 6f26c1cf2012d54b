// Package tenants exposes the tenant billing-access gate consulted before
// generating invoices.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the tenant does not exist.
var ErrNotFound = errors.New("tenants: not found")

// accessTTL bounds how stale a cached access decision may be. A tenant whose
// trial expires mid-sweep is caught on the next sweep at the latest.
const accessTTL = 5 * time.Minute

// ReminderSettings are the per-tenant notification toggles. Termination
// warnings are sent regardless of these toggles.
type ReminderSettings struct {
	EmailReminders bool
	SMSReminders   bool
}

// Directory answers tenant account questions from the system of record.
type Directory interface {
	BillingAccess(ctx context.Context, tenantID int64) (bool, error)
	ReminderSettings(ctx context.Context, tenantID int64) (ReminderSettings, error)
}

// PGDirectory reads tenant records from PostgreSQL.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory constructs a PGDirectory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// BillingAccess reports whether the tenant's subscription or trial is current.
func (d *PGDirectory) BillingAccess(ctx context.Context, tenantID int64) (bool, error) {
	var active bool
	var expiresAt *time.Time
	err := d.pool.QueryRow(ctx, `SELECT active, subscription_expires_at FROM tenants WHERE id = $1`, tenantID).
		Scan(&active, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	if !active {
		return false, nil
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return false, nil
	}
	return true, nil
}

// ReminderSettings returns the tenant's notification toggles.
func (d *PGDirectory) ReminderSettings(ctx context.Context, tenantID int64) (ReminderSettings, error) {
	var s ReminderSettings
	err := d.pool.QueryRow(ctx, `SELECT email_reminders, sms_reminders FROM tenants WHERE id = $1`, tenantID).
		Scan(&s.EmailReminders, &s.SMSReminders)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, ErrNotFound
		}
		return s, err
	}
	return s, nil
}

// AccessChecker answers whether a tenant may generate billing documents,
// caching decisions in Redis.
type AccessChecker struct {
	dir   Directory
	redis *redis.Client
}

// NewAccessChecker constructs an AccessChecker. The redis client is optional;
// without it every check hits the directory.
func NewAccessChecker(dir Directory, rdb *redis.Client) *AccessChecker {
	return &AccessChecker{dir: dir, redis: rdb}
}

// HasBillingAccess reports whether the tenant may generate billing documents.
func (c *AccessChecker) HasBillingAccess(ctx context.Context, tenantID int64) (bool, error) {
	key := fmt.Sprintf("tenant:%d:billing_access", tenantID)
	if c.redis != nil {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			return cached == "1", nil
		}
		if !errors.Is(err, redis.Nil) {
			// Cache trouble is not a reason to block billing.
			return c.dir.BillingAccess(ctx, tenantID)
		}
	}
	allowed, err := c.dir.BillingAccess(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if c.redis != nil {
		val := "0"
		if allowed {
			val = "1"
		}
		_ = c.redis.Set(ctx, key, val, accessTTL).Err()
	}
	return allowed, nil
}

// Settings returns the tenant's reminder toggles, uncached: toggles change
// rarely but must take effect on the very next escalation pass.
func (c *AccessChecker) Settings(ctx context.Context, tenantID int64) (ReminderSettings, error) {
	return c.dir.ReminderSettings(ctx, tenantID)
}
