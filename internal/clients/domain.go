// Package clients holds the billed parties.
package clients

import "time"

// Client is a billable customer belonging to a tenant.
type Client struct {
	ID        int64
	TenantID  int64
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
