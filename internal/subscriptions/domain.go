// Package subscriptions manages client subscriptions to recurring services.
package subscriptions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
)

// Status enumerates subscription lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusSuspended Status = "suspended"
)

// Subscription links a client to a service. The billing engine only ever
// reads subscriptions; mutation happens through the CRUD service.
type Subscription struct {
	ID        int64
	TenantID  int64
	ClientID  int64
	ServiceID int64
	Quantity  decimal.Decimal
	StartDate time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BillableRow is a subscription joined with the pricing fields the invoice
// generator needs, so one scan query feeds the whole run.
type BillableRow struct {
	SubscriptionID int64
	TenantID       int64
	ClientID       int64
	ServiceID      int64
	ServiceName    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxPercent     decimal.Decimal
	Cycle          cycle.Cycle
	StartDate      time.Time
}
