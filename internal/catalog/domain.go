// Package catalog holds the billable products and services.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
)

// Service is a billable product or service. Price, tax and cycle are treated
// as immutable during a billing run.
type Service struct {
	ID         int64
	TenantID   int64
	Name       string
	Price      decimal.Decimal
	TaxPercent decimal.Decimal
	Cycle      cycle.Cycle
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
