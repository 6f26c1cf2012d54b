// Package statutory manages fixed recurring obligations (taxes, levies,
// licences) and the bills they generate each period.
package statutory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
)

// Obligation is a fixed recurring liability.
type Obligation struct {
	ID          int64
	TenantID    int64
	Name        string
	Amount      decimal.Decimal
	Cycle       cycle.Cycle
	NextDueDate time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BillStatus enumerates statutory bill states.
type BillStatus string

const (
	BillStatusPending BillStatus = "pending"
	BillStatusPaid    BillStatus = "paid"
)

// Bill is one period's liability for an obligation.
type Bill struct {
	ID           int64
	TenantID     int64
	ObligationID int64
	Number       string
	Amount       decimal.Decimal
	DueDate      time.Time
	Status       BillStatus
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
