// Package payments records client payments against invoices and drives the
// resulting status transitions.
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one receipt against an invoice.
type Payment struct {
	ID        int64
	TenantID  int64
	InvoiceID int64
	Number    string
	Amount    decimal.Decimal
	Method    string
	Reference string
	PaidAt    time.Time
	CreatedAt time.Time
}
