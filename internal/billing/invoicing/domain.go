// Package invoicing creates recurring invoices and owns the invoice model.
package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice document statuses.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusPartial  Status = "partial"
	StatusPaid     Status = "paid"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// OverdueStage marks which post-due escalation actions have already fired.
// Stages only ever advance; the field itself is the idempotency guarantee
// for the escalation engine.
type OverdueStage string

const (
	StageNone               OverdueStage = "none"
	StageReminderSent       OverdueStage = "reminder_sent"
	StageLateFeeApplied     OverdueStage = "late_fee_applied"
	StageTerminationWarning OverdueStage = "termination_warning"
)

var stageRank = map[OverdueStage]int{
	StageNone:               0,
	StageReminderSent:       1,
	StageLateFeeApplied:     2,
	StageTerminationWarning: 3,
}

// Before reports whether s precedes other in the escalation sequence.
func (s OverdueStage) Before(other OverdueStage) bool {
	return stageRank[s] < stageRank[other]
}

// Invoice is a billing document of type invoice.
type Invoice struct {
	ID           int64
	TenantID     int64
	ClientID     int64
	Number       string
	Status       Status
	OverdueStage OverdueStage
	Currency     string
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	Total        decimal.Decimal
	PaidAmount   decimal.Decimal
	DueDate      time.Time
	IssuedAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Items        []Item
}

// Balance returns the unpaid remainder.
func (i Invoice) Balance() decimal.Decimal {
	return i.Total.Sub(i.PaidAmount)
}

// Unpaid reports whether the invoice still carries a balance the schedulers
// should act on.
func (i Invoice) Unpaid() bool {
	return i.Status != StatusPaid && i.Status != StatusRejected
}

// Item is one invoice line.
type Item struct {
	ID             int64
	InvoiceID      int64
	ServiceID      int64
	SubscriptionID int64
	Description    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxPercent     decimal.Decimal
	TaxAmount      decimal.Decimal
	LineTotal      decimal.Decimal
}

// NewItem computes the derived line amounts: tax = price*qty*(tax%/100),
// line total = price*qty + tax.
func NewItem(serviceID, subscriptionID int64, description string, qty, unitPrice, taxPercent decimal.Decimal) Item {
	base := unitPrice.Mul(qty)
	tax := base.Mul(taxPercent).Div(decimal.NewFromInt(100)).Round(2)
	return Item{
		ServiceID:      serviceID,
		SubscriptionID: subscriptionID,
		Description:    description,
		Quantity:       qty,
		UnitPrice:      unitPrice,
		TaxPercent:     taxPercent,
		TaxAmount:      tax,
		LineTotal:      base.Add(tax),
	}
}
