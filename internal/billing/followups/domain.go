// Package followups tracks collections calls against unpaid invoices: a
// bounded-retry state machine operated by human agents, capped at three
// logged calls before mandatory escalation.
package followups

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxCallAttempts is the hard cap on logged calls per invoice. Hitting it
// forces the chain into the escalated terminal state.
const MaxCallAttempts = 3

// Status enumerates followup states. pending and open are the live states;
// the rest are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOpen      Status = "open"
	StatusFulfilled Status = "fulfilled"
	StatusBroken    Status = "broken"
	StatusEscalated Status = "escalated"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends the row's life.
func (s Status) Terminal() bool {
	switch s {
	case StatusFulfilled, StatusBroken, StatusEscalated, StatusCancelled:
		return true
	}
	return false
}

// Outcome enumerates call results.
type Outcome string

const (
	OutcomePromised       Outcome = "promised"
	OutcomeDeclined       Outcome = "declined"
	OutcomeNoAnswer       Outcome = "no_answer"
	OutcomeDisputed       Outcome = "disputed"
	OutcomePartialPayment Outcome = "partial_payment"
)

// Valid reports whether the outcome is a known enum value.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePromised, OutcomeDeclined, OutcomeNoAnswer, OutcomeDisputed, OutcomePartialPayment:
		return true
	}
	return false
}

// Followup is one collections-call record in a per-invoice chain. The row
// with a non-nil NextFollowup is the chain's single active row.
type Followup struct {
	ID            int64
	TenantID      int64
	InvoiceID     int64
	ClientID      int64
	AssignedTo    int64
	CallDate      *time.Time
	Outcome       *Outcome
	Notes         string
	PromiseDate   *time.Time
	PromiseAmount *decimal.Decimal
	NextFollowup  *time.Time
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the row is the chain's live contact point.
func (f Followup) Active() bool {
	return (f.Status == StatusPending || f.Status == StatusOpen) && f.NextFollowup != nil
}

// NextContactDate computes the auto-reschedule date for a logged call. The
// outcome table is exhaustive; collections cadence depends on these exact
// intervals:
//
//	promised        -> promise date + 1 day (or call + 3 days without one)
//	no_answer       -> call + 2 days
//	declined        -> call + 5 days
//	disputed        -> call + 5 days
//	partial_payment -> call + 7 days
func NextContactDate(outcome Outcome, callDate time.Time, promiseDate *time.Time) (time.Time, error) {
	switch outcome {
	case OutcomePromised:
		if promiseDate != nil {
			return promiseDate.AddDate(0, 0, 1), nil
		}
		return callDate.AddDate(0, 0, 3), nil
	case OutcomeNoAnswer:
		return callDate.AddDate(0, 0, 2), nil
	case OutcomeDeclined:
		return callDate.AddDate(0, 0, 5), nil
	case OutcomeDisputed:
		return callDate.AddDate(0, 0, 5), nil
	case OutcomePartialPayment:
		return callDate.AddDate(0, 0, 7), nil
	default:
		return time.Time{}, fmt.Errorf("followups: unknown outcome %q", string(outcome))
	}
}
