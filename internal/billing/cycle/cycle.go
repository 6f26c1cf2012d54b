// Package cycle provides billing cycle date arithmetic.
package cycle

import (
	"errors"
	"fmt"
	"time"
)

// Cycle enumerates billing recurrence periods.
type Cycle string

const (
	CycleOnce       Cycle = "once"
	CycleWeekly     Cycle = "weekly"
	CycleMonthly    Cycle = "monthly"
	CycleQuarterly  Cycle = "quarterly"
	CycleHalfYearly Cycle = "half_yearly"
	CycleYearly     Cycle = "yearly"
)

// ErrNoRecurrence indicates a cycle without a next occurrence.
var ErrNoRecurrence = errors.New("cycle: no recurrence for one-off cycle")

// Valid reports whether the cycle is a known enum value.
func (c Cycle) Valid() bool {
	switch c {
	case CycleOnce, CycleWeekly, CycleMonthly, CycleQuarterly, CycleHalfYearly, CycleYearly:
		return true
	}
	return false
}

// Recurring reports whether the cycle repeats.
func (c Cycle) Recurring() bool {
	return c.Valid() && c != CycleOnce
}

// Advance adds exactly one cycle period to t. Month-based cycles use
// time.AddDate, which normalises month-end overflow (Jan 31 + 1 month =
// Mar 2/3) the same way for every caller.
func Advance(t time.Time, c Cycle) (time.Time, error) {
	switch c {
	case CycleWeekly:
		return t.AddDate(0, 0, 7), nil
	case CycleMonthly:
		return t.AddDate(0, 1, 0), nil
	case CycleQuarterly:
		return t.AddDate(0, 3, 0), nil
	case CycleHalfYearly:
		return t.AddDate(0, 6, 0), nil
	case CycleYearly:
		return t.AddDate(1, 0, 0), nil
	case CycleOnce:
		return t, ErrNoRecurrence
	default:
		return t, fmt.Errorf("cycle: unknown cycle %q", string(c))
	}
}

// NextDueDate walks anchor forward one period at a time until the result is
// on or after ref. An anchor already on or after ref is returned unchanged,
// so a subscription billed ahead of time keeps its original due date.
func NextDueDate(anchor time.Time, c Cycle, ref time.Time) (time.Time, error) {
	if c == CycleOnce {
		return anchor, ErrNoRecurrence
	}
	if !c.Recurring() {
		return anchor, fmt.Errorf("cycle: unknown cycle %q", string(c))
	}
	due := anchor
	for due.Before(ref) {
		next, err := Advance(due, c)
		if err != nil {
			return anchor, err
		}
		due = next
	}
	return due, nil
}
