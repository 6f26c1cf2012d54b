// Package ledger records which (client, service, period) triples have
// already been billed. Entry existence is the deduplication guarantee for
// recurring invoice generation; a unique index on the key backs it against
// overlapping sweeps.
package ledger

import (
	"errors"
	"time"
)

// ErrAlreadyBilled indicates the period key is already ledgered. Callers
// treat it as success-by-idempotence, never as a failure.
var ErrAlreadyBilled = errors.New("ledger: period already billed")

// Key identifies one billed period.
type Key struct {
	TenantID  int64
	ClientID  int64
	ServiceID int64
	DueDate   time.Time
}

// Entry is the durable record of one billed period. RemindersSent holds the
// day-offsets already dispatched for the owning invoice; offsets are appended
// add-if-absent and never removed.
type Entry struct {
	ID            int64
	TenantID      int64
	ClientID      int64
	ServiceID     int64
	InvoiceID     int64
	DueDate       time.Time
	RemindersSent []int32
	CreatedAt     time.Time
}

// HasReminder reports whether the offset was already recorded.
func (e Entry) HasReminder(offset int32) bool {
	for _, sent := range e.RemindersSent {
		if sent == offset {
			return true
		}
	}
	return false
}
