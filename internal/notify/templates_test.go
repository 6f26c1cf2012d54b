package notify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "TZS 1,250,000.00", FormatAmount("TZS", decimal.NewFromInt(1250000)))
	require.Equal(t, "TZS 500.50", FormatAmount("TZS", decimal.NewFromFloat(500.499)))
	require.Equal(t, "USD 0.00", FormatAmount("USD", decimal.Zero))
}

func TestInvoiceSentBody(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	subject, body := InvoiceSentBody("Acme Ltd", "INV-2026-000042", "TZS", decimal.NewFromInt(82600), due)
	require.Equal(t, "Invoice INV-2026-000042", subject)
	require.Contains(t, body, "Acme Ltd")
	require.Contains(t, body, "TZS 82,600.00")
	require.Contains(t, body, "15 Sep 2026")
}

func TestReminderBodyMentionsDaysUntilDue(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	subject, body := ReminderBody("Acme Ltd", "INV-2026-000042", "TZS", decimal.NewFromInt(50000), due, 7)
	require.Contains(t, subject, "due in 7 day(s)")
	require.Contains(t, body, "TZS 50,000.00")
}

func TestOverdueBodyMentionsDaysOverdue(t *testing.T) {
	subject, body := OverdueBody("Acme Ltd", "INV-2026-000042", "TZS", decimal.NewFromInt(50000), 3)
	require.Contains(t, subject, "Overdue notice")
	require.Contains(t, body, "3 day(s) overdue")
}

func TestLateFeeBodyShowsFeeAndNewTotal(t *testing.T) {
	_, body := LateFeeBody("Acme Ltd", "INV-2026-000042", "TZS", decimal.NewFromInt(10000), decimal.NewFromInt(110000))
	require.Contains(t, body, "TZS 10,000.00")
	require.Contains(t, body, "TZS 110,000.00")
}

func TestTerminationWarningBody(t *testing.T) {
	subject, body := TerminationWarningBody("Acme Ltd", "INV-2026-000042", "TZS", decimal.NewFromInt(110000))
	require.Contains(t, subject, "termination warning")
	require.Contains(t, body, "terminated unless payment")
}

func TestCollectionsCallLogBodyWithoutNextDate(t *testing.T) {
	_, body := CollectionsCallLogBody("J. Agent", "Acme Ltd", "INV-2026-000042", "declined", nil)
	require.Contains(t, body, "Next follow-up: none")
}
