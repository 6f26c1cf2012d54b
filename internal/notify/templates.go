package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders a money amount with thousands separators, e.g.
// "TZS 1,250,000.00".
func FormatAmount(currency string, amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return printer.Sprintf("%s %.2f", currency, f)
}

// InvoiceSentBody renders the invoice-sent template.
func InvoiceSentBody(clientName, number, currency string, total decimal.Decimal, dueDate time.Time) (subject, body string) {
	subject = fmt.Sprintf("Invoice %s", number)
	body = printer.Sprintf(
		"Dear %s,\n\nInvoice %s for %s has been issued. Payment is due by %s.\n\nThank you.",
		clientName, number, FormatAmount(currency, total), dueDate.Format("02 Jan 2006"))
	return subject, body
}

// ReminderBody renders the pre-due reminder template.
func ReminderBody(clientName, number, currency string, balance decimal.Decimal, dueDate time.Time, daysUntilDue int) (subject, body string) {
	subject = fmt.Sprintf("Payment reminder: invoice %s due in %d day(s)", number, daysUntilDue)
	body = printer.Sprintf(
		"Dear %s,\n\nThis is a reminder that invoice %s with an outstanding balance of %s is due on %s.\n\nThank you.",
		clientName, number, FormatAmount(currency, balance), dueDate.Format("02 Jan 2006"))
	return subject, body
}

// OverdueBody renders the post-due reminder template.
func OverdueBody(clientName, number, currency string, balance decimal.Decimal, daysOverdue int) (subject, body string) {
	subject = fmt.Sprintf("Overdue notice: invoice %s", number)
	body = printer.Sprintf(
		"Dear %s,\n\nInvoice %s is %d day(s) overdue. The outstanding balance is %s. Please settle it as soon as possible.",
		clientName, number, daysOverdue, FormatAmount(currency, balance))
	return subject, body
}

// LateFeeBody renders the late-fee template.
func LateFeeBody(clientName, number, currency string, fee, total decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Late fee applied: invoice %s", number)
	body = printer.Sprintf(
		"Dear %s,\n\nA late payment fee of %s has been applied to invoice %s. The new total is %s.",
		clientName, FormatAmount(currency, fee), number, FormatAmount(currency, total))
	return subject, body
}

// TerminationWarningBody renders the termination-warning template.
func TerminationWarningBody(clientName, number, currency string, balance decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Service termination warning: invoice %s", number)
	body = printer.Sprintf(
		"Dear %s,\n\nInvoice %s remains unpaid with a balance of %s. Services will be terminated unless payment is received immediately.",
		clientName, number, FormatAmount(currency, balance))
	return subject, body
}

// CollectionsCallLogBody renders the internal collections-call-log template.
func CollectionsCallLogBody(agentName, clientName, number, outcome string, nextDate *time.Time) (subject, body string) {
	subject = fmt.Sprintf("Collections call logged: invoice %s", number)
	next := "none"
	if nextDate != nil {
		next = nextDate.Format("02 Jan 2006")
	}
	body = fmt.Sprintf("%s logged a call with %s about invoice %s. Outcome: %s. Next follow-up: %s.",
		agentName, clientName, number, outcome, next)
	return subject, body
}
