package sweep

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus counters for sweep outcomes.
type Metrics struct {
	runs                prometheus.Counter
	invoicesCreated     prometheus.Counter
	remindersSent       prometheus.Counter
	lateFeesApplied     prometheus.Counter
	terminationWarnings prometheus.Counter
	billsGenerated      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the sweep counters against the provided registerer.
// When the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobilling_sweep_runs_total",
			Help: "Completed billing sweep runs.",
		}),
		invoicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobilling_sweep_invoices_created_total",
			Help: "Invoices created by the billing sweep.",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobilling_sweep_reminders_sent_total",
			Help: "Pre-due and overdue reminders sent by the billing sweep.",
		}),
		lateFeesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobilling_sweep_late_fees_applied_total",
			Help: "Late fees applied by the escalation engine.",
		}),
		terminationWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobilling_sweep_termination_warnings_total",
			Help: "Termination warnings sent by the escalation engine.",
		}),
		billsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobilling_sweep_bills_generated_total",
			Help: "Statutory bills generated by the billing sweep.",
		}),
	}
	registerer.MustRegister(m.runs, m.invoicesCreated, m.remindersSent, m.lateFeesApplied, m.terminationWarnings, m.billsGenerated)
	return m
}

// Observe records one sweep result.
func (m *Metrics) Observe(res Result) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.invoicesCreated.Add(float64(res.InvoicesCreated))
	m.remindersSent.Add(float64(res.RemindersSent + res.OverdueReminders))
	m.lateFeesApplied.Add(float64(res.LateFeesApplied))
	m.terminationWarnings.Add(float64(res.TerminationWarnings))
	m.billsGenerated.Add(float64(res.BillsGenerated))
}
