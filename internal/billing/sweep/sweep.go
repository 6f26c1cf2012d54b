// Package sweep orchestrates one periodic billing pass: invoice generation,
// pre-due reminders, overdue escalation and statutory bill generation.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moinfo/MoBilling-sub001/internal/billing/escalation"
)

// InvoiceGenerator creates recurring invoices.
type InvoiceGenerator interface {
	Run(ctx context.Context, asOf time.Time) (int, error)
}

// ReminderScheduler sends pre-due reminders.
type ReminderScheduler interface {
	Run(ctx context.Context, asOf time.Time) (int, error)
}

// EscalationEngine advances overdue invoices.
type EscalationEngine interface {
	Run(ctx context.Context, asOf time.Time) (escalation.Result, error)
}

// BillGenerator creates statutory bills.
type BillGenerator interface {
	GenerateBills(ctx context.Context, asOf time.Time) (int, error)
}

// Result summarises one sweep.
type Result struct {
	InvoicesCreated     int
	RemindersSent       int
	OverdueReminders    int
	LateFeesApplied     int
	TerminationWarnings int
	BillsGenerated      int
}

// Config tunes the sweep runner.
type Config struct {
	// TimeBudget caps one sweep. When exceeded the unit in flight completes
	// and the run stops cleanly; ledger and stage fields let the next
	// invocation resume where this one left off. Zero means no cap.
	TimeBudget time.Duration
}

// Runner executes the full sweep. Invoice generation runs first so the
// reminder pass sees this period's ledger entries; reminders, escalation and
// statutory bills then run concurrently since they share no mutable state.
type Runner struct {
	invoices   InvoiceGenerator
	reminders  ReminderScheduler
	escalation EscalationEngine
	bills      BillGenerator
	metrics    *Metrics
	logger     *slog.Logger
	cfg        Config
}

// NewRunner wires the sweep phases.
func NewRunner(invoices InvoiceGenerator, reminders ReminderScheduler, esc EscalationEngine, bills BillGenerator, metrics *Metrics, logger *slog.Logger, cfg Config) *Runner {
	return &Runner{
		invoices:   invoices,
		reminders:  reminders,
		escalation: esc,
		bills:      bills,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run executes one sweep as of the injected reference time.
func (r *Runner) Run(ctx context.Context, asOf time.Time) (Result, error) {
	var res Result
	runCtx := ctx
	if r.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.TimeBudget)
		defer cancel()
	}
	start := time.Now()

	created, err := r.invoices.Run(runCtx, asOf)
	res.InvoicesCreated = created
	if err != nil {
		if budgetExhausted(ctx, runCtx, err) {
			r.finish(asOf, start, res, true)
			return res, nil
		}
		return res, err
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		sent, err := r.reminders.Run(gctx, asOf)
		res.RemindersSent = sent
		return err
	})
	g.Go(func() error {
		escRes, err := r.escalation.Run(gctx, asOf)
		res.OverdueReminders = escRes.RemindersSent
		res.LateFeesApplied = escRes.LateFeesApplied
		res.TerminationWarnings = escRes.TerminationWarnings
		return err
	})
	g.Go(func() error {
		bills, err := r.bills.GenerateBills(gctx, asOf)
		res.BillsGenerated = bills
		return err
	})
	if err := g.Wait(); err != nil {
		if budgetExhausted(ctx, runCtx, err) {
			r.finish(asOf, start, res, true)
			return res, nil
		}
		return res, err
	}

	r.finish(asOf, start, res, false)
	return res, nil
}

func (r *Runner) finish(asOf time.Time, start time.Time, res Result, truncated bool) {
	if r.metrics != nil {
		r.metrics.Observe(res)
	}
	r.logger.Info("billing sweep finished",
		slog.Time("as_of", asOf),
		slog.Duration("duration", time.Since(start)),
		slog.Int("invoices_created", res.InvoicesCreated),
		slog.Int("reminders_sent", res.RemindersSent),
		slog.Int("overdue_reminders", res.OverdueReminders),
		slog.Int("late_fees_applied", res.LateFeesApplied),
		slog.Int("termination_warnings", res.TerminationWarnings),
		slog.Int("bills_generated", res.BillsGenerated),
		slog.Bool("truncated", truncated))
}

// budgetExhausted distinguishes the sweep's own deadline from a caller
// cancellation: the former ends the run cleanly, the latter propagates.
func budgetExhausted(parent, run context.Context, err error) bool {
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return false
	}
	return parent.Err() == nil && run.Err() != nil
}
