package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/moinfo/MoBilling-sub001/internal/billing/sweep"
	jobmetrics "github.com/moinfo/MoBilling-sub001/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SweepRunner executes one billing pass as of a reference time.
type SweepRunner interface {
	Run(ctx context.Context, asOf time.Time) (sweep.Result, error)
}

// BillingSweepJob runs the daily billing sweep from the queue.
type BillingSweepJob struct {
	Runner  SweepRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewBillingSweepJob wires dependencies for the sweep handler.
func NewBillingSweepJob(runner SweepRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *BillingSweepJob {
	return &BillingSweepJob{
		Runner:  runner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes billing sweep tasks.
func (j *BillingSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("billing sweep: handler not configured")
	}
	var payload BillingSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	asOf := j.now()
	if payload.AsOf != nil {
		asOf = payload.AsOf.UTC()
	}

	tracker := j.metrics().Track(TaskBillingSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Time("as_of", asOf))
	logger.Info("starting billing sweep")

	res, err := j.Runner.Run(ctx, asOf)
	if err != nil {
		resultErr = err
		logger.Error("billing sweep failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed billing sweep",
		slog.Int("invoices_created", res.InvoicesCreated),
		slog.Int("reminders_sent", res.RemindersSent),
		slog.Int("overdue_reminders", res.OverdueReminders),
		slog.Int("late_fees_applied", res.LateFeesApplied),
		slog.Int("termination_warnings", res.TerminationWarnings),
		slog.Int("bills_generated", res.BillsGenerated))
	return resultErr
}

func (j *BillingSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBillingSweep))
	}
	return slog.Default().With(slog.String("job", TaskBillingSweep))
}

func (j *BillingSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *BillingSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
