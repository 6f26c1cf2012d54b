package statutory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moinfo/MoBilling-sub001/internal/billing/cycle"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
)

// NumberSource allocates bill numbers.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType, tenantID int64, asOf time.Time) (string, error)
}

// Advancer generates statutory bills each period and advances obligations on
// payment. Deduplication is keyed on the single obligation, mirroring the
// recurrence ledger's philosophy for client billing.
type Advancer struct {
	repo    RepositoryPort
	numbers NumberSource
	logger  *slog.Logger
	horizon int
}

// NewAdvancer builds an Advancer; horizonDays defaults to 30.
func NewAdvancer(repo RepositoryPort, numbers NumberSource, logger *slog.Logger, horizonDays int) *Advancer {
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &Advancer{repo: repo, numbers: numbers, logger: logger, horizon: horizonDays}
}

// GenerateBills creates one bill per obligation due within the horizon.
// Already-generated periods surface as ErrBillExists and are skipped.
func (a *Advancer) GenerateBills(ctx context.Context, asOf time.Time) (int, error) {
	obligations, err := a.repo.ListDueObligations(ctx, asOf.AddDate(0, 0, a.horizon))
	if err != nil {
		return 0, fmt.Errorf("list due obligations: %w", err)
	}
	created := 0
	for _, o := range obligations {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		number, err := a.numbers.Next(ctx, numbering.DocTypeBill, o.TenantID, asOf)
		if err != nil {
			a.logger.Error("allocate bill number", slog.Int64("obligation_id", o.ID), slog.Any("error", err))
			continue
		}
		_, err = a.repo.CreateBill(ctx, Bill{
			TenantID:     o.TenantID,
			ObligationID: o.ID,
			Number:       number,
			Amount:       o.Amount,
			DueDate:      o.NextDueDate,
			Status:       BillStatusPending,
		})
		if err != nil {
			if errors.Is(err, ErrBillExists) {
				continue
			}
			a.logger.Error("create statutory bill", slog.Int64("obligation_id", o.ID), slog.Any("error", err))
			continue
		}
		created++
	}
	return created, nil
}

// OnBillPaid records full payment of a bill and advances its obligation: a
// one-off obligation deactivates, a recurring one moves one cycle forward so
// the next run generates the following bill.
func (a *Advancer) OnBillPaid(ctx context.Context, billID int64, paidAt time.Time) error {
	bill, err := a.repo.GetBill(ctx, billID)
	if err != nil {
		return err
	}
	obligation, err := a.repo.GetObligation(ctx, bill.ObligationID)
	if err != nil {
		return err
	}
	if err := a.repo.MarkBillPaid(ctx, billID, paidAt); err != nil {
		return err
	}

	if obligation.Cycle == cycle.CycleOnce {
		if err := a.repo.DeactivateObligation(ctx, obligation.ID); err != nil {
			return err
		}
		a.logger.Info("one-off obligation retired", slog.Int64("obligation_id", obligation.ID))
		return nil
	}

	nextDue, err := cycle.Advance(obligation.NextDueDate, obligation.Cycle)
	if err != nil {
		return fmt.Errorf("advance obligation cycle: %w", err)
	}
	if err := a.repo.AdvanceObligation(ctx, obligation.ID, nextDue); err != nil {
		return err
	}
	a.logger.Info("obligation advanced",
		slog.Int64("obligation_id", obligation.ID),
		slog.Time("next_due_date", nextDue))
	return nil
}
