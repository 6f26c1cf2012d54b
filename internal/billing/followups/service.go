package followups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrCallCapReached indicates the invoice already has the maximum number
	// of logged calls and must be handled through escalation.
	ErrCallCapReached = errors.New("followups: call cap reached, invoice escalated")
	// ErrAlreadyScheduled indicates the invoice already has an active row.
	ErrAlreadyScheduled = errors.New("followups: invoice already has an active followup")
	// ErrInvalidOutcome indicates an unknown call outcome.
	ErrInvalidOutcome = errors.New("followups: invalid outcome")
	// ErrPromiseDateNotFuture indicates a promise date not strictly in the future.
	ErrPromiseDateNotFuture = errors.New("followups: promise date must be in the future")
	// ErrNotActionable indicates the row is terminal or already logged.
	ErrNotActionable = errors.New("followups: followup is not actionable")
)

// Service operates the collections-call workflow. All operations are invoked
// synchronously from user actions, never from the periodic driver, and
// validation failures mutate nothing.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ScheduleInput carries the fields for a new scheduled call.
type ScheduleInput struct {
	TenantID   int64
	InvoiceID  int64
	ClientID   int64
	AssignedTo int64
	NextDate   time.Time
	Notes      string
}

// Schedule creates a pending followup for an invoice. It refuses once the
// invoice has reached the call cap or already has an active row.
func (s *Service) Schedule(ctx context.Context, input ScheduleInput) (*Followup, error) {
	if input.InvoiceID == 0 {
		return nil, errors.New("followups: invoice ID required")
	}
	if input.NextDate.IsZero() {
		return nil, errors.New("followups: next date required")
	}
	calls, err := s.repo.CountLoggedCalls(ctx, input.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("count logged calls: %w", err)
	}
	if calls >= MaxCallAttempts {
		return nil, ErrCallCapReached
	}
	if _, err := s.repo.GetActiveByInvoice(ctx, input.InvoiceID); err == nil {
		return nil, ErrAlreadyScheduled
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	next := input.NextDate
	return s.repo.Create(ctx, Followup{
		TenantID:     input.TenantID,
		InvoiceID:    input.InvoiceID,
		ClientID:     input.ClientID,
		AssignedTo:   input.AssignedTo,
		Notes:        input.Notes,
		NextFollowup: &next,
		Status:       StatusPending,
	})
}

// LogCallInput carries the fields for recording a call.
type LogCallInput struct {
	Outcome          Outcome
	Notes            string
	PromiseDate      *time.Time
	PromiseAmount    *decimal.Decimal
	OverrideNextDate *time.Time
}

// LogCallResult reports what the workflow decided.
type LogCallResult struct {
	Logged    *Followup
	Successor *Followup
	Escalated bool
}

// LogCall records a call outcome on the active followup. The third logged
// call for an invoice marks the row escalated and creates no successor;
// otherwise a pending successor row carries the auto-scheduled next contact
// date and the logged row stops being active.
func (s *Service) LogCall(ctx context.Context, followupID int64, input LogCallInput) (*LogCallResult, error) {
	if !input.Outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, string(input.Outcome))
	}
	now := s.now()
	if input.PromiseDate != nil && !input.PromiseDate.After(now) {
		return nil, ErrPromiseDateNotFuture
	}

	f, err := s.repo.Get(ctx, followupID)
	if err != nil {
		return nil, err
	}
	if f.Status.Terminal() || f.CallDate != nil {
		return nil, ErrNotActionable
	}

	result := &LogCallResult{}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		outcome := input.Outcome
		f.CallDate = &now
		f.Outcome = &outcome
		if input.Notes != "" {
			f.Notes = input.Notes
		}
		f.PromiseDate = input.PromiseDate
		f.PromiseAmount = input.PromiseAmount

		calls, err := tx.CountLoggedCalls(ctx, f.InvoiceID)
		if err != nil {
			return fmt.Errorf("count logged calls: %w", err)
		}
		calls++ // include the call being logged

		if calls >= MaxCallAttempts {
			f.Status = StatusEscalated
			f.NextFollowup = nil
			if err := tx.Update(ctx, *f); err != nil {
				return err
			}
			result.Logged = f
			result.Escalated = true
			return nil
		}

		nextDate, err := nextContact(input, now)
		if err != nil {
			return err
		}
		f.Status = StatusOpen
		f.NextFollowup = nil
		if err := tx.Update(ctx, *f); err != nil {
			return err
		}

		successor, err := tx.Create(ctx, Followup{
			TenantID:     f.TenantID,
			InvoiceID:    f.InvoiceID,
			ClientID:     f.ClientID,
			AssignedTo:   f.AssignedTo,
			NextFollowup: &nextDate,
			Status:       StatusPending,
		})
		if err != nil {
			return err
		}
		result.Logged = f
		result.Successor = successor
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Escalated {
		s.logger.Info("followup escalated",
			slog.Int64("followup_id", followupID),
			slog.Int64("invoice_id", result.Logged.InvoiceID))
	} else {
		s.logger.Info("call logged",
			slog.Int64("followup_id", followupID),
			slog.Int64("invoice_id", result.Logged.InvoiceID),
			slog.String("outcome", string(input.Outcome)),
			slog.Time("next_followup", *result.Successor.NextFollowup))
	}
	return result, nil
}

// Cancel terminates a followup without a successor.
func (s *Service) Cancel(ctx context.Context, followupID int64) error {
	f, err := s.repo.Get(ctx, followupID)
	if err != nil {
		return err
	}
	if f.Status.Terminal() {
		return ErrNotActionable
	}
	f.Status = StatusCancelled
	f.NextFollowup = nil
	return s.repo.Update(ctx, *f)
}

// History returns the call chain for an invoice.
func (s *Service) History(ctx context.Context, invoiceID int64) ([]Followup, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

func nextContact(input LogCallInput, callDate time.Time) (time.Time, error) {
	if input.OverrideNextDate != nil {
		return *input.OverrideNextDate, nil
	}
	return NextContactDate(input.Outcome, callDate, input.PromiseDate)
}
