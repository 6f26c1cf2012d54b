package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/catalog"
)

var (
	// ErrInvalidStatus indicates a status transition not allowed.
	ErrInvalidStatus = errors.New("subscriptions: invalid status transition")
	// ErrInactiveService indicates the referenced service cannot be subscribed to.
	ErrInactiveService = errors.New("subscriptions: service is not active")
)

// CatalogPort is the slice of the catalog the service needs.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (*catalog.Service, error)
}

// Service handles subscription lifecycle.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cat CatalogPort) *Service {
	return &Service{repo: repo, catalog: cat}
}

// CreateSubscriptionInput carries the fields for a new subscription.
type CreateSubscriptionInput struct {
	TenantID  int64
	ClientID  int64
	ServiceID int64
	Quantity  decimal.Decimal
	StartDate time.Time
}

// Create registers a pending subscription after verifying the service.
func (s *Service) Create(ctx context.Context, input CreateSubscriptionInput) (*Subscription, error) {
	if input.ClientID == 0 {
		return nil, errors.New("subscriptions: client ID required")
	}
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("subscriptions: quantity must be positive")
	}
	svc, err := s.catalog.Get(ctx, input.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("verify service: %w", err)
	}
	if !svc.Active {
		return nil, ErrInactiveService
	}
	if input.StartDate.IsZero() {
		input.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return s.repo.Create(ctx, Subscription{
		TenantID:  input.TenantID,
		ClientID:  input.ClientID,
		ServiceID: input.ServiceID,
		Quantity:  input.Quantity,
		StartDate: input.StartDate,
		Status:    StatusPending,
	})
}

// Activate moves a pending or suspended subscription into billing.
func (s *Service) Activate(ctx context.Context, id int64) error {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != StatusPending && sub.Status != StatusSuspended {
		return fmt.Errorf("%w: %s -> active", ErrInvalidStatus, sub.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusActive)
}

// Suspend pauses billing for an active subscription.
func (s *Service) Suspend(ctx context.Context, id int64) error {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != StatusActive {
		return fmt.Errorf("%w: %s -> suspended", ErrInvalidStatus, sub.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusSuspended)
}

// Cancel terminates a subscription; cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == StatusCancelled {
		return fmt.Errorf("%w: already cancelled", ErrInvalidStatus)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCancelled)
}

// ListByClient returns a client's subscriptions.
func (s *Service) ListByClient(ctx context.Context, clientID int64) ([]Subscription, error) {
	return s.repo.ListByClient(ctx, clientID)
}
