package subscriptions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/catalog"
	"github.com/moinfo/MoBilling-sub001/internal/platform/httpx"
)

// Handler exposes subscription management over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers subscription routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients/{clientID}/subscriptions", h.listByClient)
	r.Post("/subscriptions", h.create)
	r.Post("/subscriptions/{id}/activate", h.activate)
	r.Post("/subscriptions/{id}/suspend", h.suspend)
	r.Post("/subscriptions/{id}/cancel", h.cancel)
}

type createRequest struct {
	TenantID  int64      `json:"tenant_id" validate:"required"`
	ClientID  int64      `json:"client_id" validate:"required"`
	ServiceID int64      `json:"service_id" validate:"required"`
	Quantity  float64    `json:"quantity" validate:"required,gt=0"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateSubscriptionInput{
		TenantID:  req.TenantID,
		ClientID:  req.ClientID,
		ServiceID: req.ServiceID,
		Quantity:  decimal.NewFromFloat(req.Quantity),
	}
	if req.StartDate != nil {
		input.StartDate = *req.StartDate
	}
	sub, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create subscription", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sub)
}

func (h *Handler) listByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid client id")
		return
	}
	subs, err := h.service.ListByClient(r.Context(), clientID)
	if err != nil {
		h.respondError(w, "list subscriptions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, subs)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Activate, StatusActive)
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Suspend, StatusSuspended)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel, StatusCancelled)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) error, target Status) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid subscription id")
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.respondError(w, "subscription transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(target)})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInactiveService):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
