package followups

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/platform/httpx"
)

// Handler exposes the collections workflow over HTTP.
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

// MountRoutes registers followup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices/{invoiceID}/followups", h.history)
	r.Post("/invoices/{invoiceID}/followups", h.schedule)
	r.Post("/followups/{id}/call", h.logCall)
	r.Post("/followups/{id}/cancel", h.cancel)
}

type scheduleRequest struct {
	TenantID   int64     `json:"tenant_id" validate:"required"`
	ClientID   int64     `json:"client_id" validate:"required"`
	AssignedTo int64     `json:"assigned_to" validate:"required"`
	NextDate   time.Time `json:"next_date" validate:"required"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

type logCallRequest struct {
	Outcome          string     `json:"outcome" validate:"required,oneof=promised declined no_answer disputed partial_payment"`
	Notes            string     `json:"notes" validate:"max=2000"`
	PromiseDate      *time.Time `json:"promise_date,omitempty"`
	PromiseAmount    *float64   `json:"promise_amount,omitempty" validate:"omitempty,gt=0"`
	OverrideNextDate *time.Time `json:"override_next_date,omitempty"`
}

type followupResponse struct {
	ID           int64      `json:"id"`
	InvoiceID    int64      `json:"invoice_id"`
	ClientID     int64      `json:"client_id"`
	AssignedTo   int64      `json:"assigned_to"`
	CallDate     *time.Time `json:"call_date,omitempty"`
	Outcome      *string    `json:"outcome,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	PromiseDate  *time.Time `json:"promise_date,omitempty"`
	NextFollowup *time.Time `json:"next_followup,omitempty"`
	Status       string     `json:"status"`
}

type logCallResponse struct {
	Logged    followupResponse  `json:"logged"`
	Successor *followupResponse `json:"successor,omitempty"`
	Escalated bool              `json:"escalated"`
}

func toResponse(f Followup) followupResponse {
	resp := followupResponse{
		ID:           f.ID,
		InvoiceID:    f.InvoiceID,
		ClientID:     f.ClientID,
		AssignedTo:   f.AssignedTo,
		CallDate:     f.CallDate,
		Notes:        f.Notes,
		PromiseDate:  f.PromiseDate,
		NextFollowup: f.NextFollowup,
		Status:       string(f.Status),
	}
	if f.Outcome != nil {
		outcome := string(*f.Outcome)
		resp.Outcome = &outcome
	}
	return resp
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req scheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	f, err := h.service.Schedule(r.Context(), ScheduleInput{
		TenantID:   req.TenantID,
		InvoiceID:  invoiceID,
		ClientID:   req.ClientID,
		AssignedTo: req.AssignedTo,
		NextDate:   req.NextDate,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(w, "schedule followup", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*f))
}

func (h *Handler) logCall(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid followup id")
		return
	}
	var req logCallRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := LogCallInput{
		Outcome:          Outcome(req.Outcome),
		Notes:            req.Notes,
		PromiseDate:      req.PromiseDate,
		OverrideNextDate: req.OverrideNextDate,
	}
	if req.PromiseAmount != nil {
		amount := decimal.NewFromFloat(*req.PromiseAmount)
		input.PromiseAmount = &amount
	}

	result, err := h.service.LogCall(r.Context(), id, input)
	if err != nil {
		h.respondError(w, "log call", err)
		return
	}
	resp := logCallResponse{Logged: toResponse(*result.Logged), Escalated: result.Escalated}
	if result.Successor != nil {
		successor := toResponse(*result.Successor)
		resp.Successor = &successor
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid followup id")
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.respondError(w, "cancel followup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusCancelled)})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	chain, err := h.service.History(r.Context(), invoiceID)
	if err != nil {
		h.respondError(w, "followup history", err)
		return
	}
	resp := make([]followupResponse, 0, len(chain))
	for _, f := range chain {
		resp = append(resp, toResponse(f))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrCallCapReached),
		errors.Is(err, ErrAlreadyScheduled),
		errors.Is(err, ErrNotActionable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrPromiseDateNotFuture):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
