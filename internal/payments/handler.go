package payments

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

	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/billing/statutory"
	"github.com/moinfo/MoBilling-sub001/internal/platform/httpx"
)

// BillPayer settles statutory bills; payment of a bill advances its
// obligation's cycle.
type BillPayer interface {
	OnBillPaid(ctx context.Context, billID int64, paidAt time.Time) error
}

// Handler exposes payment recording over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	bills    BillPayer
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, bills BillPayer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		bills:    bills,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices/{invoiceID}/payments", h.history)
	r.Post("/invoices/{invoiceID}/payments", h.record)
	r.Post("/statutory-bills/{id}/pay", h.payBill)
}

type recordRequest struct {
	Amount    float64    `json:"amount" validate:"required,gt=0"`
	Method    string     `json:"method" validate:"required,oneof=cash bank mobile_money cheque"`
	Reference string     `json:"reference" validate:"max=100"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := RecordInput{
		InvoiceID: invoiceID,
		Amount:    decimal.NewFromFloat(req.Amount),
		Method:    req.Method,
		Reference: req.Reference,
	}
	if req.PaidAt != nil {
		input.PaidAt = *req.PaidAt
	}
	payment, err := h.service.Record(r.Context(), input)
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":         payment.ID,
		"invoice_id": payment.InvoiceID,
		"number":     payment.Number,
		"amount":     payment.Amount.String(),
		"paid_at":    payment.PaidAt,
	})
}

func (h *Handler) payBill(w http.ResponseWriter, r *http.Request) {
	billID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid bill id")
		return
	}
	if err := h.bills.OnBillPaid(r.Context(), billID, time.Now().UTC()); err != nil {
		h.respondError(w, "pay statutory bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	list, err := h.service.History(r.Context(), invoiceID)
	if err != nil {
		h.respondError(w, "payment history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, invoicing.ErrNotFound), errors.Is(err, statutory.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrOverpayment), errors.Is(err, ErrInvoiceClosed):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
