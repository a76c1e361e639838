package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rxstock/rxstock/internal/customers"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/platform/db"
	"github.com/rxstock/rxstock/internal/platform/httpx"
	"github.com/rxstock/rxstock/internal/settings"
	"github.com/rxstock/rxstock/internal/shared"
)

// ProfilePort loads the pharmacy profile printed on exported invoices.
type ProfilePort interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Handler wires sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	profile   ProfilePort
	validate  *validator.Validate
	broadcast func(reason string)
}

// NewHandler constructs a Handler. profile and broadcast may be nil.
func NewHandler(logger *slog.Logger, service *Service, profile ProfilePort, broadcast func(reason string)) *Handler {
	return &Handler{logger: logger, service: service, profile: profile, validate: validator.New(), broadcast: broadcast}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/payment", h.updatePayment)
	r.Delete("/{id}", h.remove)
	r.Get("/{id}/export.csv", h.exportCSV)
}

type cartLineForm struct {
	BatchID  int64   `json:"batch_id" validate:"required,gt=0"`
	Quantity int64   `json:"quantity" validate:"required,gt=0"`
	Rate     float64 `json:"rate" validate:"gte=0"`
}

type createForm struct {
	CustomerID  *int64         `json:"customer_id" validate:"omitempty,gt=0"`
	Lines       []cartLineForm `json:"lines" validate:"required,min=1,dive"`
	AmountPaid  float64        `json:"amount_paid" validate:"gte=0"`
	PaymentMode string         `json:"payment_mode" validate:"max=30"`
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, customers.ErrNotFound),
		errors.Is(err, inventory.ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &stockErr):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", stockErr.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidPayment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case db.IsUniqueViolation(err):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a conflicting record already exists")
	case db.IsSerializationFailure(err):
		httpx.Problem(w, http.StatusConflict, "Conflict", "concurrent update, please retry")
	default:
		h.logger.Error("sales handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) notify(reason string) {
	if h.broadcast != nil {
		h.broadcast(reason)
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := FulfillInput{
		CustomerID:  form.CustomerID,
		AmountPaid:  form.AmountPaid,
		PaymentMode: form.PaymentMode,
		ActorID:     shared.ActorID(r.Context()),
	}
	for _, line := range form.Lines {
		input.Lines = append(input.Lines, CartLine{
			BatchID: line.BatchID, Quantity: line.Quantity, Rate: line.Rate,
		})
	}
	inv, err := h.service.Fulfill(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.notify("sale")
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	invoices, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": inv, "lines": lines})
}

type paymentForm struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var form paymentForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.UpdatePayment(r.Context(), id, form.Amount, shared.ActorID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorID(r.Context())); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.notify("sale-reversal")
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	var profile settings.Settings
	if h.profile != nil {
		profile, err = h.profile.Get(r.Context())
		if err != nil {
			// Export the invoice without letterhead rather than fail it.
			h.logger.Warn("profile load for export", slog.Any("error", err))
			profile = settings.Settings{}
		}
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", inv.InvoiceNo+".csv"))
	if err := WriteInvoiceCSV(w, profile, inv, lines); err != nil {
		h.logger.Error("invoice export", slog.Any("error", err))
	}
}
