package purchase

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/platform/db"
	"github.com/rxstock/rxstock/internal/platform/httpx"
	"github.com/rxstock/rxstock/internal/pricing"
	"github.com/rxstock/rxstock/internal/shared"
)

const maxImportSize = 8 << 20 // 8 MiB upload cap

// Handler wires purchase endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validate  *validator.Validate
	broadcast func(reason string)
}

// NewHandler constructs a Handler. broadcast may be nil.
func NewHandler(logger *slog.Logger, service *Service, broadcast func(reason string)) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), broadcast: broadcast}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/import", h.importFile)
	r.Post("/import/paste", h.importPasted)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.remove)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.recordPayment)
}

type createForm struct {
	SupplierID   int64       `json:"supplier_id" validate:"required,gt=0"`
	InvoiceNo    string      `json:"invoice_no" validate:"required"`
	PurchaseDate string      `json:"purchase_date"`
	Lines        []LineInput `json:"lines"`
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var fieldErr *FieldError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, inventory.ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoItems),
		errors.Is(err, ErrInvalidExpiry),
		errors.Is(err, ErrInvalidPayment),
		errors.Is(err, pricing.ErrMarginRequired),
		errors.Is(err, pricing.ErrInvalidMargin):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &fieldErr):
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", fieldErr.Reason, fieldErr.Field)
	case errors.Is(err, ErrStockAlreadySold):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case db.IsUniqueViolation(err):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a conflicting record already exists")
	case db.IsSerializationFailure(err):
		httpx.Problem(w, http.StatusConflict, "Conflict", "concurrent update, please retry")
	default:
		h.logger.Error("purchase handler", slog.Any("error", err))
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
	input := IntakeInput{
		SupplierID: form.SupplierID,
		InvoiceNo:  form.InvoiceNo,
		Lines:      form.Lines,
		ActorID:    shared.ActorID(r.Context()),
	}
	if form.PurchaseDate != "" {
		date, err := time.Parse("2006-01-02", form.PurchaseDate)
		if err != nil {
			httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "purchase_date must be YYYY-MM-DD", "purchase_date")
			return
		}
		input.PurchaseDate = date
	}
	po, err := h.service.Intake(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.notify("purchase")
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "multipart form expected with a csv file field")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "csv file is required", "file")
		return
	}
	defer file.Close()
	h.runImport(w, r, file)
}

func (h *Handler) importPasted(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SupplierID int64  `json:"supplier_id"`
		InvoiceNo  string `json:"invoice_no"`
		Content    string `json:"content"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "pasted content is empty", "content")
		return
	}
	input := IntakeInput{
		SupplierID: body.SupplierID,
		InvoiceNo:  body.InvoiceNo,
		ActorID:    shared.ActorID(r.Context()),
	}
	po, rowErrs, err := h.service.ImportTable(r.Context(), strings.NewReader(body.Content), input)
	h.respondImport(w, po, rowErrs, err)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, file io.Reader) {
	supplierID, _ := strconv.ParseInt(r.FormValue("supplier_id"), 10, 64)
	input := IntakeInput{
		SupplierID: supplierID,
		InvoiceNo:  r.FormValue("invoice_no"),
		ActorID:    shared.ActorID(r.Context()),
	}
	po, rowErrs, err := h.service.ImportTable(r.Context(), file, input)
	h.respondImport(w, po, rowErrs, err)
}

func (h *Handler) respondImport(w http.ResponseWriter, po PurchaseOrder, rowErrs []RowError, err error) {
	if errors.Is(err, ErrImportRejected) {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"imported": false,
			"errors":   rowErrs,
		})
		return
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.notify("purchase-import")
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"imported": true,
		"order":    po,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orders, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	po, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": po, "lines": lines})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorID(r.Context())); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.notify("purchase-reversal")
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type paymentForm struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	PaidOn    string  `json:"paid_on"`
	Mode      string  `json:"mode"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
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
	input := PaymentInput{
		Amount:     form.Amount,
		Mode:       form.Mode,
		Reference:  form.Reference,
		Notes:      form.Notes,
		RecordedBy: shared.ActorID(r.Context()),
	}
	if form.PaidOn != "" {
		paidOn, err := time.Parse("2006-01-02", form.PaidOn)
		if err != nil {
			httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "paid_on must be YYYY-MM-DD", "paid_on")
			return
		}
		input.PaidOn = paidOn
	}
	po, err := h.service.RecordPayment(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	entries, err := h.service.Payments(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": entries})
}
