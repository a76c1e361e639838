package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rxstock/rxstock/internal/platform/httpx"
)

// Handler wires read-only inventory endpoints.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches", h.listBatches)
	r.Get("/expiring", h.listExpiring)
	r.Get("/low-stock", h.listLowStock)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	medicineID, err := strconv.ParseInt(r.URL.Query().Get("medicine_id"), 10, 64)
	if err != nil || medicineID <= 0 {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "medicine_id must be a positive integer", "medicine_id")
		return
	}
	batches, err := h.repo.ListByMedicine(r.Context(), medicineID)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) listExpiring(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	rows, err := h.repo.ExpiringWithin(r.Context(), days)
	if err != nil {
		h.logger.Error("list expiring", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expiring": rows})
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.LowStock(r.Context())
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"low_stock": rows})
}
