// Package audit exposes the audit trail over HTTP as a read-only
// timeline. Entries are written by the purchase and sales engines; this
// package only reads them back.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rxstock/rxstock/internal/platform/httpx"
	"github.com/rxstock/rxstock/internal/shared"
)

// TimelineReader lists recorded audit entries, newest first.
type TimelineReader interface {
	Timeline(ctx context.Context, f shared.AuditFilters) ([]shared.AuditLog, error)
}

// Handler wires the audit timeline endpoint.
type Handler struct {
	logger *slog.Logger
	reader TimelineReader
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, reader TimelineReader) *Handler {
	return &Handler{logger: logger, reader: reader}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	entries, err := h.reader.Timeline(r.Context(), shared.AuditFilters{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if entries == nil {
		entries = []shared.AuditLog{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
