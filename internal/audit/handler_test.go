package audit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rxstock/rxstock/internal/shared"
)

type stubReader struct {
	gotFilters shared.AuditFilters
	entries    []shared.AuditLog
	err        error
}

func (s *stubReader) Timeline(_ context.Context, f shared.AuditFilters) ([]shared.AuditLog, error) {
	s.gotFilters = f
	return s.entries, s.err
}

func TestTimelinePassesFilters(t *testing.T) {
	reader := &stubReader{entries: []shared.AuditLog{{
		ID: 1, ActorID: 7, Action: "SALE_CREATE", Entity: "sale", EntityID: "42",
		At: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}}
	h := NewHandler(slog.New(slog.DiscardHandler), reader)

	req := httptest.NewRequest(http.MethodGet, "/api/audit?entity=sale&action=SALE_CREATE&limit=10&offset=20", nil)
	rr := httptest.NewRecorder()
	h.timeline(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, shared.AuditFilters{
		Entity: "sale", Action: "SALE_CREATE", Limit: 10, Offset: 20,
	}, reader.gotFilters)
	require.Contains(t, rr.Body.String(), `"action":"SALE_CREATE"`)
	require.Contains(t, rr.Body.String(), `"entity_id":"42"`)
}

func TestTimelineDefaultsAndEmptyResult(t *testing.T) {
	reader := &stubReader{}
	h := NewHandler(slog.New(slog.DiscardHandler), reader)

	req := httptest.NewRequest(http.MethodGet, "/api/audit?offset=-3&limit=junk", nil)
	rr := httptest.NewRecorder()
	h.timeline(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, shared.AuditFilters{}, reader.gotFilters,
		"unparseable and negative values fall back to zero, the store clamps")
	require.JSONEq(t, `{"entries":[]}`, rr.Body.String())
}

func TestTimelineReportsStoreFailure(t *testing.T) {
	reader := &stubReader{err: errors.New("connection refused")}
	h := NewHandler(slog.New(slog.DiscardHandler), reader)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rr := httptest.NewRecorder()
	h.timeline(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
