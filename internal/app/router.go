package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxstock/rxstock/internal/audit"
	"github.com/rxstock/rxstock/internal/auth"
	"github.com/rxstock/rxstock/internal/catalog"
	"github.com/rxstock/rxstock/internal/customers"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/observability"
	"github.com/rxstock/rxstock/internal/purchase"
	"github.com/rxstock/rxstock/internal/sales"
	"github.com/rxstock/rxstock/internal/settings"
	"github.com/rxstock/rxstock/internal/suppliers"
	"github.com/rxstock/rxstock/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Pool             *pgxpool.Pool
	Metrics          *observability.Metrics
	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	InventoryHandler *inventory.Handler
	PurchaseHandler  *purchase.Handler
	SalesHandler     *sales.Handler
	SuppliersHandler *suppliers.Handler
	CustomersHandler *customers.Handler
	SettingsHandler  *settings.Handler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults. Every
// /api route sits behind the session middleware; /auth, /healthz and
// /metrics stay open.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(api chi.Router) {
		api.Use(params.AuthHandler.Middleware)
		api.Route("/medicines", params.CatalogHandler.MountRoutes)
		api.Route("/inventory", params.InventoryHandler.MountRoutes)
		api.Route("/purchases", params.PurchaseHandler.MountRoutes)
		api.Route("/sales", params.SalesHandler.MountRoutes)
		api.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		api.Route("/customers", params.CustomersHandler.MountRoutes)
		api.Route("/settings", params.SettingsHandler.MountRoutes)
		if params.AuditHandler != nil {
			api.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
