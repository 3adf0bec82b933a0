package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storekeep/storekeep/internal/audit"
	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/expenses"
	"github.com/storekeep/storekeep/internal/observability"
	"github.com/storekeep/storekeep/internal/parties"
	"github.com/storekeep/storekeep/internal/platform/httpx"
	"github.com/storekeep/storekeep/internal/recorder"
	"github.com/storekeep/storekeep/internal/reports"
	"github.com/storekeep/storekeep/internal/settings"
	"github.com/storekeep/storekeep/jobs"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router. Nil handlers
// leave their routes unmounted.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Metrics         *observability.Metrics
	Health          map[string]HealthCheck
	CatalogHandler  *catalog.Handler
	PartiesHandler  *parties.Handler
	RecorderHandler *recorder.Handler
	ExpensesHandler *expenses.Handler
	SettingsHandler *settings.Handler
	ReportsHandler  *reports.Handler
	AuditHandler    *audit.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with storekeep defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", healthHandler(params.Logger, params.Health))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.CatalogHandler != nil {
			r.Route("/products", params.CatalogHandler.MountRoutes)
		}
		if params.PartiesHandler != nil {
			r.Route("/suppliers", params.PartiesHandler.MountSupplierRoutes)
			r.Route("/customers", params.PartiesHandler.MountCustomerRoutes)
		}
		if params.RecorderHandler != nil {
			r.Route("/sales", params.RecorderHandler.MountSaleRoutes)
			r.Route("/purchases", params.RecorderHandler.MountPurchaseRoutes)
		}
		if params.ExpensesHandler != nil {
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			out.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				out.Checks[name] = "down"
				out.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			out.Checks[name] = "up"
		}
		httpx.JSON(w, status, out)
	}
}
