package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/dashboard"
	"github.com/odyssey-erp/stockgate/internal/masterdata"
	"github.com/odyssey-erp/stockgate/internal/observability"
	"github.com/odyssey-erp/stockgate/internal/operations"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/rbac"
	"github.com/odyssey-erp/stockgate/internal/shared"
	"github.com/odyssey-erp/stockgate/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	PermissionsHandler *rbac.PermissionsHandler
	OperationsHandler  *operations.Handler
	DashboardHandler   *dashboard.Handler
	MasterDataHandler  *masterdata.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Probes and scrapes stay outside the session, CSRF and rate limit chain.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		if params.Config == nil || !params.Config.IsProduction() {
			r.Use(chimw.Logger)
		}

		r.Route("/api", func(r chi.Router) {
			r.Route("/auth", params.AuthHandler.MountRoutes)
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAuthenticated)
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
				if params.DashboardHandler != nil {
					r.Route("/dashboard", params.DashboardHandler.MountRoutes)
				}
				if params.JobHandler != nil {
					r.With(params.RBACMiddleware.RequireAny(policy.EditSettings)).Route("/jobs", params.JobHandler.MountRoutes)
				}
				params.OperationsHandler.MountRoutes(r)
				if params.MasterDataHandler != nil {
					params.MasterDataHandler.MountRoutes(r)
				}
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})
	return r
}
