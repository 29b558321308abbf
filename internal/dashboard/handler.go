package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/rbac"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

// Handler serves GET /api/dashboard.
type Handler struct {
	logger  *slog.Logger
	service *Service
	relay   auth.Relay
	rbac    rbac.Middleware
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, service *Service, relay auth.Relay, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, relay: relay, rbac: mw}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(policy.ViewDashboard)).Get("/", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	view, err := h.service.Load(r.Context(), sess.Token())
	if err != nil {
		h.relay.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
