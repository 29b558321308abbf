package masterdata

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/rbac"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

const maxBodyBytes = 1 << 20

// Handler manages reference data endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	relay     auth.Relay
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, relay auth.Relay, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, relay: relay, rbac: mw, validator: httpx.NewValidator()}
}

// MountRoutes registers one route tree per collection.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, c := range Collections() {
		r.Route("/"+c.Resource, func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAny(c.View))
				r.Get("/", h.list(c))
				r.Get("/{id}", h.get(c))
			})
			if c.ReadOnly() {
				return
			}
			r.With(h.rbac.RequireAny(c.Create)).Post("/", h.create(c))
			r.With(h.rbac.RequireAny(c.Edit)).Put("/{id}", h.update(c))
			r.With(h.rbac.RequireAny(c.Delete)).Delete("/{id}", h.delete(c))
			if c.Resource == usersResource {
				r.With(h.rbac.RequireAny(policy.ResetPassword)).Post("/{id}/reset-password", h.resetPassword)
			}
		})
	}
}

func (h *Handler) list(c Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.service.List(r.Context(), actorFrom(r), c, r.URL.Query())
		h.respond(w, r, http.StatusOK, out, err)
	}
}

func (h *Handler) get(c Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		out, err := h.service.Get(r.Context(), actorFrom(r), c, id)
		h.respond(w, r, http.StatusOK, out, err)
	}
}

func (h *Handler) create(c Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readObject(w, r)
		if !ok {
			return
		}
		out, err := h.service.Create(r.Context(), actorFrom(r), c, body)
		h.respond(w, r, http.StatusCreated, out, err)
	}
}

func (h *Handler) update(c Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		body, ok := readObject(w, r)
		if !ok {
			return
		}
		out, err := h.service.Update(r.Context(), actorFrom(r), c, id, body)
		h.respond(w, r, http.StatusOK, out, err)
	}
}

func (h *Handler) delete(c Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if err := h.service.Delete(r.Context(), actorFrom(r), c, id); err != nil {
			h.relay.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req resetPasswordRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemWith(w, httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Errors: httpx.FieldErrors(err)})
		return
	}
	out, err := h.service.ResetPassword(r.Context(), actorFrom(r), id, req.NewPassword)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, out json.RawMessage, err error) {
	if err != nil {
		h.relay.Error(w, r, err)
		return
	}
	httpx.Raw(w, status, out)
}

// readObject reads a JSON object body for forwarding unchanged.
func readObject(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Request Too Large", "")
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "body must be a JSON object")
		return nil, false
	}
	return body, true
}

func actorFrom(r *http.Request) Actor {
	sess := shared.SessionFromContext(r.Context())
	return Actor{UserID: sess.User(), Role: sess.Role(), Token: sess.Token()}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid record id")
		return 0, false
	}
	return id, true
}
