package operations

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

const maxBodyBytes = 1 << 20

// Handler exposes document operations over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	relay     auth.Relay
	validator *validator.Validate
}

// NewHandler constructs the operations handler.
func NewHandler(logger *slog.Logger, service *Service, relay auth.Relay) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, relay: relay, validator: httpx.NewValidator()}
}

// MountRoutes registers /stock/check and one collection per document kind.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/check", h.check)
	for _, kind := range Kinds() {
		r.Route("/"+kind.Resource(), func(r chi.Router) {
			r.Get("/", h.list(kind))
			r.Post("/", h.create(kind))
			r.Get("/{id}", h.get(kind))
			r.Post("/{id}/validate", h.validate(kind))
			r.Delete("/{id}", h.delete(kind))
		})
	}
}

type checkRequest struct {
	Kind string `json:"kind" validate:"required,oneof=receipt delivery transfer adjustment"`
	Draft
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemWith(w, httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Errors: httpx.FieldErrors(err)})
		return
	}
	kind, _ := ParseKind(req.Kind)
	out, err := h.service.Check(r.Context(), actorFrom(r), kind, req.Draft)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) list(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.service.List(r.Context(), actorFrom(r), kind, r.URL.Query())
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.Raw(w, http.StatusOK, out)
	}
}

func (h *Handler) get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		out, err := h.service.Get(r.Context(), actorFrom(r), kind, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.Raw(w, http.StatusOK, out)
	}
}

func (h *Handler) create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Request Too Large", "")
			return
		}
		out, err := h.service.Create(r.Context(), actorFrom(r), kind, body)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.Raw(w, http.StatusCreated, out)
	}
}

func (h *Handler) validate(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		out, err := h.service.Validate(r.Context(), actorFrom(r), kind, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.Raw(w, http.StatusOK, out)
	}
}

func (h *Handler) delete(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if err := h.service.Delete(r.Context(), actorFrom(r), kind, id); err != nil {
			h.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *StockError
	if errors.As(err, &stockErr) {
		httpx.ProblemWith(w, httpx.ProblemDetail{
			Title:  "Insufficient Stock",
			Status: http.StatusUnprocessableEntity,
			Detail: "one or more lines exceed the available stock",
			Errors: stockErr.Result.Errors,
		})
		return
	}
	var draftErr *InvalidDraftError
	if errors.As(err, &draftErr) {
		httpx.ProblemWith(w, httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Errors: draftErr.Fields})
		return
	}
	if errors.Is(err, ErrPermissionDenied) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
		return
	}
	h.relay.Error(w, r, err)
}

func actorFrom(r *http.Request) Actor {
	sess := shared.SessionFromContext(r.Context())
	return Actor{UserID: sess.User(), Role: sess.Role(), Token: sess.Token()}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid document id")
		return 0, false
	}
	return id, true
}
