package rbac

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

// PermissionsHandler exposes the permission table to the SPA.
type PermissionsHandler struct {
	logger    *slog.Logger
	rbac      Middleware
	validator *validator.Validate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, rbac Middleware) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, rbac: rbac, validator: httpx.NewValidator()}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/mine", h.mine)
	r.Post("/check", h.check)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(policy.ViewUsers))
		r.Get("/", h.listPermissions)
	})
}

type permissionRow struct {
	Name  string        `json:"name"`
	Roles []policy.Role `json:"roles"`
}

// Grant lists what a role may do.
type Grant struct {
	Role        policy.Role         `json:"role"`
	Label       string              `json:"label"`
	Permissions []policy.Permission `json:"permissions"`
}

type checkRequest struct {
	Permissions []string `json:"permissions" validate:"max=64,dive,required"`
	RequireAll  bool     `json:"require_all"`
}

// CheckResult answers a multi-permission check.
type CheckResult struct {
	Allowed bool            `json:"allowed"`
	Results map[string]bool `json:"results"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	matrix := policy.Matrix()
	rows := make([]permissionRow, 0, len(matrix))
	for name, roles := range matrix {
		rows = append(rows, permissionRow{Name: name, Roles: roles})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles":       rolesView(),
		"permissions": rows,
	})
}

func (h *PermissionsHandler) mine(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Grants(shared.SessionFromContext(r.Context()).Role()))
}

func (h *PermissionsHandler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemWith(w, httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Errors: httpx.FieldErrors(err)})
		return
	}
	role := shared.SessionFromContext(r.Context()).Role()
	httpx.JSON(w, http.StatusOK, Check(role, req.Permissions, req.RequireAll))
}

// Grants describes what role may do, for rendering controls.
func Grants(role policy.Role) Grant {
	return Grant{Role: role, Label: role.Label(), Permissions: policy.Granted(role)}
}

// Check evaluates permission names for role. Names outside the table are
// reported as denied and fail a require-all check.
func Check(role policy.Role, names []string, requireAll bool) CheckResult {
	results := make(map[string]bool, len(names))
	known := make([]policy.Permission, 0, len(names))
	unknown := false
	for _, name := range names {
		perm, ok := policy.ParsePermission(name)
		if !ok {
			results[name] = false
			unknown = true
			continue
		}
		results[name] = policy.IsAllowed(role, perm)
		known = append(known, perm)
	}
	var allowed bool
	if requireAll {
		allowed = !unknown && policy.IsAllowedAll(role, known)
	} else {
		allowed = policy.IsAllowedAny(role, known)
	}
	return CheckResult{Allowed: allowed, Results: results}
}

func rolesView() []map[string]string {
	roles := policy.Roles()
	out := make([]map[string]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, map[string]string{"name": role.String(), "label": role.Label()})
	}
	return out
}
