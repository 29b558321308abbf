package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

// DecisionObserver counts route-level denials.
type DecisionObserver interface {
	ObserveDecision(kind, action, outcome string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers. The role is
// read from the session; the permission table lives in package policy.
type Middleware struct {
	Logger   *slog.Logger
	Observer DecisionObserver
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...policy.Permission) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.require(required, func(role policy.Role) bool {
		return policy.IsAllowedAny(role, required)
	})
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...policy.Permission) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.require(required, func(role policy.Role) bool {
		return policy.IsAllowedAll(role, required)
	})
}

// RequireAuthenticated only checks that a backend session exists.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.SessionFromContext(r.Context()).Authenticated() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) require(required []policy.Permission, allowed func(policy.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if !sess.Authenticated() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if allowed(sess.Role()) {
				next.ServeHTTP(w, r)
				return
			}
			action := ""
			if len(required) > 0 {
				action = required[0].String()
			}
			if m.Logger != nil {
				m.Logger.Info("rbac denied",
					slog.String("user", sess.UserKey()),
					slog.String("role", sess.Role().String()),
					slog.Any("required", required),
					slog.String("path", r.URL.Path))
			}
			if m.Observer != nil {
				m.Observer.ObserveDecision("route", action, shared.OutcomeDenied)
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
		})
	}
}

// normalizePermissions drops duplicates, keeping the first occurrence.
func normalizePermissions(perms []policy.Permission) []policy.Permission {
	seen := make(map[policy.Permission]struct{}, len(perms))
	out := make([]policy.Permission, 0, len(perms))
	for _, p := range perms {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
