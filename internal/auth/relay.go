package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

// ErrorObserver counts failed backend calls.
type ErrorObserver interface {
	ObserveBackendError(class string)
}

// Relay turns backend errors into responses. A backend 401 means the stored
// token is no longer valid, so the session is destroyed with it.
type Relay struct {
	Sessions *shared.SessionManager
	Logger   *slog.Logger
	Observer ErrorObserver
}

// Error writes the response for err.
func (rl Relay) Error(w http.ResponseWriter, r *http.Request, err error) {
	class := classify(err)
	if rl.Observer != nil && class != "" {
		rl.Observer.ObserveBackendError(class)
	}
	if errors.Is(err, httpx.ErrUnauthorized) {
		if sess := shared.SessionFromContext(r.Context()); sess != nil && rl.Sessions != nil {
			rl.Sessions.Destroy(sess)
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired, please log in again")
		return
	}
	if rej, ok := backend.AsRejected(err); ok {
		httpx.ProblemWith(w, httpx.ProblemDetail{
			Title:  "Rejected by inventory service",
			Status: rej.Status,
			Detail: rejectionDetail(rej.Body),
			Errors: rej.Body,
		})
		return
	}
	if class == "unavailable" || class == "internal" {
		logger := rl.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("backend call failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, httpx.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, httpx.ErrForbidden):
		return "forbidden"
	case errors.Is(err, httpx.ErrNotFound):
		return "not_found"
	case errors.Is(err, httpx.ErrConflict), errors.Is(err, httpx.ErrValidation):
		return "rejected"
	case errors.Is(err, httpx.ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

// rejectionDetail pulls the DRF "detail" or "error" string when present.
func rejectionDetail(body json.RawMessage) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error"} {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return ""
}
