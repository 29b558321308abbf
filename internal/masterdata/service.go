package masterdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

// ErrSelfDelete is returned when a user tries to delete their own account.
var ErrSelfDelete = fmt.Errorf("masterdata: cannot delete your own account: %w", httpx.ErrValidation)

// Backend is the subset of the inventory API used for reference data.
type Backend interface {
	ListDocuments(ctx context.Context, token, resource string, query url.Values) (json.RawMessage, error)
	GetDocument(ctx context.Context, token, resource string, id int64) (json.RawMessage, error)
	CreateDocument(ctx context.Context, token, resource string, body []byte) (json.RawMessage, error)
	UpdateDocument(ctx context.Context, token, resource string, id int64, body []byte) (json.RawMessage, error)
	DeleteDocument(ctx context.Context, token, resource string, id int64) error
	DocumentAction(ctx context.Context, token, resource, action string, id int64, body []byte) (json.RawMessage, error)
}

// Invalidator drops the cached stock snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// AuditPort records reference data writes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Role   policy.Role
	Token  string
}

// Service forwards reference data calls. Permissions are enforced by the
// routes; the service audits writes and keeps the snapshot fresh.
type Service struct {
	backend   Backend
	snapshots Invalidator
	audit     AuditPort
	logger    *slog.Logger
}

// NewService builds Service. snapshots and audit may be nil.
func NewService(b Backend, snapshots Invalidator, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, snapshots: snapshots, audit: audit, logger: logger}
}

// List proxies the collection listing with its query string.
func (s *Service) List(ctx context.Context, actor Actor, c Collection, query url.Values) (json.RawMessage, error) {
	return s.backend.ListDocuments(ctx, actor.Token, c.Resource, query)
}

// Get proxies one record.
func (s *Service) Get(ctx context.Context, actor Actor, c Collection, id int64) (json.RawMessage, error) {
	return s.backend.GetDocument(ctx, actor.Token, c.Resource, id)
}

// Create forwards a new record.
func (s *Service) Create(ctx context.Context, actor Actor, c Collection, body []byte) (json.RawMessage, error) {
	out, err := s.backend.CreateDocument(ctx, actor.Token, c.Resource, body)
	s.written(ctx, actor, c, "create", idOf(out), err)
	return out, err
}

// Update forwards a full replacement of record id.
func (s *Service) Update(ctx context.Context, actor Actor, c Collection, id int64, body []byte) (json.RawMessage, error) {
	out, err := s.backend.UpdateDocument(ctx, actor.Token, c.Resource, id, body)
	s.written(ctx, actor, c, "edit", strconv.FormatInt(id, 10), err)
	return out, err
}

// Delete forwards a deletion. Users cannot delete their own account.
func (s *Service) Delete(ctx context.Context, actor Actor, c Collection, id int64) error {
	if c.Resource == usersResource && id == actor.UserID {
		return ErrSelfDelete
	}
	err := s.backend.DeleteDocument(ctx, actor.Token, c.Resource, id)
	s.written(ctx, actor, c, "delete", strconv.FormatInt(id, 10), err)
	return err
}

// ResetPassword sets a new password for user id.
func (s *Service) ResetPassword(ctx context.Context, actor Actor, id int64, password string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"new_password": password})
	if err != nil {
		return nil, err
	}
	out, err := s.backend.DocumentAction(ctx, actor.Token, usersResource, "reset_password", id, body)
	s.written(ctx, actor, Collection{Resource: usersResource}, "reset_password", strconv.FormatInt(id, 10), err)
	return out, err
}

func (s *Service) written(ctx context.Context, actor Actor, c Collection, action, entityID string, err error) {
	outcome := shared.OutcomeAllowed
	var meta map[string]any
	if err != nil {
		outcome = shared.OutcomeFailed
		meta = map[string]any{"error": err.Error()}
		if rej, ok := backend.AsRejected(err); ok {
			meta["status"] = rej.Status
		}
	}
	if s.audit != nil {
		if aerr := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Role:     actor.Role.String(),
			Action:   "masterdata:" + action,
			Entity:   c.Resource,
			EntityID: entityID,
			Outcome:  outcome,
			Meta:     meta,
		}); aerr != nil {
			s.logger.Warn("audit record", slog.Any("error", aerr))
		}
	}
	if err == nil && c.AffectsStock && s.snapshots != nil {
		if ierr := s.snapshots.Invalidate(ctx); ierr != nil {
			s.logger.Warn("invalidate stock snapshot", slog.Any("error", ierr))
		}
	}
}

func idOf(raw json.RawMessage) string {
	var doc struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return doc.ID.String()
}
