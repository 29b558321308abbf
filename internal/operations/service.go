package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/shared"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
	"github.com/odyssey-erp/stockgate/internal/stock"
)

var (
	// ErrPermissionDenied is returned when the actor's role lacks the permission.
	ErrPermissionDenied = fmt.Errorf("operations: permission denied: %w", httpx.ErrForbidden)
	// ErrUnknownKind is returned for document kinds outside the table.
	ErrUnknownKind = fmt.Errorf("operations: unknown document kind: %w", httpx.ErrNotFound)
)

// StockError reports lines that would overdraw the snapshot.
type StockError struct {
	Result stock.FormResult
}

func (e *StockError) Error() string {
	return fmt.Sprintf("operations: insufficient stock on %d line(s)", len(e.Result.Errors))
}

func (e *StockError) Unwrap() error { return httpx.ErrValidation }

// InvalidDraftError carries field errors for a malformed document body.
type InvalidDraftError struct {
	Fields map[string]string
}

func (e *InvalidDraftError) Error() string { return "operations: invalid document" }

func (e *InvalidDraftError) Unwrap() error { return httpx.ErrValidation }

// Backend is the subset of the inventory API the gateway forwards to.
type Backend interface {
	ListDocuments(ctx context.Context, token, resource string, query url.Values) (json.RawMessage, error)
	GetDocument(ctx context.Context, token, resource string, id int64) (json.RawMessage, error)
	CreateDocument(ctx context.Context, token, resource string, body []byte) (json.RawMessage, error)
	ValidateDocument(ctx context.Context, token, resource, action string, id int64) (json.RawMessage, error)
	DeleteDocument(ctx context.Context, token, resource string, id int64) error
}

// Snapshots serves and invalidates stock snapshots.
type Snapshots interface {
	Current(ctx context.Context, token string) (*snapshot.Snapshot, error)
	Invalidate(ctx context.Context) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DecisionObserver counts guard decisions.
type DecisionObserver interface {
	ObserveDecision(kind, action, outcome string)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Role   policy.Role
	Token  string
}

// CheckOutcome is the advisory result plus the lines it was computed from.
type CheckOutcome struct {
	stock.FormResult
	Lines []stock.Line `json:"lines"`
}

// Service gates document operations: permission first, then the advisory
// stock check, then the backend call.
type Service struct {
	backend   Backend
	snapshots Snapshots
	audit     AuditPort
	observer  DecisionObserver
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService builds Service. audit and observer may be nil.
func NewService(b Backend, snapshots Snapshots, audit AuditPort, observer DecisionObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:   b,
		snapshots: snapshots,
		audit:     audit,
		observer:  observer,
		logger:    logger,
		validator: httpx.NewValidator(),
	}
}

// Check runs the advisory check for a drafted document without touching the
// backend documents.
func (s *Service) Check(ctx context.Context, actor Actor, kind Kind, draft Draft) (CheckOutcome, error) {
	if err := s.authorize(ctx, actor, kind, ActionCheck, ""); err != nil {
		return CheckOutcome{}, err
	}
	lines, err := s.lines(ctx, actor, kind, draft)
	if err != nil {
		return CheckOutcome{}, err
	}
	result := stock.Check(lines)
	s.observe(kind, ActionCheck, outcomeOf(result))
	return CheckOutcome{FormResult: result, Lines: lines}, nil
}

// Create validates body, checks stock and forwards the document.
func (s *Service) Create(ctx context.Context, actor Actor, kind Kind, body []byte) (json.RawMessage, error) {
	if err := s.authorize(ctx, actor, kind, ActionCreate, ""); err != nil {
		return nil, err
	}
	draft, err := s.parse(kind, body)
	if err != nil {
		return nil, err
	}
	if err := s.guardStock(ctx, actor, kind, ActionCreate, "", draft); err != nil {
		return nil, err
	}
	out, err := s.backend.CreateDocument(ctx, actor.Token, kind.Resource(), body)
	if err != nil {
		s.forwardFailed(ctx, actor, kind, ActionCreate, "", err)
		return nil, err
	}
	s.forwarded(ctx, actor, kind, ActionCreate, documentID(out))
	return out, nil
}

// Validate re-checks the stored document against the snapshot and asks the
// backend to post its stock moves.
func (s *Service) Validate(ctx context.Context, actor Actor, kind Kind, id int64) (json.RawMessage, error) {
	entityID := strconv.FormatInt(id, 10)
	if err := s.authorize(ctx, actor, kind, ActionValidate, entityID); err != nil {
		return nil, err
	}
	doc, err := s.backend.GetDocument(ctx, actor.Token, kind.Resource(), id)
	if err != nil {
		return nil, err
	}
	draft, err := ParseDraft(doc)
	if err != nil {
		return nil, fmt.Errorf("operations: decode %s %d: %w", kind, id, err)
	}
	if err := s.guardStock(ctx, actor, kind, ActionValidate, entityID, draft); err != nil {
		return nil, err
	}
	out, err := s.backend.ValidateDocument(ctx, actor.Token, kind.Resource(), kinds[kind].action, id)
	if err != nil {
		s.forwardFailed(ctx, actor, kind, ActionValidate, entityID, err)
		return nil, err
	}
	s.forwarded(ctx, actor, kind, ActionValidate, entityID)
	return out, nil
}

// Delete forwards a document deletion.
func (s *Service) Delete(ctx context.Context, actor Actor, kind Kind, id int64) error {
	entityID := strconv.FormatInt(id, 10)
	if err := s.authorize(ctx, actor, kind, ActionDelete, entityID); err != nil {
		return err
	}
	if err := s.backend.DeleteDocument(ctx, actor.Token, kind.Resource(), id); err != nil {
		s.forwardFailed(ctx, actor, kind, ActionDelete, entityID, err)
		return err
	}
	s.forwarded(ctx, actor, kind, ActionDelete, entityID)
	return nil
}

// List proxies the document list.
func (s *Service) List(ctx context.Context, actor Actor, kind Kind, query url.Values) (json.RawMessage, error) {
	if err := s.authorize(ctx, actor, kind, ActionView, ""); err != nil {
		return nil, err
	}
	return s.backend.ListDocuments(ctx, actor.Token, kind.Resource(), query)
}

// Get proxies one document.
func (s *Service) Get(ctx context.Context, actor Actor, kind Kind, id int64) (json.RawMessage, error) {
	if err := s.authorize(ctx, actor, kind, ActionView, strconv.FormatInt(id, 10)); err != nil {
		return nil, err
	}
	return s.backend.GetDocument(ctx, actor.Token, kind.Resource(), id)
}

func (s *Service) authorize(ctx context.Context, actor Actor, kind Kind, action Action, entityID string) error {
	perm, ok := kind.Permission(action)
	if !ok {
		return ErrUnknownKind
	}
	if policy.IsAllowed(actor.Role, perm) {
		return nil
	}
	s.observe(kind, action, shared.OutcomeDenied)
	s.record(ctx, actor, kind, action, entityID, shared.OutcomeDenied, map[string]any{"permission": perm.String()})
	s.logger.Info("operation denied",
		slog.Int64("user_id", actor.UserID),
		slog.String("role", actor.Role.String()),
		slog.String("kind", string(kind)),
		slog.String("action", string(action)),
		slog.String("permission", perm.String()))
	return ErrPermissionDenied
}

func (s *Service) parse(kind Kind, body []byte) (Draft, error) {
	rules := rulesFor(kind)
	if err := json.Unmarshal(body, rules); err != nil {
		return Draft{}, &InvalidDraftError{Fields: map[string]string{"body": "malformed JSON"}}
	}
	if err := s.validator.Struct(rules); err != nil {
		return Draft{}, &InvalidDraftError{Fields: httpx.FieldErrors(err)}
	}
	draft, err := ParseDraft(body)
	if err != nil {
		return Draft{}, &InvalidDraftError{Fields: map[string]string{"body": "malformed JSON"}}
	}
	return draft, nil
}

func (s *Service) guardStock(ctx context.Context, actor Actor, kind Kind, action Action, entityID string, draft Draft) error {
	lines, err := s.lines(ctx, actor, kind, draft)
	if err != nil {
		return err
	}
	result := stock.Check(lines)
	if result.Valid {
		return nil
	}
	s.observe(kind, action, shared.OutcomeBlocked)
	s.record(ctx, actor, kind, action, entityID, shared.OutcomeBlocked, map[string]any{"errors": result.Errors})
	return &StockError{Result: result}
}

// lines builds the stock lines for draft. Inbound kinds never need the
// snapshot. A snapshot that cannot be loaded degrades to a permissive check,
// except for an expired token which must end the session.
func (s *Service) lines(ctx context.Context, actor Actor, kind Kind, draft Draft) ([]stock.Line, error) {
	var cat stock.Catalog
	if kind.Direction() != stock.Inbound && s.snapshots != nil {
		snap, err := s.snapshots.Current(ctx, actor.Token)
		switch {
		case err == nil:
			cat = snap
		case errors.Is(err, httpx.ErrUnauthorized), errors.Is(err, context.Canceled):
			return nil, err
		default:
			s.logger.Warn("stock snapshot unavailable, check is permissive", slog.Any("error", err))
		}
	}
	return draft.StockLines(kind, cat), nil
}

func (s *Service) forwarded(ctx context.Context, actor Actor, kind Kind, action Action, entityID string) {
	s.observe(kind, action, shared.OutcomeAllowed)
	s.record(ctx, actor, kind, action, entityID, shared.OutcomeAllowed, nil)
	if action.mutates() && s.snapshots != nil {
		if err := s.snapshots.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate stock snapshot", slog.Any("error", err))
		}
	}
}

func (s *Service) forwardFailed(ctx context.Context, actor Actor, kind Kind, action Action, entityID string, err error) {
	meta := map[string]any{"error": err.Error()}
	if rej, ok := backend.AsRejected(err); ok {
		meta["status"] = rej.Status
		meta["body"] = rej.Body
	}
	s.observe(kind, action, shared.OutcomeFailed)
	s.record(ctx, actor, kind, action, entityID, shared.OutcomeFailed, meta)
}

func (s *Service) observe(kind Kind, action Action, outcome string) {
	if s.observer != nil {
		s.observer.ObserveDecision(string(kind), string(action), outcome)
	}
}

func (s *Service) record(ctx context.Context, actor Actor, kind Kind, action Action, entityID, outcome string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Role:     actor.Role.String(),
		Action:   "operations:" + string(action),
		Entity:   string(kind),
		EntityID: entityID,
		Outcome:  outcome,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func outcomeOf(result stock.FormResult) string {
	if result.Valid {
		return shared.OutcomeAllowed
	}
	return shared.OutcomeBlocked
}

// documentID reads the id of a created document for the audit trail.
func documentID(raw json.RawMessage) string {
	var doc struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return doc.ID.String()
}
