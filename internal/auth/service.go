package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/platform/httpx"
	"github.com/odyssey-erp/stockgate/internal/shared"
)

// Backend is the subset of the inventory API used for authentication.
type Backend interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (backend.User, error)
}

// Service wraps authentication business rules. Credentials are verified by
// the backend; the gateway only keeps the resulting token in the session.
type Service struct {
	backend Backend
	repo    Repository
	logger  *slog.Logger
}

// NewService constructs a new Service. repo may be nil.
func NewService(b Backend, repo Repository, logger *slog.Logger) *Service {
	if repo == nil {
		repo = NopRepository{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, repo: repo, logger: logger}
}

// Authenticate exchanges credentials for a backend token. Inactive users and
// users without a known role are refused.
func (s *Service) Authenticate(ctx context.Context, username, password string) (backend.LoginResult, error) {
	res, err := s.backend.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrForbidden) {
			return backend.LoginResult{}, shared.ErrInvalidCredentials
		}
		return backend.LoginResult{}, err
	}
	if !res.User.IsActive || !res.User.Role.Valid() {
		s.logger.Warn("login refused", slog.Int64("user_id", res.User.ID), slog.Bool("active", res.User.IsActive))
		s.revoke(ctx, res.Token)
		return backend.LoginResult{}, shared.ErrInvalidCredentials
	}
	return res, nil
}

// Logout revokes the backend token. Failures are logged, never returned.
func (s *Service) Logout(ctx context.Context, token string) {
	s.revoke(ctx, token)
}

// Profile fetches the current profile for token.
func (s *Service) Profile(ctx context.Context, token string) (backend.User, error) {
	return s.backend.Me(ctx, token)
}

// RegisterSession records the login in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

func (s *Service) revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.backend.Logout(ctx, token); err != nil {
		s.logger.Warn("backend logout", slog.Any("error", err))
	}
}
