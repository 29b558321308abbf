package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/stockgate/internal/backend"
)

const sharedLoadTimeout = 30 * time.Second

// ErrSharedLoad is returned to callers that joined a load started with
// another token which then failed. The original error stays with its owner.
var ErrSharedLoad = fmt.Errorf("snapshot: shared load failed: %w", backend.ErrUnavailable)

// Source loads products from the inventory API.
type Source interface {
	ListProducts(ctx context.Context, token string) ([]backend.Product, error)
}

// Observer receives cache outcomes ("hit", "miss", "bypass").
type Observer interface {
	ObserveSnapshot(outcome string)
}

// Service serves the current snapshot, loading through Redis.
type Service struct {
	source   Source
	cache    *Cache
	logger   *slog.Logger
	observer Observer
	group    singleflight.Group
	clock    func() time.Time

	serviceToken string
	loadTimeout  time.Duration
}

// loadError remembers which token a shared load ran with.
type loadError struct {
	token string
	err   error
}

func (e *loadError) Error() string { return e.err.Error() }

func (e *loadError) Unwrap() error { return e.err }

// NewService wires the snapshot service. cache and observer may be nil.
func NewService(source Source, cache *Cache, logger *slog.Logger, observer Observer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   source,
		cache:    cache,
		logger:   logger,
		observer: observer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		loadTimeout: sharedLoadTimeout,
	}
}

// WithServiceToken makes shared loads use token instead of the first
// caller's session token.
func (s *Service) WithServiceToken(token string) *Service {
	s.serviceToken = token
	return s
}

// Current returns the cached snapshot or loads a fresh one. Concurrent
// callers share a single load that runs detached from any one request and
// with the service token when one is set, otherwise with the first caller's
// token.
func (s *Service) Current(ctx context.Context, token string) (*Snapshot, error) {
	if s == nil || s.source == nil {
		return nil, errors.New("snapshot: service not configured")
	}
	key, err := s.cache.Key(ctx)
	if err != nil {
		s.logger.Warn("snapshot cache version", slog.Any("error", err))
		s.observe("bypass")
		return s.load(ctx, token)
	}
	loadToken := token
	if s.serviceToken != "" {
		loadToken = s.serviceToken
	}
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		var cached Snapshot
		found, err := s.cache.Get(loadCtx, key, &cached)
		if err != nil {
			s.logger.Warn("snapshot cache read", slog.Any("error", err))
		}
		if found {
			s.observe("hit")
			return New(cached.Products, cached.FetchedAt), nil
		}
		s.observe("miss")
		snap, err := s.load(loadCtx, loadToken)
		if err != nil {
			return nil, &loadError{token: loadToken, err: err}
		}
		if err := s.cache.Put(loadCtx, key, snap); err != nil {
			s.logger.Warn("snapshot cache write", slog.Any("error", err))
		}
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, s.sharedError(res.Err, token)
		}
		return res.Val.(*Snapshot), nil
	}
}

// sharedError hands a load failure back unchanged only to callers whose own
// token ran the load.
func (s *Service) sharedError(err error, token string) error {
	var le *loadError
	if !errors.As(err, &le) {
		return err
	}
	if le.token == token {
		return le.err
	}
	s.logger.Warn("shared snapshot load failed", slog.Any("error", le.err))
	return fmt.Errorf("%w: %v", ErrSharedLoad, le.err)
}

// Refresh loads a fresh snapshot and stores it under the current version.
func (s *Service) Refresh(ctx context.Context, token string) (*Snapshot, error) {
	if s == nil || s.source == nil {
		return nil, errors.New("snapshot: service not configured")
	}
	snap, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	key, err := s.cache.Key(ctx)
	if err != nil {
		return snap, fmt.Errorf("snapshot: cache version: %w", err)
	}
	if err := s.cache.Put(ctx, key, snap); err != nil {
		return snap, fmt.Errorf("snapshot: cache write: %w", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot after a stock mutation.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("snapshot: invalidate: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, token string) (*Snapshot, error) {
	products, err := s.source.ListProducts(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load products: %w", err)
	}
	return New(products, s.clock()), nil
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveSnapshot(outcome)
	}
}
