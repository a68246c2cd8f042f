// Package service holds the business logic between HTTP handlers and
// storage/upstream collaborators:
//
//	DiscoverHandler (HTTP) → DiscoveryService → discovery.Engine (GitHub)
//	                                          ↘ FrontierRepository (DB)
//	AuthHandler (HTTP)     → AuthService      → UserRepository (DB)
//	                                          ↘ TokenService (JWT)
//
// Services never touch http.Request or status codes; they return
// *apperror.AppError values and the handlers map them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/discovery"
	"github.com/sakif/petithub/internal/model"
	"github.com/sakif/petithub/internal/repository"
)

// DefaultSeed is where a frontier search starts when nothing is cached: a
// repository ID known to be allocated.
const DefaultSeed int64 = 815471592

// DefaultFrontierTTL is how long a cached frontier is served before a
// refresh is attempted.
const DefaultFrontierTTL = 10 * time.Minute

// Engine is the part of discovery.Engine the service uses.
type Engine interface {
	FindFrontier(ctx context.Context, seed int64) (int64, error)
	SampleQualifying(ctx context.Context, maxID int64) (*model.RepositoryDetail, error)
	LookupByID(ctx context.Context, id int64) (*discovery.LookupResult, error)
}

var _ Engine = (*discovery.Engine)(nil)

// DiscoveryService owns the frontier cache and fronts the engine.
//
// The engine is stateless; this service decides which frontier to pass it.
// Snapshots are persisted so a restart does not start from DefaultSeed, and
// concurrent refreshes collapse into one search.
type DiscoveryService struct {
	engine    Engine
	frontiers repository.FrontierRepository
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time

	refreshes singleflight.Group
}

// NewDiscoveryService creates a DiscoveryService. ttl <= 0 means
// DefaultFrontierTTL.
func NewDiscoveryService(engine Engine, frontiers repository.FrontierRepository, ttl time.Duration, logger *slog.Logger) *DiscoveryService {
	if ttl <= 0 {
		ttl = DefaultFrontierTTL
	}
	return &DiscoveryService{
		engine:    engine,
		frontiers: frontiers,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// RefreshFrontier runs a frontier search from seed and stores the result.
//
// seed 0 means "continue from the latest snapshot", or DefaultSeed when
// there is none. A search failure is returned as is; callers that can live
// with an older value use CurrentFrontier instead.
func (s *DiscoveryService) RefreshFrontier(ctx context.Context, seed int64) (*model.Frontier, error) {
	if seed < 0 {
		return nil, apperror.ValidationFailed("seed", "seed must not be negative")
	}
	if seed == 0 {
		seed = s.defaultSeed(ctx)
	}

	id, err := s.engine.FindFrontier(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: finding frontier from %d: %w", seed, err)
	}

	f := &model.Frontier{ID: id, Seed: seed, Timestamp: s.now()}

	// The search result is good even if it can't be cached.
	if err := s.frontiers.Save(ctx, f); err != nil {
		s.logger.Warn("failed to store frontier snapshot",
			slog.Int64("frontier", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("frontier refreshed",
		slog.Int64("frontier", id),
		slog.Int64("seed", seed),
	)
	return f, nil
}

// CurrentFrontier returns a usable frontier and never fails.
//
// A snapshot younger than the TTL is returned as is. An older (or missing)
// one triggers a refresh; if that fails the stale snapshot is served, and
// with no snapshot at all DefaultSeed stands in.
func (s *DiscoveryService) CurrentFrontier(ctx context.Context) *model.Frontier {
	latest := s.latest(ctx)
	if latest != nil && latest.Age(s.now()) < s.ttl {
		return latest
	}

	v, err, _ := s.refreshes.Do("frontier", func() (any, error) {
		return s.RefreshFrontier(ctx, 0)
	})
	if err == nil {
		return v.(*model.Frontier)
	}

	if latest != nil {
		s.logger.Warn("frontier refresh failed, serving stale snapshot",
			slog.Int64("frontier", latest.ID),
			slog.Duration("age", latest.Age(s.now())),
			slog.String("error", err.Error()),
		)
		return latest
	}

	s.logger.Warn("frontier refresh failed, using default seed",
		slog.Int64("frontier", DefaultSeed),
		slog.String("error", err.Error()),
	)
	return &model.Frontier{ID: DefaultSeed, Seed: DefaultSeed, Timestamp: s.now()}
}

// History returns up to limit stored snapshots, newest first.
func (s *DiscoveryService) History(ctx context.Context, limit int) ([]model.Frontier, error) {
	history, err := s.frontiers.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: listing frontier history: %w", err)
	}
	return history, nil
}

// Random returns a random qualifying repository at or below maxID.
// maxID 0 means the current frontier.
func (s *DiscoveryService) Random(ctx context.Context, maxID int64) (*model.RepositoryDetail, error) {
	if maxID == 0 {
		maxID = s.CurrentFrontier(ctx).ID
	}

	repo, err := s.engine.SampleQualifying(ctx, maxID)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: sampling below %d: %w", maxID, err)
	}
	return repo, nil
}

// Lookup resolves a repository ID, or reports the next ID in use.
func (s *DiscoveryService) Lookup(ctx context.Context, id int64) (*discovery.LookupResult, error) {
	res, err := s.engine.LookupByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/discovery: looking up %d: %w", id, err)
	}
	return res, nil
}

// latest returns the newest snapshot, or nil. Storage errors are logged:
// a broken cache must not take discovery down.
func (s *DiscoveryService) latest(ctx context.Context) *model.Frontier {
	f, err := s.frontiers.Latest(ctx)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("failed to read frontier snapshot", slog.String("error", err.Error()))
		}
		return nil
	}
	return f
}

func (s *DiscoveryService) defaultSeed(ctx context.Context) int64 {
	if f := s.latest(ctx); f != nil && f.ID > 0 {
		return f.ID
	}
	return DefaultSeed
}
