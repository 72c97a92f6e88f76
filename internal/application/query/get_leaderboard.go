package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/circuitbreaker"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks snapshots for a scope and period. Reads take no locks; results may
// come from a short-lived cache.
// ══════════════════════════════════════════════════════════════════════════════

// Default and maximum page sizes per scope.
const (
	DefaultGlobalLimit      = 50
	MaxGlobalLimit          = 100
	DefaultInstitutionLimit = 20
	MaxInstitutionLimit     = 50
	DefaultCategoryLimit    = 20
	MaxCategoryLimit        = 50
)

// LeaderboardCache stores computed ranking pages.
type LeaderboardCache interface {
	// Get returns hit=false on a miss.
	Get(ctx context.Context, key string) (entries []leaderboard.Entry, hit bool, err error)
	Set(ctx context.Context, key string, entries []leaderboard.Entry, ttl time.Duration) error
}

// GetLeaderboardQuery selects one ranking page.
type GetLeaderboardQuery struct {
	Scope  leaderboard.Scope
	Period leaderboard.Period

	// Limit is the page size; 0 selects the scope default, larger values
	// are capped at the scope maximum.
	Limit int
}

// Validate checks the query and applies limit defaults.
func (q *GetLeaderboardQuery) Validate() error {
	if err := q.Scope.Validate(); err != nil {
		return err
	}
	p, err := leaderboard.ParsePeriod(string(q.Period))
	if err != nil {
		return err
	}
	q.Period = p

	if q.Limit < 0 {
		return shared.NewDomainError("leaderboard", "Validate", shared.ErrInvalidInput, "limit cannot be negative")
	}
	switch q.Scope.Kind {
	case leaderboard.ScopeInstitution:
		q.Limit = clampLimit(q.Limit, DefaultInstitutionLimit, MaxInstitutionLimit)
	case leaderboard.ScopeCategory:
		q.Limit = clampLimit(q.Limit, DefaultCategoryLimit, MaxCategoryLimit)
	default:
		q.Limit = clampLimit(q.Limit, DefaultGlobalLimit, MaxGlobalLimit)
	}
	return nil
}

// LeaderboardResult is one ranking page.
type LeaderboardResult struct {
	Scope   leaderboard.Scope   `json:"-"`
	Period  leaderboard.Period  `json:"period"`
	Entries []leaderboard.Entry `json:"entries"`
	Cached  bool                `json:"cached"`
}

// GetLeaderboardConfig configures caching.
type GetLeaderboardConfig struct {
	// CacheTTL of 0 disables caching.
	CacheTTL time.Duration
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	snapshots    stats.Repository
	institutions InstitutionResolver
	cache        LeaderboardCache
	breaker      *circuitbreaker.CircuitBreaker
	ttl          time.Duration
	clock        timeutil.Clock
	log          *logger.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler. cache and
// breaker may be nil.
func NewGetLeaderboardHandler(
	snapshots stats.Repository,
	institutions InstitutionResolver,
	cache LeaderboardCache,
	breaker *circuitbreaker.CircuitBreaker,
	config GetLeaderboardConfig,
	clock timeutil.Clock,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cache != nil && breaker == nil {
		breaker = circuitbreaker.CacheBreaker(CacheOutage, nil)
	}
	return &GetLeaderboardHandler{
		snapshots:    snapshots,
		institutions: institutions,
		cache:        cache,
		breaker:      breaker,
		ttl:          config.CacheTTL,
		clock:        clock,
		log:          log.With(logger.Component("leaderboard")),
	}
}

// Handle returns the ranking page. Ordering is total: the scope's primary
// key, then points, then reports, then user id.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := q.Scope.CacheKey(q.Period, q.Limit)
	if entries, ok := h.fromCache(ctx, key); ok {
		return &LeaderboardResult{Scope: q.Scope, Period: q.Period, Entries: entries, Cached: true}, nil
	}

	snaps, err := h.snapshots.List(ctx, q.Scope.Query(q.Period, q.Limit, h.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	names := institutionNames(ctx, h.institutions, h.log, snaps)
	entries := make([]leaderboard.Entry, len(snaps))
	for i := range snaps {
		entries[i] = leaderboard.NewEntry(i+1, &snaps[i], names[snaps[i].InstitutionID])
	}

	h.toCache(ctx, key, entries)
	return &LeaderboardResult{Scope: q.Scope, Period: q.Period, Entries: entries}, nil
}

func (h *GetLeaderboardHandler) cacheEnabled() bool {
	return h.cache != nil && h.ttl > 0
}

// CacheOutage reports whether a cache error should count against the
// breaker. A caller that gave up says nothing about Redis.
func CacheOutage(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func (h *GetLeaderboardHandler) fromCache(ctx context.Context, key string) ([]leaderboard.Entry, bool) {
	if !h.cacheEnabled() {
		return nil, false
	}

	var (
		entries []leaderboard.Entry
		hit     bool
	)
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		entries, hit, err = h.cache.Get(ctx, key)
		return err
	})
	if err != nil {
		if !circuitbreaker.IsRejected(err) {
			h.log.Warn("leaderboard cache read failed", logger.String("key", key), logger.Err(err))
		}
		return nil, false
	}
	return entries, hit
}

func (h *GetLeaderboardHandler) toCache(ctx context.Context, key string, entries []leaderboard.Entry) {
	if !h.cacheEnabled() {
		return
	}
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.Set(ctx, key, entries, h.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		h.log.Warn("leaderboard cache write failed", logger.String("key", key), logger.Err(err))
	}
}
