package redis

import (
	"context"
	"errors"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Computed ranking pages keyed by scope, period and limit. Entries are
// short-lived; the snapshot store stays authoritative.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements query.LeaderboardCache.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// LeaderboardKey returns the cache key of a ranking page.
func LeaderboardKey(pageKey string) string {
	return prefixLeaderboard + pageKey
}

// Get returns the cached page. A miss is hit=false with a nil error.
func (l *LeaderboardCache) Get(ctx context.Context, key string) ([]leaderboard.Entry, bool, error) {
	var entries []leaderboard.Entry
	err := l.cache.Get(ctx, LeaderboardKey(key), &entries)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return entries, true, nil
}

// Set stores a page for ttl.
func (l *LeaderboardCache) Set(ctx context.Context, key string, entries []leaderboard.Entry, ttl time.Duration) error {
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return l.cache.Set(ctx, LeaderboardKey(key), entries, ttl)
}

// InvalidateAll drops every cached page; ranks change after a bulk recalculation.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) (int, error) {
	return l.cache.DeleteByPattern(ctx, prefixLeaderboard+"*")
}
