// Package directory decorates the identity directory with a bounded
// in-process cache. Institutions and users are read on every leaderboard
// page but change rarely.
package directory

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

const (
	DefaultCacheSize = 10000
	DefaultCacheTTL  = 5 * time.Minute
)

// Config sizes the cache.
type Config struct {
	Size int
	TTL  time.Duration
}

type cached struct {
	user        *identity.User
	institution *identity.Institution
	missing     bool
	expiresAt   time.Time
}

// Cached implements identity.Directory over another Directory. Not-found
// answers are cached too. JoinRank is always delegated.
type Cached struct {
	next  identity.Directory
	cache *lru.Cache
	ttl   time.Duration
	clock timeutil.Clock
}

// NewCached wraps next.
func NewCached(next identity.Directory, cfg Config, clock timeutil.Clock) (*Cached, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultCacheSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	cache, err := lru.New(cfg.Size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache, ttl: cfg.TTL, clock: clock}, nil
}

func userKey(id string) string        { return "u:" + id }
func institutionKey(id string) string { return "i:" + id }

func (c *Cached) lookup(key string) (cached, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return cached{}, false
	}
	entry := v.(cached)
	if !c.clock.Now().Before(entry.expiresAt) {
		c.cache.Remove(key)
		return cached{}, false
	}
	return entry, true
}

// GetUser returns a copy of the cached user.
func (c *Cached) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	key := userKey(userID)
	if e, ok := c.lookup(key); ok {
		if e.missing {
			return nil, shared.ErrUserNotFound
		}
		u := *e.user
		return &u, nil
	}

	u, err := c.next.GetUser(ctx, userID)
	switch {
	case shared.IsNotFound(err):
		c.cache.Add(key, cached{missing: true, expiresAt: c.clock.Now().Add(c.ttl)})
		return nil, err
	case err != nil:
		return nil, err
	}

	stored := *u
	c.cache.Add(key, cached{user: &stored, expiresAt: c.clock.Now().Add(c.ttl)})
	return u, nil
}

// GetInstitution returns a copy of the cached institution.
func (c *Cached) GetInstitution(ctx context.Context, institutionID string) (*identity.Institution, error) {
	key := institutionKey(institutionID)
	if e, ok := c.lookup(key); ok {
		if e.missing {
			return nil, shared.ErrInstitutionNotFound
		}
		i := *e.institution
		return &i, nil
	}

	i, err := c.next.GetInstitution(ctx, institutionID)
	switch {
	case shared.IsNotFound(err):
		c.cache.Add(key, cached{missing: true, expiresAt: c.clock.Now().Add(c.ttl)})
		return nil, err
	case err != nil:
		return nil, err
	}

	stored := *i
	c.cache.Add(key, cached{institution: &stored, expiresAt: c.clock.Now().Add(c.ttl)})
	return i, nil
}

// JoinRank delegates; join order shifts as users register.
func (c *Cached) JoinRank(ctx context.Context, userID string) (int, error) {
	return c.next.JoinRank(ctx, userID)
}

// Purge drops all cached entries.
func (c *Cached) Purge() {
	c.cache.Purge()
}
