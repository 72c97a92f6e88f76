package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED USER LOCK
// Serializes reward processing for one user across API replicas.
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = shared.NewDomainError("user_lock", "Lock", shared.ErrTimeout, "acquire timed out")

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLockConfig tunes lock expiry and polling.
type UserLockConfig struct {
	// TTL bounds how long a crashed holder can block the user.
	TTL time.Duration

	// RetryInterval is the pause between acquire attempts.
	RetryInterval time.Duration

	// AcquireTimeout caps the total wait; zero waits until ctx is done.
	AcquireTimeout time.Duration
}

// DefaultUserLockConfig returns lock settings sized for one report.
func DefaultUserLockConfig() UserLockConfig {
	return UserLockConfig{
		TTL:            30 * time.Second,
		RetryInterval:  50 * time.Millisecond,
		AcquireTimeout: 10 * time.Second,
	}
}

// UserLock implements command.UserLocker with SET NX PX.
type UserLock struct {
	cache  *Cache
	config UserLockConfig
}

// NewUserLock creates a new UserLock.
func NewUserLock(cache *Cache, cfg UserLockConfig) *UserLock {
	def := DefaultUserLockConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	return &UserLock{cache: cache, config: cfg}
}

// LockKey returns the lock key of a user.
func LockKey(userID string) string {
	return prefixLock + userID
}

// Lock blocks until the user's lock is held and returns its release func.
func (l *UserLock) Lock(ctx context.Context, userID string) (func(), error) {
	if l.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.AcquireTimeout)
		defer cancel()
	}

	key := l.cache.Key(LockKey(userID))
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.Client().SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("user_lock: acquire %s: %w", userID, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// releaser returns an idempotent release func that runs on its own context,
// so the lock is dropped even when the caller's context is already done.
func (l *UserLock) releaser(key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// On failure the TTL expires the lock.
		_ = releaseScript.Run(ctx, l.cache.Client(), []string{key}, token).Err()
	}
}
