package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func offlineCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client, "test:")
}

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Equal(t, "carboniq:", cfg.KeyPrefix)
}

func TestCache_Keys(t *testing.T) {
	c := offlineCache(t)
	assert.Equal(t, "test:leaderboard:global:all_time:50", c.Key(LeaderboardKey("global:all_time:50")))
	assert.Equal(t, "test:lock:user:u1", c.Key(LockKey("u1")))
}

func TestCache_RejectsBadArgumentsBeforeNetwork(t *testing.T) {
	c := offlineCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Set(ctx, "k", make(chan int), time.Minute), ErrCacheSerialization)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))

	_, err := c.DeleteByPattern(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestNewUserLock_FillsDefaults(t *testing.T) {
	l := NewUserLock(offlineCache(t), UserLockConfig{})
	def := DefaultUserLockConfig()
	assert.Equal(t, def.TTL, l.config.TTL)
	assert.Equal(t, def.RetryInterval, l.config.RetryInterval)
	assert.Zero(t, l.config.AcquireTimeout)
}

func TestUserLock_ReleaseIsIdempotent(t *testing.T) {
	l := NewUserLock(offlineCache(t), UserLockConfig{})
	release := l.releaser("test:lock:user:u1", "token")
	assert.NotPanics(t, func() {
		release()
		release()
	})
}
