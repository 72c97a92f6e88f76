package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/directory"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/memory"
)

type countingDirectory struct {
	identity.Directory
	users, institutions int
}

func (c *countingDirectory) GetUser(ctx context.Context, id string) (*identity.User, error) {
	c.users++
	return c.Directory.GetUser(ctx, id)
}

func (c *countingDirectory) GetInstitution(ctx context.Context, id string) (*identity.Institution, error) {
	c.institutions++
	return c.Directory.GetInstitution(ctx, id)
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func setup(t *testing.T) (*directory.Cached, *countingDirectory, *stepClock) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewDirectoryStore()
	require.NoError(t, store.SaveInstitution(ctx, &identity.Institution{ID: "inst-1", Name: "Green School"}))
	require.NoError(t, store.SaveUser(ctx, &identity.User{ID: "u1", FullName: "Ada", InstitutionID: "inst-1"}))

	next := &countingDirectory{Directory: store}
	clock := &stepClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	cached, err := directory.NewCached(next, directory.Config{Size: 16, TTL: time.Minute}, clock)
	require.NoError(t, err)
	return cached, next, clock
}

func TestCached_ServesRepeatLookupsFromCache(t *testing.T) {
	cached, next, _ := setup(t)
	ctx := context.Background()

	for range 3 {
		inst, err := cached.GetInstitution(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, "Green School", inst.Name)

		u, err := cached.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.FullName)
	}
	assert.Equal(t, 1, next.institutions)
	assert.Equal(t, 1, next.users)
}

func TestCached_ReturnsCopies(t *testing.T) {
	cached, _, _ := setup(t)
	ctx := context.Background()

	inst, err := cached.GetInstitution(ctx, "inst-1")
	require.NoError(t, err)
	inst.Name = "mutated"

	again, err := cached.GetInstitution(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "Green School", again.Name)
}

func TestCached_CachesNotFoundAndExpires(t *testing.T) {
	cached, next, clock := setup(t)
	ctx := context.Background()

	_, err := cached.GetInstitution(ctx, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = cached.GetInstitution(ctx, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 1, next.institutions)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = cached.GetInstitution(ctx, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 2, next.institutions)

	cached.Purge()
	_, err = cached.GetUser(ctx, "u1")
	require.NoError(t, err)
	_, err = cached.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, next.users)
}

func TestCached_JoinRankDelegates(t *testing.T) {
	cached, _, _ := setup(t)
	rank, err := cached.JoinRank(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
}
