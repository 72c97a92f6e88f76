package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/application/command"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/memory"
)

type stubRanks struct {
	res *command.RecalculateRanksResult
	err error
}

func (s stubRanks) Handle(context.Context) (*command.RecalculateRanksResult, error) {
	return s.res, s.err
}

type stubCache struct {
	calls int
	n     int
	err   error
}

func (c *stubCache) InvalidateAll(context.Context) (int, error) {
	c.calls++
	return c.n, c.err
}

func TestRecalculateRanksJob_RanksAndInvalidates(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewSnapshotStore()
	for id, pts := range map[string]int{"a": 10, "b": 30, "c": 20} {
		s := stats.NewSnapshot(id, id, "")
		s.TotalPoints = pts
		require.NoError(t, snaps.Upsert(ctx, s))
	}

	cache := &stubCache{n: 4}
	job := NewRecalculateRanksJob(command.NewRecalculateRanksHandler(snaps, nil, command.RecalculateRanksConfig{}, nil), cache, nil, RecalculateRanksConfig{})

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 1, cache.calls)

	st := job.LastStats()
	require.NotNil(t, st)
	assert.Equal(t, 3, st.Ranked)
	assert.Equal(t, 4, st.CacheKeysDropped)

	b, err := snaps.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Rank)
}

func TestRecalculateRanksJob_CacheFailureDoesNotFailRun(t *testing.T) {
	cache := &stubCache{err: errors.New("redis down")}
	job := NewRecalculateRanksJob(stubRanks{res: &command.RecalculateRanksResult{Ranked: 2, Batches: 1}}, cache, nil, RecalculateRanksConfig{})

	require.NoError(t, job.Run(context.Background()))
	assert.Error(t, job.LastStats().CacheError)
}

func TestRecalculateRanksJob_HandlerFailureSkipsInvalidation(t *testing.T) {
	cache := &stubCache{}
	job := NewRecalculateRanksJob(stubRanks{err: errors.New("db down")}, cache, nil, RecalculateRanksConfig{})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recalculate ranks")
	assert.Zero(t, cache.calls)
	assert.Equal(t, "recalculate_ranks", job.Name())
}
