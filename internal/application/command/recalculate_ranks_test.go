package command

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	statsmock "github.com/carboniq/carboniq-rewards/internal/domain/stats/mock"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/memory"
	"github.com/carboniq/carboniq-rewards/pkg/retry"
)

func seedSnapshot(t *testing.T, repo stats.Repository, id string, points, reports int) {
	t.Helper()
	s := stats.NewSnapshot(id, id, "")
	s.TotalPoints, s.TotalReports = points, reports
	require.NoError(t, repo.Upsert(context.Background(), s))
}

func TestRecalculateRanks_WritesGlobalOrder(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewSnapshotStore()
	seedSnapshot(t, snaps, "a", 100, 10)
	seedSnapshot(t, snaps, "b", 100, 12)
	seedSnapshot(t, snaps, "c", 50, 40)
	seedSnapshot(t, snaps, "d", 100, 10)

	h := NewRecalculateRanksHandler(snaps, nil, RecalculateRanksConfig{BatchSize: 3}, nil)
	res, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Ranked)
	assert.Equal(t, 2, res.Batches)

	want := map[string]int{"b": 1, "a": 2, "d": 3, "c": 4}
	for id, rank := range want {
		s, err := snaps.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, rank, s.Rank, id)
	}

	// A later recompute keeps the materialized rank.
	a, _ := snaps.Get(ctx, "a")
	a.TotalPoints = 500
	require.NoError(t, snaps.Upsert(ctx, a))
	assert.Equal(t, 2, a.Rank)
}

func TestRecalculateRanks_RetriesUnavailableBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	snaps := statsmock.NewMockRepository(ctrl)

	snaps.EXPECT().List(gomock.Any(), stats.Query{SortKey: stats.SortPoints}).Return([]stats.Snapshot{
		{UserID: "a"}, {UserID: "b"}, {UserID: "c"},
	}, nil)

	var calls atomic.Int32
	snaps.EXPECT().SetRanks(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ranks []stats.RankAssignment) error {
		if calls.Add(1) == 1 {
			return shared.NewDomainError("stats", "SetRanks", shared.ErrStoreUnavailable, "connection reset")
		}
		return nil
	}).Times(3)

	retrier := retry.New(
		retry.WithMaxAttempts(2),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithRetryIf(shared.IsRetryable),
	)
	h := NewRecalculateRanksHandler(snaps, retrier, RecalculateRanksConfig{BatchSize: 2, Concurrency: 1}, nil)

	res, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Ranked)
	assert.Equal(t, 2, res.Batches)
}

func TestRecalculateRanks_StopsOnPermanentFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	snaps := statsmock.NewMockRepository(ctrl)

	snaps.EXPECT().List(gomock.Any(), gomock.Any()).Return([]stats.Snapshot{{UserID: "a"}}, nil)
	snaps.EXPECT().SetRanks(gomock.Any(), gomock.Any()).Return(shared.ErrInvalidScope).Times(1)

	h := NewRecalculateRanksHandler(snaps, nil, RecalculateRanksConfig{}, nil)

	_, err := h.Handle(context.Background())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
