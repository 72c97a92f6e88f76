package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/application/command"
	"github.com/carboniq/carboniq-rewards/internal/application/query"
	"github.com/carboniq/carboniq-rewards/internal/domain/badge"
	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/locking"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/memory"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

var now = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

const adminToken = "s3cret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *ResponseMeta   `json:"meta"`
}

type testServer struct {
	server      *Server
	store       *memory.Store
	health      *CompositeHealthChecker
	invalidated int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	cat := catalog.Default()
	clock := timeutil.FixedClock(now)
	locker := locking.NewKeyedMutex()

	agg := stats.NewAggregator(store.Reports, store.Ledger, store.Snapshots, store.Directory, clock)
	eval := badge.NewEvaluator(cat, store.Reports, store.Directory, store.Snapshots)

	userStats := query.NewGetUserStatsHandler(store.Snapshots, store.Directory, nil)
	boards := query.NewGetLeaderboardHandler(store.Snapshots, store.Directory, nil, nil, query.GetLeaderboardConfig{}, clock, nil)
	ranks := query.NewGetUserRankHandler(userStats, store.Snapshots, store.Directory, clock, nil)
	progress := query.NewGetAchievementProgressHandler(userStats, eval, clock)

	ts := &testServer{store: store, health: NewCompositeHealthChecker("test")}
	cfg := DefaultConfig()
	cfg.AdminToken = adminToken
	cfg.Version = "test"

	ts.server = NewServer(cfg, Dependencies{
		ProcessReport:       command.NewProcessReportHandler(cat, store.Reports, store.Ledger, agg, eval, locker, clock, nil),
		SyncUserStats:       command.NewSyncUserStatsHandler(cat, store.Ledger, store.Snapshots, agg, locker, nil),
		RecalculateRanks:    command.NewRecalculateRanksHandler(store.Snapshots, nil, command.RecalculateRanksConfig{}, nil),
		UserStats:           userStats,
		Profile:             query.NewGetProfileHandler(userStats, progress, store.Ledger, cat),
		AchievementProgress: progress,
		RewardHistory:       query.NewGetRewardHistoryHandler(store.Ledger),
		PointsBreakdown:     query.NewGetPointsBreakdownHandler(userStats, store.Ledger, cat),
		UserRank:            ranks,
		Leaderboard:         boards,
		CompleteLeaderboard: query.NewGetCompleteLeaderboardHandler(userStats, boards, ranks),
		InstitutionRankings: query.NewGetInstitutionRankingsHandler(store.Snapshots, store.Directory, nil),
		RecentAchievements:  query.NewGetRecentAchievementsHandler(store.Ledger, store.Directory, nil),
		BadgeCatalog:        query.NewGetBadgeCatalogHandler(cat),
		AfterRankRecalculation: func(context.Context) error {
			ts.invalidated++
			return nil
		},
		Health: ts.health,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (int, envelope) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := ts.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (ts *testServer) postReport(t *testing.T, id, user string) (int, envelope) {
	t.Helper()
	body := `{"id":"` + id + `","created_by":"` + user + `","waste_type":"organic","timestamp":"` + now.Format(time.RFC3339) + `"}`
	return ts.do(t, "POST", "/api/v1/rewards/reports", body)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT HOOK
// ══════════════════════════════════════════════════════════════════════════════

func TestProcessReport_AwardsFirstReport(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.postReport(t, "r1", "u1")
	require.Equal(t, 200, status)
	assert.True(t, env.Success)

	var out processReportResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, 60, out.PointsAwarded)
	assert.Equal(t, []catalog.BadgeID{catalog.BadgeFirstReport}, out.NewBadges)
	assert.Equal(t, command.StageDone, out.Stage)
	assert.Empty(t, out.FailedStages)
	require.NotNil(t, out.Stats)
	assert.Equal(t, 60, out.Stats.TotalPoints)
}

func TestProcessReport_DuplicateDeliveryAwardsNothing(t *testing.T) {
	ts := newTestServer(t)

	ts.postReport(t, "r1", "u1")
	status, env := ts.postReport(t, "r1", "u1")
	require.Equal(t, 200, status)

	var out processReportResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 0, out.PointsAwarded)
	require.NotNil(t, out.Stats)
	assert.Equal(t, 60, out.Stats.TotalPoints)
}

func TestProcessReport_RejectsReportIDOfAnotherUser(t *testing.T) {
	ts := newTestServer(t)

	ts.postReport(t, "r1", "u1")
	status, env := ts.postReport(t, "r1", "u2")

	assert.Equal(t, 400, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_request", env.Error.Code)

	status, env = ts.do(t, "GET", "/api/v1/rewards/users/u2/stats", "")
	require.Equal(t, 200, status)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Zero(t, snap.TotalPoints)
}

func TestProcessReport_RejectsInvalidReports(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown waste type", `{"id":"r1","created_by":"u1","waste_type":"plutonium"}`},
		{"missing creator", `{"id":"r1","waste_type":"organic"}`},
		{"malformed json", `{"id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.do(t, "POST", "/api/v1/rewards/reports", tt.body)
			assert.Equal(t, 400, status)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, "invalid_request", env.Error.Code)
		})
	}
}

func TestReportRequest_Defaults(t *testing.T) {
	rep := reportRequest{ID: " r1 ", CreatedBy: "u1", WasteType: "organic"}.toReport(now)

	assert.Equal(t, "r1", rep.ID)
	assert.True(t, rep.Safe)
	assert.True(t, rep.UrbanArea)
	assert.Equal(t, now, rep.Timestamp)

	no := false
	rep = reportRequest{Safe: &no, UrbanArea: &no}.toReport(now)
	assert.False(t, rep.Safe)
	assert.False(t, rep.UrbanArea)
}

func TestFailedStages(t *testing.T) {
	err := errors.Join(
		&command.StageError{Stage: command.StageBadgesEvaluated, Err: errors.New("boom")},
		errors.New("unrelated"),
		&command.StageError{Stage: command.StageStatsRecomputed, Err: errors.New("boom")},
	)
	assert.Equal(t, []string{"badges_evaluated", "stats_recomputed"}, failedStages(err))
	assert.Nil(t, failedStages(nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// USER VIEWS
// ══════════════════════════════════════════════════════════════════════════════

func TestUserStats_UnknownUserGetsZeroSnapshot(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, "GET", "/api/v1/rewards/users/ghost/stats", "")
	require.Equal(t, 200, status)

	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "ghost", snap.UserID)
	assert.Zero(t, snap.TotalPoints)
}

func TestHistory_PaginatesAndFilters(t *testing.T) {
	ts := newTestServer(t)
	ts.postReport(t, "r1", "u1")

	status, env := ts.do(t, "GET", "/api/v1/rewards/users/u1/history?type=badge&limit=1", "")
	require.Equal(t, 200, status)

	var rewards []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rewards))
	require.Len(t, rewards, 1)
	assert.Equal(t, "badge", rewards[0]["kind"])
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Limit)
}

func TestSyncUser_ReturnsDelta(t *testing.T) {
	ts := newTestServer(t)
	ts.postReport(t, "r1", "u1")

	status, env := ts.do(t, "POST", "/api/v1/rewards/users/u1/sync", "")
	require.Equal(t, 200, status)

	var out syncResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 0, out.PointsDelta)
	assert.Equal(t, 60, out.Stats.TotalPoints)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestGlobalLeaderboard_ListsReporters(t *testing.T) {
	ts := newTestServer(t)
	ts.postReport(t, "r1", "u1")
	ts.postReport(t, "r2", "u2")
	ts.postReport(t, "r3", "u2")

	status, env := ts.do(t, "GET", "/api/v1/rewards/leaderboard/global?limit=10", "")
	require.Equal(t, 200, status)

	var res query.LeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "u2", res.Entries[0].UserID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "u1", res.Entries[1].UserID)
}

func TestLeaderboard_InvalidInputs(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/v1/rewards/leaderboard/category/karma",
		"/api/v1/rewards/leaderboard/global?period=fortnight",
	} {
		status, env := ts.do(t, "GET", path, "")
		assert.Equal(t, 400, status, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, "invalid_request", env.Error.Code)
	}
}

func TestInstitutionLeaderboard_ScopesMembers(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.Directory.SaveInstitution(ctx, &identity.Institution{ID: "i1", Name: "North High"}))
	require.NoError(t, ts.store.Directory.SaveUser(ctx, &identity.User{ID: "u1", FullName: "Ada", InstitutionID: "i1"}))
	ts.postReport(t, "r1", "u1")
	ts.postReport(t, "r2", "u2")

	status, env := ts.do(t, "GET", "/api/v1/rewards/leaderboard/institution/i1", "")
	require.Equal(t, 200, status)

	var res query.LeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "u1", res.Entries[0].UserID)
}

func TestBadgeCatalog(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.do(t, "GET", "/api/v1/rewards/badges", "")
	require.Equal(t, 200, status)
	assert.Contains(t, string(env.Data), `"first_report"`)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AND HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestRecalculateRanks_RequiresToken(t *testing.T) {
	ts := newTestServer(t)
	ts.postReport(t, "r1", "u1")
	path := "/api/v1/rewards/admin/recalculate-ranks"

	status, env := ts.do(t, "POST", path, "")
	assert.Equal(t, 401, status)
	assert.Equal(t, "missing_token", env.Error.Code)

	status, env = ts.do(t, "POST", path, "", "X-Admin-Token", "nope")
	assert.Equal(t, 403, status)
	assert.Equal(t, "invalid_token", env.Error.Code)
	assert.Zero(t, ts.invalidated)

	status, env = ts.do(t, "POST", path, "", "Authorization", "Bearer "+adminToken)
	require.Equal(t, 200, status)
	var out recalculateResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 1, out.Ranked)
	assert.Equal(t, 1, ts.invalidated)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.health.AddCheck("store", func(context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := ts.server.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	ts.health.AddCheck("cache", func(context.Context) error { return errors.New("down") })
	resp, err = ts.server.App().Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "failing checks: cache", status.Message)
}
