package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

// SnapshotStore implements stats.Repository on a concurrent map. Per-key
// Compute gives the version check the atomicity a conditional UPDATE has
// in SQL.
type SnapshotStore struct {
	rows *xsync.MapOf[string, *stats.Snapshot]
}

var _ stats.Repository = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{rows: xsync.NewMapOf[string, *stats.Snapshot]()}
}

// Get returns a copy of the user's snapshot.
func (s *SnapshotStore) Get(_ context.Context, userID string) (*stats.Snapshot, error) {
	row, ok := s.rows.Load(userID)
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	return row.Clone(), nil
}

// Upsert replaces the snapshot if snap.Version matches the stored version.
func (s *SnapshotStore) Upsert(_ context.Context, snap *stats.Snapshot) error {
	var (
		stale  bool
		stored *stats.Snapshot
	)

	s.rows.Compute(snap.UserID, func(old *stats.Snapshot, loaded bool) (*stats.Snapshot, bool) {
		current := int64(0)
		if loaded {
			current = old.Version
		}
		if current != snap.Version {
			stale = true
			return old, !loaded
		}

		next := snap.Clone()
		next.Version = current + 1
		if loaded {
			next.Rank = old.Rank
		}
		stored = next
		return next, false
	})

	if stale {
		return shared.ErrStaleSnapshot
	}
	snap.Version = stored.Version
	snap.Rank = stored.Rank
	return nil
}

// CreateIfAbsent stores snap unless the user already has a snapshot.
func (s *SnapshotStore) CreateIfAbsent(_ context.Context, snap *stats.Snapshot) (*stats.Snapshot, error) {
	fresh := snap.Clone()
	fresh.Version = 1
	actual, _ := s.rows.LoadOrStore(snap.UserID, fresh)
	return actual.Clone(), nil
}

// List returns matching snapshots in q.SortKey order.
func (s *SnapshotStore) List(_ context.Context, q stats.Query) ([]stats.Snapshot, error) {
	key := q.SortKey
	if key == "" {
		key = stats.SortPoints
	}

	var out []stats.Snapshot
	s.rows.Range(func(_ string, row *stats.Snapshot) bool {
		if q.Matches(row) {
			out = append(out, *row.Clone())
		}
		return true
	})

	stats.Sort(key, out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountAhead counts matching snapshots that sort strictly before snap.
func (s *SnapshotStore) CountAhead(_ context.Context, snap *stats.Snapshot, q stats.Query) (int, error) {
	key := q.SortKey
	if key == "" {
		key = stats.SortPoints
	}

	n := 0
	s.rows.Range(func(id string, row *stats.Snapshot) bool {
		if id != snap.UserID && q.Matches(row) && stats.Compare(key, row, snap) < 0 {
			n++
		}
		return true
	})
	return n, nil
}

// SetRanks writes ranks without touching versions.
func (s *SnapshotStore) SetRanks(_ context.Context, ranks []stats.RankAssignment) error {
	for _, r := range ranks {
		s.rows.Compute(r.UserID, func(old *stats.Snapshot, loaded bool) (*stats.Snapshot, bool) {
			if !loaded {
				return nil, true
			}
			next := old.Clone()
			next.Rank = r.Rank
			return next, false
		})
	}
	return nil
}

// InstitutionTotals aggregates snapshots that belong to an institution.
func (s *SnapshotStore) InstitutionTotals(_ context.Context, limit int) ([]stats.InstitutionTotals, error) {
	groups := make(map[string]*stats.InstitutionTotals)
	s.rows.Range(func(_ string, row *stats.Snapshot) bool {
		if row.InstitutionID == "" {
			return true
		}
		g := groups[row.InstitutionID]
		if g == nil {
			g = &stats.InstitutionTotals{InstitutionID: row.InstitutionID}
			groups[row.InstitutionID] = g
		}
		g.Members++
		g.TotalPoints += row.TotalPoints
		g.TotalReports += row.TotalReports
		g.TopStreak = max(g.TopStreak, row.LongestStreak)
		return true
	})

	out := make([]stats.InstitutionTotals, 0, len(groups))
	for _, g := range groups {
		g.AvgPoints = float64(g.TotalPoints) / float64(g.Members)
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b stats.InstitutionTotals) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.InstitutionID, b.InstitutionID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
