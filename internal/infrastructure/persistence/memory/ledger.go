package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// LedgerStore implements reward.Repository as an append-only log.
type LedgerStore struct {
	mu     sync.RWMutex
	log    []reward.Entry
	byUser map[string][]int
	keys   map[string]map[string]struct{}
}

var _ reward.Repository = (*LedgerStore)(nil)

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		byUser: make(map[string][]int),
		keys:   make(map[string]map[string]struct{}),
	}
}

// Append adds e unless the user already has an entry with its idempotency key.
func (s *LedgerStore) Append(_ context.Context, e *reward.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.IdempotencyKey != "" {
		keys := s.keys[e.UserID]
		if keys == nil {
			keys = make(map[string]struct{})
			s.keys[e.UserID] = keys
		}
		if _, dup := keys[e.IdempotencyKey]; dup {
			return shared.ErrDuplicateAward
		}
		keys[e.IdempotencyKey] = struct{}{}
	}

	s.byUser[e.UserID] = append(s.byUser[e.UserID], len(s.log))
	s.log = append(s.log, *e)
	return nil
}

// ListByUser returns the user's entries, newest first.
func (s *LedgerStore) ListByUser(_ context.Context, userID string) ([]reward.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userEntries(userID, func(reward.Entry) bool { return true }), nil
}

// ExistsSince reports whether the user has an action entry earned at or after since.
func (s *LedgerStore) ExistsSince(_ context.Context, userID string, action catalog.Action, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.byUser[userID] {
		e := s.log[i]
		if e.Action == action && !e.EarnedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// History returns one page of the user's entries, newest first.
func (s *LedgerStore) History(_ context.Context, userID string, q reward.HistoryQuery) ([]reward.Entry, error) {
	s.mu.RLock()
	entries := s.userEntries(userID, func(e reward.Entry) bool { return q.Kind == "" || e.Kind == q.Kind })
	s.mu.RUnlock()

	if q.Offset >= len(entries) {
		return []reward.Entry{}, nil
	}
	entries = entries[q.Offset:]
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return entries, nil
}

// RecentBadges returns the newest badge entries of all users.
func (s *LedgerStore) RecentBadges(_ context.Context, limit int) ([]reward.Entry, error) {
	s.mu.RLock()
	var out []reward.Entry
	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].Kind == reward.KindBadge {
			out = append(out, s.log[i])
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// userEntries must be called with s.mu held.
func (s *LedgerStore) userEntries(userID string, keep func(reward.Entry) bool) []reward.Entry {
	idx := s.byUser[userID]
	out := make([]reward.Entry, 0, len(idx))
	for j := len(idx) - 1; j >= 0; j-- {
		if e := s.log[idx[j]]; keep(e) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

// sortNewestFirst orders by EarnedAt desc; input already in reverse
// insertion order keeps later appends first on ties.
func sortNewestFirst(entries []reward.Entry) {
	slices.SortStableFunc(entries, func(a, b reward.Entry) int { return b.EarnedAt.Compare(a.EarnedAt) })
}
