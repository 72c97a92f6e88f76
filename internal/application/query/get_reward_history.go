package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET REWARD HISTORY QUERY
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// GetRewardHistoryQuery pages through a user's ledger.
type GetRewardHistoryQuery struct {
	UserID string
	Kind   reward.Kind // empty for all kinds
	Limit  int
	Offset int
}

// Validate checks the query and applies defaults.
func (q *GetRewardHistoryQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.NewDomainError("rewards", "GetRewardHistory", shared.ErrInvalidInput, "user_id is required")
	}
	if q.Kind != "" && !q.Kind.IsValid() {
		return shared.NewDomainError("rewards", "GetRewardHistory", shared.ErrInvalidInput, "unknown reward type "+string(q.Kind))
	}
	if q.Limit < 0 || q.Offset < 0 {
		return shared.NewDomainError("rewards", "GetRewardHistory", shared.ErrInvalidInput, "limit and skip cannot be negative")
	}
	q.Limit = clampLimit(q.Limit, DefaultHistoryLimit, MaxHistoryLimit)
	return nil
}

// RewardHistory is one page of ledger entries, newest first.
type RewardHistory struct {
	Rewards []reward.Entry `json:"rewards"`
	Limit   int            `json:"limit"`
	Skip    int            `json:"skip"`
}

// GetRewardHistoryHandler handles GetRewardHistoryQuery.
type GetRewardHistoryHandler struct {
	ledger reward.Repository
}

// NewGetRewardHistoryHandler creates a new GetRewardHistoryHandler.
func NewGetRewardHistoryHandler(ledger reward.Repository) *GetRewardHistoryHandler {
	return &GetRewardHistoryHandler{ledger: ledger}
}

// Handle returns the requested page.
func (h *GetRewardHistoryHandler) Handle(ctx context.Context, q GetRewardHistoryQuery) (*RewardHistory, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	entries, err := h.ledger.History(ctx, q.UserID, reward.HistoryQuery{Kind: q.Kind, Offset: q.Offset, Limit: q.Limit})
	if err != nil {
		return nil, fmt.Errorf("get_reward_history: %w", err)
	}
	if entries == nil {
		entries = []reward.Entry{}
	}
	return &RewardHistory{Rewards: entries, Limit: q.Limit, Skip: q.Offset}, nil
}
