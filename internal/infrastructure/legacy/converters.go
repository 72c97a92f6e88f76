package legacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
)

// ErrSkipped marks a document that cannot be represented in the new model.
var ErrSkipped = errors.New("legacy: document skipped")

func skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSkipped, fmt.Sprintf(format, args...))
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func convertInstitution(d InstitutionDoc) (*identity.Institution, error) {
	if d.ID.IsZero() {
		return nil, skip("institution without _id")
	}
	return &identity.Institution{
		ID:   d.ID.Hex(),
		Name: strings.TrimSpace(d.Name),
		Kind: d.Kind,
	}, nil
}

// convertUser keys the user by email and takes the join time from the
// ObjectID, the only creation timestamp the legacy store kept.
func convertUser(d UserDoc) (*identity.User, error) {
	email := strings.ToLower(strings.TrimSpace(d.Email))
	if email == "" {
		return nil, skip("user %s without email", d.ID.Hex())
	}
	return &identity.User{
		ID:            email,
		FullName:      strings.TrimSpace(d.FullName),
		InstitutionID: d.InstitutionID,
		JoinedAt:      d.ID.Timestamp().UTC(),
	}, nil
}

func convertReport(d ReportDoc) (*report.Report, error) {
	r := &report.Report{
		ID:              d.ID.Hex(),
		CreatedBy:       strings.ToLower(strings.TrimSpace(d.CreatedBy)),
		ImageURL:        deref(d.ImageURL, ""),
		MeasureHeightCm: d.MeasureHeightCm,
		MeasureWidthCm:  d.MeasureWidthCm,
		Feedback:        deref(d.Feedback, ""),
		WasteType:       report.WasteType(d.WasteType),
		Safe:            deref(d.Safe, true),
		UrbanArea:       deref(d.UrbanArea, true),
		Timestamp:       d.Timestamp.UTC(),
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = d.ID.Timestamp().UTC()
	}
	if err := r.Validate(); err != nil {
		return nil, skip("report %s: %v", r.ID, err)
	}
	return r, nil
}

// convertReward maps a user_rewards document to a ledger entry. Badge
// markers take the regular per-badge key so the processor never awards an
// imported badge twice; every other entry is keyed by its ObjectID.
func convertReward(d RewardDoc) (*reward.Entry, error) {
	userID := strings.ToLower(strings.TrimSpace(d.UserEmail))
	if userID == "" {
		return nil, skip("reward %s without user_email", d.ID.Hex())
	}

	kind := reward.Kind(d.RewardType)
	if !kind.IsValid() {
		return nil, skip("reward %s: unknown reward_type %q", d.ID.Hex(), d.RewardType)
	}
	if d.ActionType == "" {
		return nil, skip("reward %s without action_type", d.ID.Hex())
	}

	e := &reward.Entry{
		ID:             uuid.New(),
		UserID:         userID,
		Kind:           kind,
		Points:         d.Points,
		Action:         catalog.Action(d.ActionType),
		Description:    d.Description,
		EarnedAt:       d.EarnedAt.UTC(),
		ReportID:       deref(d.ReportID, ""),
		IdempotencyKey: reward.LegacyKey(d.ID.Hex()),
	}
	if e.EarnedAt.IsZero() {
		e.EarnedAt = d.ID.Timestamp().UTC()
	}

	if kind == reward.KindBadge {
		badge := deref(d.BadgeType, "")
		if badge == "" {
			return nil, skip("badge reward %s without badge_type", d.ID.Hex())
		}
		e.BadgeID = catalog.BadgeID(badge)
		e.Points = nil
		e.IdempotencyKey = reward.BadgeKey(e.BadgeID)
	}
	return e, nil
}
