package catalog

import (
	"errors"
	"fmt"

	"github.com/carboniq/carboniq-rewards/internal/domain/report"
)

// BadgeID identifies a badge definition.
type BadgeID string

// RequirementKind tags the variant held by a Requirement.
type RequirementKind string

const (
	// KindTotalReports: snapshot total_reports >= Threshold.
	KindTotalReports RequirementKind = "total_reports"
	// KindImagesCount: snapshot reports_with_images >= Threshold.
	KindImagesCount RequirementKind = "images_count"
	// KindStreakDays: snapshot longest_streak >= Threshold.
	KindStreakDays RequirementKind = "streak_days"
	// KindDistinctWasteTypes: distinct waste types reported >= Threshold.
	KindDistinctWasteTypes RequirementKind = "distinct_waste_types"
	// KindWindowedCount: live count of reports matching Predicate in Window >= Threshold.
	KindWindowedCount RequirementKind = "windowed_count"
	// KindJoinOrder: the user is among the first Threshold users to join.
	KindJoinOrder RequirementKind = "join_order"
	// KindInstitutionLeader: the user is within the top Threshold reporters
	// of their institution.
	KindInstitutionLeader RequirementKind = "institution_leader"
)

// Requirement is a tagged variant. Kind selects which of the remaining
// fields are meaningful; Validate rejects combinations that do not fit.
type Requirement struct {
	Kind      RequirementKind  `json:"kind"`
	Threshold int              `json:"threshold"`
	Window    Window           `json:"window,omitempty"`
	Predicate report.Predicate `json:"predicate,omitempty"`
}

// TotalReports requires at least n reports overall.
func TotalReports(n int) Requirement {
	return Requirement{Kind: KindTotalReports, Threshold: n}
}

// ImagesCount requires at least n reports with an image.
func ImagesCount(n int) Requirement {
	return Requirement{Kind: KindImagesCount, Threshold: n}
}

// StreakDays requires a longest streak of at least n days.
func StreakDays(n int) Requirement {
	return Requirement{Kind: KindStreakDays, Threshold: n}
}

// DistinctWasteTypes requires at least n different waste types.
func DistinctWasteTypes(n int) Requirement {
	return Requirement{Kind: KindDistinctWasteTypes, Threshold: n}
}

// WindowedCount requires at least n reports matching pred within window.
func WindowedCount(window Window, pred report.Predicate, n int) Requirement {
	return Requirement{Kind: KindWindowedCount, Threshold: n, Window: window, Predicate: pred}
}

// JoinOrder requires the user to be among the first n to join.
func JoinOrder(n int) Requirement {
	return Requirement{Kind: KindJoinOrder, Threshold: n}
}

// InstitutionLeader requires a top-n reports position within the user's institution.
func InstitutionLeader(n int) Requirement {
	return Requirement{Kind: KindInstitutionLeader, Threshold: n}
}

// AtMost reports whether the requirement is met by a value at or below
// Threshold (a position) rather than at or above it (a count).
func (r Requirement) AtMost() bool {
	return r.Kind == KindJoinOrder || r.Kind == KindInstitutionLeader
}

// Validate checks that the variant is well-formed.
func (r Requirement) Validate() error {
	if r.Threshold <= 0 {
		return fmt.Errorf("requirement %q: threshold must be positive, got %d", r.Kind, r.Threshold)
	}

	switch r.Kind {
	case KindWindowedCount:
		if !r.Window.IsValid() {
			return fmt.Errorf("requirement %q: unknown window %q", r.Kind, r.Window)
		}
		if !r.Predicate.IsValid() {
			return fmt.Errorf("requirement %q: unknown predicate %q", r.Kind, r.Predicate)
		}
		return nil
	case KindTotalReports, KindImagesCount, KindStreakDays, KindDistinctWasteTypes,
		KindJoinOrder, KindInstitutionLeader:
		if r.Window != "" || r.Predicate != "" {
			return fmt.Errorf("requirement %q: window and predicate apply only to %q", r.Kind, KindWindowedCount)
		}
		return nil
	case "":
		return errors.New("requirement kind is required")
	default:
		return fmt.Errorf("unknown requirement kind %q", r.Kind)
	}
}

// Badge is a permanent, non-revocable achievement definition.
type Badge struct {
	ID          BadgeID     `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Requirement Requirement `json:"requirement"`
}
