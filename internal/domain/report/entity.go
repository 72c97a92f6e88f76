// Package report holds the waste report as the rewards engine sees it.
// Reports are created by an external submission service; the engine only
// consumes the fact of creation together with the report fields.
package report

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// WasteType classifies the reported waste.
type WasteType string

const (
	WasteOrganic           WasteType = "organic"
	WasteRecyclablePlastic WasteType = "recyclable_plastic"
	WasteRecyclablePaper   WasteType = "recyclable_paper"
	WasteRecyclableGlass   WasteType = "recyclable_glass"
	WasteElectronic        WasteType = "e_waste"
	WasteCollection        WasteType = "waste_collection"
	WasteMixed             WasteType = "mixed"
)

// AllWasteTypes returns the known waste types in a stable order.
func AllWasteTypes() []WasteType {
	return []WasteType{
		WasteOrganic,
		WasteRecyclablePlastic,
		WasteRecyclablePaper,
		WasteRecyclableGlass,
		WasteElectronic,
		WasteCollection,
		WasteMixed,
	}
}

// IsValid reports whether w is one of the known waste types.
func (w WasteType) IsValid() bool {
	for _, known := range AllWasteTypes() {
		if w == known {
			return true
		}
	}
	return false
}

// Predicate selects a subset of a user's reports for windowed counts.
type Predicate string

const (
	PredicateAny       Predicate = "any"
	PredicateSafe      Predicate = "safe"
	PredicateUrban     Predicate = "urban"
	PredicateRural     Predicate = "rural"
	PredicateDetailed  Predicate = "detailed"
	PredicateWithImage Predicate = "with_image"
)

// IsValid reports whether p is a known predicate.
func (p Predicate) IsValid() bool {
	switch p {
	case PredicateAny, PredicateSafe, PredicateUrban, PredicateRural, PredicateDetailed, PredicateWithImage:
		return true
	}
	return false
}

// Matches applies the predicate to a single report.
func (p Predicate) Matches(r Report) bool {
	switch p {
	case PredicateSafe:
		return r.Safe
	case PredicateUrban:
		return r.UrbanArea
	case PredicateRural:
		return !r.UrbanArea
	case PredicateDetailed:
		return r.IsDetailed()
	case PredicateWithImage:
		return r.HasImage()
	default:
		return true
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Report is an immutable record of a submitted waste report.
type Report struct {
	ID              string
	CreatedBy       string
	ImageURL        string
	MeasureHeightCm *float64
	MeasureWidthCm  *float64
	Feedback        string
	WasteType       WasteType
	Safe            bool
	UrbanArea       bool
	Timestamp       time.Time
}

// Validate checks the fields the engine relies on.
func (r Report) Validate() error {
	var errs []error
	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, errors.New("report id is required"))
	}
	if strings.TrimSpace(r.CreatedBy) == "" {
		errs = append(errs, errors.New("created_by is required"))
	}
	if !r.WasteType.IsValid() {
		errs = append(errs, errors.New("unknown waste_type "+string(r.WasteType)))
	}
	if r.Timestamp.IsZero() {
		errs = append(errs, errors.New("timestamp is required"))
	}
	return errors.Join(errs...)
}

// HasImage reports whether an image was attached.
func (r Report) HasImage() bool {
	return strings.TrimSpace(r.ImageURL) != ""
}

// IsDetailed reports whether both measurements and feedback are present.
func (r Report) IsDetailed() bool {
	return r.MeasureHeightCm != nil && *r.MeasureHeightCm > 0 &&
		r.MeasureWidthCm != nil && *r.MeasureWidthCm > 0 &&
		strings.TrimSpace(r.Feedback) != ""
}

// Field returns the string form of a report attribute used by point
// multipliers. Unknown fields return ok=false.
func (r Report) Field(name string) (value string, ok bool) {
	switch name {
	case "waste_type":
		return string(r.WasteType), true
	case "has_image":
		return boolString(r.HasImage()), true
	case "safe":
		return boolString(r.Safe), true
	case "urban_area":
		return boolString(r.UrbanArea), true
	case "detailed":
		return boolString(r.IsDetailed()), true
	}
	return "", false
}

// MultiplierFields lists the attributes Field understands.
func MultiplierFields() []string {
	return []string{"waste_type", "has_image", "safe", "urban_area", "detailed"}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the read side of the report store plus Save for the
// creation hook and the legacy importer.
type Repository interface {
	// Save stores a report. Saving an existing id for the same user is a
	// no-op; an id already stored for another user returns
	// shared.ErrReportOwnerConflict.
	Save(ctx context.Context, r *Report) error

	// ListByUser returns all reports of a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]Report, error)

	// Count returns the number of the user's reports at or after since
	// that match pred. A zero since counts all history.
	Count(ctx context.Context, userID string, since time.Time, pred Predicate) (int, error)
}
