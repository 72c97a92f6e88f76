// Package legacy imports the pre-ledger MongoDB data set: users,
// institutions, reports and the user_rewards collection.
package legacy

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InstitutionDoc is a document of the institutions collection.
type InstitutionDoc struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
	Kind string             `bson:"kind"`
}

// UserDoc is a document of the users collection. Legacy users are keyed
// by email everywhere else in the data set.
type UserDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	Email         string             `bson:"email"`
	FullName      string             `bson:"full_name"`
	Role          string             `bson:"role"`
	InstitutionID string             `bson:"institution_id,omitempty"`
}

// ReportDoc is a document of the reports collection.
type ReportDoc struct {
	ID              primitive.ObjectID `bson:"_id"`
	CreatedBy       string             `bson:"created_by"`
	ImageURL        *string            `bson:"image_url"`
	Timestamp       time.Time          `bson:"timestamp"`
	MeasureHeightCm *float64           `bson:"measure_height_cm"`
	MeasureWidthCm  *float64           `bson:"measure_width_cm"`
	WasteType       string             `bson:"waste_type"`
	Feedback        *string            `bson:"feedback"`
	Safe            *bool              `bson:"safe"`
	UrbanArea       *bool              `bson:"urban_area"`
}

// RewardDoc is a document of the user_rewards collection.
type RewardDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	UserEmail   string             `bson:"user_email"`
	RewardType  string             `bson:"reward_type"`
	Points      *int               `bson:"points"`
	BadgeType   *string            `bson:"badge_type"`
	ActionType  string             `bson:"action_type"`
	Description string             `bson:"description"`
	EarnedAt    time.Time          `bson:"earned_at"`
	ReportID    *string            `bson:"report_id"`
}
