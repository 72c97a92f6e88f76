// Package identity describes the users and institutions the rewards engine
// reads from the external identity collaborator. The engine never writes
// identity data outside the legacy import.
package identity

import (
	"context"
	"time"
)

// User is the identity view needed for stats and leaderboards.
type User struct {
	ID            string
	FullName      string
	InstitutionID string
	JoinedAt      time.Time
}

// Institution groups users for scoped leaderboards.
type Institution struct {
	ID   string
	Name string
	Kind string
}

// Directory resolves identity on demand.
type Directory interface {
	// GetUser returns shared.ErrUserNotFound for unknown ids.
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetInstitution returns shared.ErrInstitutionNotFound for unknown ids.
	GetInstitution(ctx context.Context, institutionID string) (*Institution, error)

	// JoinRank returns the 1-based position of the user ordered by JoinedAt,
	// ties broken by id.
	JoinRank(ctx context.Context, userID string) (int, error)
}

// Writer persists identity records; used by the legacy importer and dev seeding.
type Writer interface {
	SaveUser(ctx context.Context, u *User) error
	SaveInstitution(ctx context.Context, i *Institution) error
}
