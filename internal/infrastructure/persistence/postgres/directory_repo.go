package postgres

import (
	"context"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryRepository implements identity.Directory and identity.Writer.
type DirectoryRepository struct {
	conn *Connection
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(conn *Connection) *DirectoryRepository {
	return &DirectoryRepository{conn: conn}
}

// SaveUser inserts or replaces a user.
func (r *DirectoryRepository) SaveUser(ctx context.Context, u *identity.User) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO users (id, full_name, institution_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			institution_id = EXCLUDED.institution_id,
			joined_at = EXCLUDED.joined_at
	`, u.ID, u.FullName, u.InstitutionID, u.JoinedAt.UTC())
	return classify("identity", "SaveUser", err)
}

// SaveInstitution inserts or replaces an institution.
func (r *DirectoryRepository) SaveInstitution(ctx context.Context, i *identity.Institution) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO institutions (id, name, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, kind = EXCLUDED.kind
	`, i.ID, i.Name, i.Kind)
	return classify("identity", "SaveInstitution", err)
}

// GetUser returns the user or shared.ErrUserNotFound.
func (r *DirectoryRepository) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	u := &identity.User{}
	err := r.conn.QueryRow(ctx, `
		SELECT id, full_name, institution_id, joined_at FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.FullName, &u.InstitutionID, &u.JoinedAt)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, classify("identity", "GetUser", err)
	}
	u.JoinedAt = u.JoinedAt.UTC()
	return u, nil
}

// GetInstitution returns the institution or shared.ErrInstitutionNotFound.
func (r *DirectoryRepository) GetInstitution(ctx context.Context, institutionID string) (*identity.Institution, error) {
	i := &identity.Institution{}
	err := r.conn.QueryRow(ctx, `
		SELECT id, name, kind FROM institutions WHERE id = $1
	`, institutionID).Scan(&i.ID, &i.Name, &i.Kind)
	if IsNoRows(err) {
		return nil, shared.ErrInstitutionNotFound
	}
	if err != nil {
		return nil, classify("identity", "GetInstitution", err)
	}
	return i, nil
}

// JoinRank returns 1 + the number of users who joined before userID.
func (r *DirectoryRepository) JoinRank(ctx context.Context, userID string) (int, error) {
	var rank int
	err := r.conn.QueryRow(ctx, `
		SELECT 1 + (
			SELECT count(*) FROM users o
			WHERE (o.joined_at, o.id) < (u.joined_at, u.id)
		)
		FROM users u
		WHERE u.id = $1
	`, userID).Scan(&rank)
	if IsNoRows(err) {
		return 0, shared.ErrUserNotFound
	}
	if err != nil {
		return 0, classify("identity", "JoinRank", err)
	}
	return rank, nil
}
