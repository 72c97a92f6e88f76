package memory

import (
	"context"
	"sync"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// DirectoryStore implements identity.Directory and identity.Writer.
type DirectoryStore struct {
	mu           sync.RWMutex
	users        map[string]identity.User
	institutions map[string]identity.Institution
}

var (
	_ identity.Directory = (*DirectoryStore)(nil)
	_ identity.Writer    = (*DirectoryStore)(nil)
)

// NewDirectoryStore creates an empty DirectoryStore.
func NewDirectoryStore() *DirectoryStore {
	return &DirectoryStore{
		users:        make(map[string]identity.User),
		institutions: make(map[string]identity.Institution),
	}
}

// SaveUser inserts or replaces a user.
func (d *DirectoryStore) SaveUser(_ context.Context, u *identity.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = *u
	return nil
}

// SaveInstitution inserts or replaces an institution.
func (d *DirectoryStore) SaveInstitution(_ context.Context, i *identity.Institution) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.institutions[i.ID] = *i
	return nil
}

// GetUser returns the user with the given id.
func (d *DirectoryStore) GetUser(_ context.Context, userID string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return &u, nil
}

// GetInstitution returns the institution with the given id.
func (d *DirectoryStore) GetInstitution(_ context.Context, institutionID string) (*identity.Institution, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.institutions[institutionID]
	if !ok {
		return nil, shared.ErrInstitutionNotFound
	}
	return &i, nil
}

// JoinRank counts users that joined before the given user, plus one.
func (d *DirectoryStore) JoinRank(_ context.Context, userID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	me, ok := d.users[userID]
	if !ok {
		return 0, shared.ErrUserNotFound
	}

	rank := 1
	for id, u := range d.users {
		if u.JoinedAt.Before(me.JoinedAt) || (u.JoinedAt.Equal(me.JoinedAt) && id < userID) {
			rank++
		}
	}
	return rank, nil
}
