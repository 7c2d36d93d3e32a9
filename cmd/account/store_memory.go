package account

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in dev mode (no database configured)
// and in tests. It honors the same uniqueness and swap semantics as the
// Postgres store.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]User // keyed by ID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (m *MemoryStore) FindByUsernameOrEmail(_ context.Context, username, email string) (User, error) {
	const op = "account.FindByUsernameOrEmail"

	username = NormalizeUsername(username)
	email = NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return User{}, NotFoundError{Op: op, Resource: "user"}
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (User, error) {
	const op = "account.FindByID"

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return u, nil
}

func (m *MemoryStore) FindByUsername(_ context.Context, username string) (User, error) {
	const op = "account.FindByUsername"

	username = NormalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, NotFoundError{Op: op, Resource: "user"}
}

func (m *MemoryStore) Create(_ context.Context, u User) (User, error) {
	const op = "account.Create"

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		if existing.Email == u.Email {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, id string, p Partial) (User, error) {
	const op = "account.UpdateFields"

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	if p.Username != nil {
		next := NormalizeUsername(*p.Username)
		for otherID, other := range m.users {
			if otherID != id && other.Username == next {
				return User{}, ConflictError{Op: op, Field: "username"}
			}
		}
		u.Username = next
	}
	if p.Email != nil {
		next := NormalizeEmail(*p.Email)
		for otherID, other := range m.users {
			if otherID != id && other.Email == next {
				return User{}, ConflictError{Op: op, Field: "email"}
			}
		}
		u.Email = next
	}
	if p.FullName != nil {
		u.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.CoverImageURL != nil {
		u.CoverImageURL = *p.CoverImageURL
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	switch {
	case p.ClearRefreshToken:
		u.RefreshTokenHash = nil
	case p.RefreshTokenHash != nil:
		h := *p.RefreshTokenHash
		u.RefreshTokenHash = &h
	}
	u.UpdatedAt = time.Now().UTC()

	m.users[id] = u
	return u, nil
}

func (m *MemoryStore) SwapRefreshTokenHash(_ context.Context, id, oldHash, newHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash {
		return false, nil
	}
	h := newHash
	u.RefreshTokenHash = &h
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return true, nil
}
