package account

import "context"

// Partial describes an atomic field update. Nil pointers are left untouched.
// ClearRefreshToken unsets the refresh token hash (logout); it wins over
// RefreshTokenHash when both are set.
type Partial struct {
	Username      *string
	Email         *string
	FullName      *string
	AvatarURL     *string
	CoverImageURL *string

	PasswordHash      *string
	RefreshTokenHash  *string
	ClearRefreshToken bool
}

// IsZero reports whether p carries no update at all.
func (p Partial) IsZero() bool {
	return p.Username == nil && p.Email == nil && p.FullName == nil &&
		p.AvatarURL == nil && p.CoverImageURL == nil &&
		p.PasswordHash == nil && p.RefreshTokenHash == nil && !p.ClearRefreshToken
}

// Store is the credential persistence boundary.
//
// Lookups return NotFoundError when no record matches. Uniqueness violations
// surface as ConflictError with the offending field. Transport failures are
// wrapped with kind ErrExternal so callers can map them uniformly.
type Store interface {
	// FindByUsernameOrEmail matches either identity column; pass the same
	// value for both to resolve a login identifier. Empty arguments never match.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error)

	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)

	// Create inserts a fully populated record (ID and timestamps set by caller).
	Create(ctx context.Context, u User) (User, error)

	// UpdateFields applies p atomically and returns the updated record.
	UpdateFields(ctx context.Context, id string, p Partial) (User, error)

	// SwapRefreshTokenHash replaces the stored refresh token hash only if it
	// still equals oldHash. Returns false when the stored value changed in the
	// meantime; of N concurrent swaps with the same oldHash at most one wins.
	SwapRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
}
