package account

import "time"

// User is vidra's canonical account record.
//
// PasswordHash and RefreshTokenHash are server-side only; the plain refresh
// token is never persisted, and neither field is ever serialized outward.
// At most one refresh token hash is stored per user (single active session):
// overwriting it on login silently invalidates the previous session.
type User struct {
	ID       string
	Username string // unique, stored lowercase
	Email    string // unique, stored lowercase
	FullName string

	AvatarURL     string
	CoverImageURL string // optional, empty = unset

	PasswordHash     string
	RefreshTokenHash *string // nil = no active session

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the sanitized view of a User handed to callers. It has no
// secret fields at all, so sanitization cannot regress via field scrubbing.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile returns the sanitized view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}
