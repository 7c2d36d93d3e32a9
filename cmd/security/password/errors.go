package password

import "errors"

// Public, stable errors for callers.
var (
	// ErrEmptyPassword is the only input Hash rejects.
	ErrEmptyPassword = errors.New("empty password")

	// ErrInvalidHash marks a malformed or unsupported stored hash.
	ErrInvalidHash = errors.New("invalid password hash")
)
