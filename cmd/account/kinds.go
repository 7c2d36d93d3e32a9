package account

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	// ErrValidation marks malformed or missing caller input. Never retried.
	ErrValidation = errors.New("validation")

	// ErrConflict marks a uniqueness violation (username or email taken).
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a missing user record.
	ErrNotFound = errors.New("not_found")

	// ErrAuth marks bad credentials or a bad/expired/mismatched token.
	// Deliberately undifferentiated so callers cannot probe which check failed.
	ErrAuth = errors.New("auth")

	// ErrExternal marks a store or media collaborator failure. Safe to retry.
	ErrExternal = errors.New("external_service")

	// ErrInternal marks an invariant violation inside the service itself.
	ErrInternal = errors.New("internal")
)
