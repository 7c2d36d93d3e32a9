package session

import "errors"

// Token verification failures. Exactly one of these per failure; the service
// layer collapses them all into an undifferentiated auth error before they
// reach a caller.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
)
