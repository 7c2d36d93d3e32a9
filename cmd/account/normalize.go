package account

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Usernames are stored and compared lowercase; additional rules (unicode
// confusables) can be layered on later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
