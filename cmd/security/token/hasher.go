package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes keyed digests of token strings. The zero value is not
// usable; construct with NewHasher.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher bound to the given key. The key should be a
// dedicated secret, not shared with token signing keys.
func NewHasher(key []byte) Hasher {
	k := make([]byte, len(key))
	copy(k, key)
	return Hasher{key: k}
}

// Sum returns the lowercase hex HMAC-SHA256 of the token.
func (h Hasher) Sum(tok string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(tok))
	return hex.EncodeToString(mac.Sum(nil))
}

// Match reports whether the token's digest equals the stored digest.
// Comparison is constant-time.
func (h Hasher) Match(tok, storedHex string) bool {
	return hmac.Equal([]byte(h.Sum(tok)), []byte(storedHex))
}
