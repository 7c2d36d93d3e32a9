package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind selects which of the two token families a token belongs to. The kind
// is embedded in the claims, so an access token can never pass a refresh
// check even if both secrets were equal by mistake.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type claims struct {
	UserID string `json:"uid"`
	Kind   string `json:"knd"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 tokens, one symmetric secret per kind.
type Issuer struct {
	cfg Config

	// now is injectable for expiry tests.
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg.withDefaults(), now: time.Now}
}

// IssueAccess mints a short-lived access token for userID.
func (i *Issuer) IssueAccess(userID string) (string, error) {
	return i.issue(userID, KindAccess, i.cfg.AccessSecret, i.cfg.AccessTTL)
}

// IssueRefresh mints a long-lived refresh token for userID.
func (i *Issuer) IssueRefresh(userID string) (string, error) {
	return i.issue(userID, KindRefresh, i.cfg.RefreshSecret, i.cfg.RefreshTTL)
}

func (i *Issuer) issue(userID string, kind Kind, secret []byte, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	cl := claims{
		UserID: userID,
		Kind:   string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(secret)
}

// Verify checks signature, expiry, issuer and kind, and returns the subject
// user id. Failures map to exactly one of ErrTokenExpired, ErrTokenSignature
// or ErrTokenMalformed.
func (i *Issuer) Verify(raw string, kind Kind) (string, error) {
	secret := i.cfg.AccessSecret
	if kind == KindRefresh {
		secret = i.cfg.RefreshSecret
	}

	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrTokenSignature
		default:
			return "", ErrTokenMalformed
		}
	}

	if cl.UserID == "" || cl.Kind != string(kind) {
		return "", ErrTokenMalformed
	}
	return cl.UserID, nil
}

// AccessTTL exposes the configured access lifetime (cookie max-age).
func (i *Issuer) AccessTTL() time.Duration { return i.cfg.AccessTTL }

// RefreshTTL exposes the configured refresh lifetime (cookie max-age).
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }
