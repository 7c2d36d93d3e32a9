package session

import "time"

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config carries the session secrets and lifetimes. AccessSecret and
// RefreshSecret must be distinct keys; RefreshHashKey keys the at-rest
// digest of stored refresh tokens and must not be shared with either.
type Config struct {
	Issuer string

	AccessSecret  []byte
	RefreshSecret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	RefreshHashKey []byte
}

func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "vidra"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	return c
}
