package authapi

import (
	"net/http"
	"time"
)

// Config controls HTTP auth behavior and cookie/transport defaults. It is
// populated from the app-level configuration; nothing here reads the
// environment.
type Config struct {
	TrustProxy bool

	MaxBodyBytes   int64
	MaxUploadBytes int64

	// UploadDir is where multipart files are staged before the media host
	// takes over. Empty means the OS temp dir.
	UploadDir string

	CookieSecure   bool
	CookieDomain   string
	CookiePath     string
	CookieSameSite http.SameSite

	AccessCookieName  string
	RefreshCookieName string

	LoginIPMax    int
	LoginIPWindow time.Duration
	LoginIDMax    int
	LoginIDWindow time.Duration
}

// DefaultConfig returns production-safe defaults.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20 // 1 MiB
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 16 << 20 // 16 MiB
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = http.SameSiteLaxMode
	}
	if c.AccessCookieName == "" {
		c.AccessCookieName = "access_token"
	}
	if c.RefreshCookieName == "" {
		c.RefreshCookieName = "refresh_token"
	}
	if c.LoginIPMax <= 0 {
		c.LoginIPMax = 20
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = 5 * time.Minute
	}
	if c.LoginIDMax <= 0 {
		c.LoginIDMax = 5
	}
	if c.LoginIDWindow <= 0 {
		c.LoginIDWindow = 15 * time.Minute
	}
	return c
}
