// Package token provides keyed hashing for opaque token material.
//
// Refresh tokens are never stored verbatim; the session layer stores an
// HMAC-SHA256 digest and compares digests on use. The key is injected at
// construction so this package stays free of environment access.
package token
