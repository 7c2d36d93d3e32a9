// Package password implements one-way password hashing for vidra accounts.
//
// Hashes are Argon2id in PHC string format, so the salt and cost parameters
// travel inside the stored hash and no separate salt storage is needed.
// Verification is constant-time; a mismatch is a normal false result, not an
// error.
package password
