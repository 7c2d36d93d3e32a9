// Package session owns vidra's credential and session lifecycle.
//
// It issues and verifies the JWT access/refresh token pair, manages the
// single active session per user (the stored refresh token hash), and runs
// the account flows: register, login, logout, refresh rotation, password
// change and profile mutation. The HTTP layer in auth/api is a thin shell
// over this package.
package session
