// Package account holds vidra's user-account domain: the User record, the
// credential store boundary, and the error taxonomy shared by the auth flows.
//
// Secret fields (password hash, refresh token hash) never leave this package
// except through the store; callers get a Profile instead.
package account
