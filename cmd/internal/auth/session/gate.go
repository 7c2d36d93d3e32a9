package session

import (
	"context"

	"vidra/cmd/account"
)

// Gate authenticates presented access tokens for the HTTP layer.
type Gate struct {
	tokens *Issuer
	store  account.Store
}

// Authenticate verifies an access token and resolves its user. Any token
// failure, and a token pointing at a deleted user, yield the same auth error.
func (g *Gate) Authenticate(ctx context.Context, presented string) (account.Profile, error) {
	const op = "session.Gate.Authenticate"

	if presented == "" {
		return account.Profile{}, authFailure(op)
	}

	uid, err := g.tokens.Verify(presented, KindAccess)
	if err != nil {
		return account.Profile{}, authFailure(op)
	}

	u, err := g.store.FindByID(ctx, uid)
	switch {
	case account.IsNotFound(err):
		return account.Profile{}, authFailure(op)
	case err != nil:
		return account.Profile{}, err
	}

	return u.Profile(), nil
}
