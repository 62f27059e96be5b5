// Package bearertoken binds issued bearer tokens to user accounts so the
// HTTP layer can authenticate subsequent API calls made with a token the
// broker handed out.
package bearertoken

import (
	"errors"

	"github.com/hexdesk/desk-api/token"
)

// ErrTokenNotFound means the presented token was never issued or has been
// revoked.
var ErrTokenNotFound = errors.New("bearer token not found")

// Repo maps issued tokens to user IDs.
type Repo interface {
	// Bind associates a token with a user. Re-binding the same token to
	// the same user is a no-op.
	Bind(tok token.Token, userID string) error

	// UserID resolves a token to the bound user ID.
	UserID(tok token.Token) (string, error)

	// Revoke removes a token binding. Revoking an unknown token is not an
	// error.
	Revoke(tok token.Token) error
}
