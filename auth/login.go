package auth

import (
	"github.com/hexdesk/desk-api/auth/bearertoken"
	"github.com/hexdesk/desk-api/token"
	"github.com/hexdesk/desk-api/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrInvalidCredentials covers every password login failure mode. Unknown
// user, wrong password and disabled account all collapse into it so the
// response does not reveal which one applied.
var ErrInvalidCredentials = errors.New("invalid credentials")

// LoginResult is the password login reply.
type LoginResult struct {
	AccessToken token.Token
	User        *users.User
}

// Login verifies a name/password pair and issues a bearer token bound to
// the account.
func (b *Broker) Login(name, password string) (*LoginResult, error) {
	user, err := b.repos.Users.GetByName(name)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Login] user lookup")
	}
	if user.Disabled || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	issued, err := token.NewRandom()
	if err != nil {
		return nil, errors.Wrap(err, "[Login] issuing bearer token")
	}
	if err := b.repos.Tokens.Bind(issued, user.ID); err != nil {
		return nil, errors.Wrap(err, "[Login] binding bearer token")
	}

	user.LastLogin = b.nowTime()
	if err := b.repos.Users.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "[Login] recording login")
	}

	log.Info().Str("user", user.ID).Msg("password login")
	return &LoginResult{AccessToken: issued, User: user}, nil
}

// UserFromBearer resolves a bearer token to its account. A token that no
// longer maps to a live account reports bearertoken.ErrTokenNotFound.
func (b *Broker) UserFromBearer(tokenText string) (*users.User, error) {
	tok, err := token.Parse(tokenText)
	if err != nil {
		return nil, bearertoken.ErrTokenNotFound
	}
	userID, err := b.repos.Tokens.UserID(tok)
	if err != nil {
		return nil, err
	}
	user, err := b.repos.Users.GetByID(userID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, bearertoken.ErrTokenNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[UserFromBearer] user lookup")
	}
	if user.Disabled {
		return nil, bearertoken.ErrTokenNotFound
	}
	return user, nil
}

// Logout revokes a bearer token. Revoking an unknown token is a no-op.
func (b *Broker) Logout(tokenText string) {
	tok, err := token.Parse(tokenText)
	if err != nil {
		return
	}
	_ = b.repos.Tokens.Revoke(tok)
}
