// Package oidcsession holds the in-flight and completed authentication
// sessions the broker coordinates between client begin, provider callback
// and client poll. The store is the only shared mutable state in the broker.
package oidcsession

import (
	"errors"
	"time"

	"github.com/hexdesk/desk-api/providers"
	"github.com/hexdesk/desk-api/token"
)

var (
	// ErrSessionNotFound covers unknown and expired sessions alike;
	// callers cannot distinguish the two by design.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession means a session code collided on Create. Codes
	// are fresh 32-byte random values, so this is an internal fault, not
	// a user error.
	ErrDuplicateSession = errors.New("session code already exists")
)

// Session is the mutable record for one authentication handshake, keyed by
// its session code (also the OAuth "state" parameter). Created at begin,
// committed once at callback, read-only for polls afterwards.
type Session struct {
	// ID is the client-supplied correlation id.
	ID string
	// ClientUUID is the client's random uuid, decoded from its base64
	// request form. Together with ID it binds polls to the originating
	// client.
	ClientUUID string
	// Code is the opaque session code.
	Code token.Token

	// AuthCode is the provider's authorization code, set at callback.
	AuthCode string
	// AuthToken is the issued bearer credential; the zero Token means the
	// session is still pending.
	AuthToken token.Token

	RedirectURL string
	CallbackURL string
	// Strategy is the provider implementation bound at begin time.
	Strategy providers.Strategy

	Name  string
	Email string

	CreatedAt time.Time
}

// Completed reports whether a bearer token has been issued.
func (s *Session) Completed() bool {
	return !s.AuthToken.IsZero()
}

// Repo is the concurrency-safe keyed session store.
type Repo interface {
	// Create inserts a new session under its code.
	Create(session *Session) error

	// Get retrieves a session by code.
	Get(code token.Token) (*Session, error)

	// Commit atomically reads the current record, applies the pure update
	// and replaces it. Readers observe either the pre-commit or the
	// post-commit record in full, never a partial update.
	Commit(code token.Token, update func(Session) Session) (*Session, error)

	// DeleteExpired removes sessions created before the cutoff and
	// returns how many were reaped.
	DeleteExpired(cutoff time.Time) int
}
