// Package token implements the fixed-size random credential used throughout
// the broker: the same shape serves as the opaque session code handed to the
// identity provider as "state" and as the bearer token issued to clients
// after a successful login.
package token

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// Length is the size of a token in raw bytes.
const Length = 32

var (
	// ErrInvalidEncoding is returned when a textual token is not valid
	// URL-safe unpadded base64.
	ErrInvalidEncoding = errors.New("token: invalid base64 encoding")
	// ErrInvalidLength is returned when a decoded token is not exactly
	// Length bytes.
	ErrInvalidLength = errors.New("token: decoded length mismatch")
)

// Token is a 32-byte random value. Equality, ordering and hashing are
// defined over the raw bytes; the canonical textual form is URL-safe
// unpadded base64 and round-trips for every value.
type Token [Length]byte

// NewRandom generates a fresh token from crypto/rand.
func NewRandom() (Token, error) {
	var t Token
	if _, err := rand.Read(t[:]); err != nil {
		return Token{}, errors.Wrap(err, "[token.NewRandom] rand.Read")
	}
	return t, nil
}

// MustNewRandom is NewRandom for call sites where a failing system RNG is
// unrecoverable anyway.
func MustNewRandom() Token {
	t, err := NewRandom()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse decodes the canonical textual form back into a Token.
func Parse(s string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, ErrInvalidEncoding
	}
	if len(raw) != Length {
		return Token{}, ErrInvalidLength
	}
	var t Token
	copy(t[:], raw)
	return t, nil
}

// String returns the canonical textual encoding.
func (t Token) String() string {
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// Equal reports whether two tokens carry the same raw bytes.
func (t Token) Equal(other Token) bool {
	return t == other
}

// Compare orders tokens by their raw bytes.
func (t Token) Compare(other Token) int {
	return bytes.Compare(t[:], other[:])
}

// IsZero reports whether the token is the all-zero value, used as the
// "no token issued yet" marker on pending sessions.
func (t Token) IsZero() bool {
	return t == Token{}
}

// MarshalText implements encoding.TextMarshaler so tokens serialize as
// their canonical string form in JSON and YAML.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
