// Package users is the minimal user registry behind the broker: it resolves
// the administrative flag returned to polling clients and backs the
// password-login fallback for operators without a configured provider.
package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthSource records how an account was first established.
type AuthSource string

const (
	SourcePassword AuthSource = "password"
	SourceOAuth2   AuthSource = "oauth2"
)

type User struct {
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"` // never serialize
	Admin        bool       `json:"is_admin"`
	Disabled     bool       `json:"disabled,omitempty"`
	Source       AuthSource `json:"source,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	LastLogin    time.Time  `json:"last_login,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
