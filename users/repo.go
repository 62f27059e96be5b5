package users

import "errors"

// ErrUserNotFound is returned by lookups that match no user.
var ErrUserNotFound = errors.New("user not found")

// Repo is the user registry contract. Persistence format is out of scope
// here; the in-memory implementation serves single-process deployments and
// tests alike.
type Repo interface {
	Upsert(user *User) error
	GetByID(id string) (*User, error)
	GetByName(name string) (*User, error)
	GetByEmail(email string) (*User, error)
	List() ([]*User, error)
}
