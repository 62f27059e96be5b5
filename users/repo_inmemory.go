package users

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
type InMemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User // id -> user
}

// NewInMemoryRepo creates a new in-memory user repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{users: make(map[string]User)}
}

// Upsert creates or updates a user.
func (r *InMemoryRepo) Upsert(user *User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if user.ID == "" {
		return errors.New("user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID.
func (r *InMemoryRepo) GetByID(id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := user
	return &copied, nil
}

// GetByName retrieves a user by name, case-insensitively.
func (r *InMemoryRepo) GetByName(name string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Name, name) {
			copied := user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *InMemoryRepo) GetByEmail(email string) (*User, error) {
	if email == "" {
		return nil, ErrUserNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

// List returns every stored user.
func (r *InMemoryRepo) List() ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		copied := user
		out = append(out, &copied)
	}
	return out, nil
}
