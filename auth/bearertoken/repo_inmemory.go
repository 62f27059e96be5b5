package bearertoken

import (
	"sync"

	"github.com/hexdesk/desk-api/token"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
type InMemoryRepo struct {
	mu       sync.RWMutex
	bindings map[token.Token]string
}

// NewInMemoryRepo creates a new in-memory bearer token repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{bindings: make(map[token.Token]string)}
}

// Bind associates a token with a user.
func (r *InMemoryRepo) Bind(tok token.Token, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[tok] = userID
	return nil
}

// UserID resolves a token to the bound user ID.
func (r *InMemoryRepo) UserID(tok token.Token) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.bindings[tok]
	if !ok {
		return "", ErrTokenNotFound
	}
	return userID, nil
}

// Revoke removes a token binding.
func (r *InMemoryRepo) Revoke(tok token.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, tok)
	return nil
}

// Len reports the number of live bindings.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
