package oidcsession

import (
	"sync"
	"time"

	"github.com/hexdesk/desk-api/token"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo. A TTL
// greater than zero makes Get drop expired entries lazily; a periodic
// DeleteExpired sweep handles sessions nobody polls again.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[token.Token]Session

	ttl     time.Duration
	nowTime func() time.Time
}

// InMemoryRepoOption modifies an InMemoryRepo.
type InMemoryRepoOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates a new in-memory session repository. ttl <= 0
// disables lazy expiry.
func NewInMemoryRepo(ttl time.Duration, options ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions: make(map[token.Token]Session),
		ttl:      ttl,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Create inserts a new session under its code.
func (r *InMemoryRepo) Create(session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.Code]; exists {
		return ErrDuplicateSession
	}
	r.sessions[session.Code] = *session
	return nil
}

// Get retrieves a copy of the session by code. Expired entries are dropped
// on access.
func (r *InMemoryRepo) Get(code token.Token) (*Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[code]
	r.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}

	if r.expired(session) {
		r.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// already reaped it.
		if current, still := r.sessions[code]; still && r.expired(current) {
			delete(r.sessions, code)
		}
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	copied := session
	return &copied, nil
}

// Commit atomically applies the update to the stored record. The update
// function must be pure; it runs under the store lock.
func (r *InMemoryRepo) Commit(code token.Token, update func(Session) Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[code]
	if !exists || r.expired(session) {
		return nil, ErrSessionNotFound
	}

	updated := update(session)
	// The key fields never change across a commit.
	updated.Code = session.Code
	updated.ID = session.ID
	updated.ClientUUID = session.ClientUUID
	updated.CreatedAt = session.CreatedAt
	r.sessions[code] = updated

	copied := updated
	return &copied, nil
}

// DeleteExpired removes sessions created before the cutoff.
func (r *InMemoryRepo) DeleteExpired(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for code, session := range r.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(r.sessions, code)
			reaped++
		}
	}
	return reaped
}

// Len reports the number of stored sessions, expired or not.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *InMemoryRepo) expired(session Session) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.nowTime().Sub(session.CreatedAt) > r.ttl
}
