// Package auth implements the authentication broker: the component that
// lets a client unable to receive an HTTP redirect complete a third-party
// login through a server-mediated, poll-based handshake. The broker owns
// the session lifecycle across three independently-arriving events (the
// client's begin request, the provider's callback, and the client's polls)
// and the cross-checks binding each poll back to its originating client.
package auth

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hexdesk/desk-api/auth/bearertoken"
	"github.com/hexdesk/desk-api/auth/oidcsession"
	"github.com/hexdesk/desk-api/providers"
	"github.com/hexdesk/desk-api/token"
	"github.com/hexdesk/desk-api/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// CodeUUIDError is the structured begin result for a malformed uuid;
	// clients distinguish it from a transport failure.
	CodeUUIDError = "UUID_ERROR"

	defaultExchangeTimeout = 15 * time.Second
	defaultSessionTTL      = 10 * time.Minute
)

// Repos holds all repository dependencies for the Broker.
type Repos struct {
	Sessions oidcsession.Repo // In-flight and completed auth sessions
	Users    users.Repo       // User registry behind the admin flag
	Tokens   bearertoken.Repo // Issued bearer token bindings
}

// Broker orchestrates begin/callback/poll over the session store, the
// provider registry, and the user registry.
type Broker struct {
	repos           Repos
	registry        *providers.Registry
	exchangeTimeout time.Duration    // Deadline imposed on provider exchanges
	sessionTTL      time.Duration    // Lifetime of pending and completed sessions
	nowTime         func() time.Time // nowTime function (injectable for testing)

	provisionMu sync.Mutex // Serializes find-or-create user provisioning
}

// BrokerOption defines a function type to modify the Broker instance.
type BrokerOption func(*Broker)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) BrokerOption {
	return func(b *Broker) {
		b.nowTime = nowFunc
	}
}

// WithExchangeTimeout bounds the provider token exchange. A timeout
// classifies as a retryable network failure, distinct from a provider
// rejection.
func WithExchangeTimeout(d time.Duration) BrokerOption {
	return func(b *Broker) {
		b.exchangeTimeout = d
	}
}

// WithSessionTTL sets the session lifetime used by the reaper.
func WithSessionTTL(d time.Duration) BrokerOption {
	return func(b *Broker) {
		b.sessionTTL = d
	}
}

// NewBroker initializes a new Broker with required dependencies.
func NewBroker(repos Repos, registry *providers.Registry, options ...BrokerOption) (*Broker, error) {
	if repos.Sessions == nil {
		return nil, errors.New("[NewBroker] Sessions repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewBroker] Users repo is required")
	}
	if repos.Tokens == nil {
		return nil, errors.New("[NewBroker] Tokens repo is required")
	}
	if registry == nil {
		return nil, errors.New("[NewBroker] provider registry is required")
	}

	b := &Broker{
		repos:           repos,
		registry:        registry,
		exchangeTimeout: defaultExchangeTimeout,
		sessionTTL:      defaultSessionTTL,
		nowTime:         time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// ProviderOptions lists the display strings of the configured providers.
func (b *Broker) ProviderOptions() []string {
	return b.registry.Keys()
}

// BeginResult is the begin handshake reply: the provider redirect URL the
// client must open in a browser and the session code it will poll with.
// Sentinel values follow the wire contract: {"", "UUID_ERROR"} for a
// malformed uuid, {"", ""} when the provider key cannot be served.
type BeginResult struct {
	URL  string `json:"url"`
	Code string `json:"code"`
}

// UserDescriptor is the completed poll reply.
type UserDescriptor struct {
	AccessToken token.Token
	Name        string
	Email       string
	Admin       bool
}

// BeginAuth starts a handshake: it decodes the client's uuid, resolves the
// provider, generates a fresh session code (also the OAuth state), and
// stores a pending session. Input and lookup failures are resolved here
// into the sentinel BeginResult values; only internal faults return an
// error.
func (b *Broker) BeginAuth(ctx context.Context, correlationID, clientUUIDBase64, providerKey, callbackURL string) (BeginResult, error) {
	uuidBytes, err := base64.StdEncoding.DecodeString(clientUUIDBase64)
	if err != nil {
		log.Debug().Str("id", correlationID).Msg("begin rejected: uuid is not valid base64")
		return BeginResult{URL: "", Code: CodeUUIDError}, nil
	}
	clientUUID := string(uuidBytes)

	cfg, err := b.registry.Resolve(providerKey)
	if err != nil {
		log.Warn().Str("op", providerKey).Msg("begin rejected: provider not configured")
		return BeginResult{}, nil
	}

	strategy, err := b.registry.StrategyFor(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("op", providerKey).Msg("begin rejected: no usable strategy")
		return BeginResult{}, nil
	}

	code, err := token.NewRandom()
	if err != nil {
		return BeginResult{}, errors.Wrap(err, "[BeginAuth] generating session code")
	}

	redirectURL := strategy.RedirectURL(callbackURL, code.String())

	session := &oidcsession.Session{
		ID:          correlationID,
		ClientUUID:  clientUUID,
		Code:        code,
		RedirectURL: redirectURL,
		CallbackURL: callbackURL,
		Strategy:    strategy,
		CreatedAt:   b.nowTime(),
	}
	if err := b.repos.Sessions.Create(session); err != nil {
		return BeginResult{}, errors.Wrap(err, "[BeginAuth] creating session")
	}

	log.Info().Str("op", providerKey).Str("code", code.String()).Msg("auth session started")
	return BeginResult{URL: redirectURL, Code: code.String()}, nil
}

// HandleCallback consumes the provider's redirect: it exchanges the
// authorization code through the session's bound strategy and commits the
// outcome. The exchange runs outside any store lock under the configured
// deadline. On failure the session stays pending and may be retried by a
// later delivery; duplicate deliveries of the same success are idempotent.
func (b *Broker) HandleCallback(ctx context.Context, authorizationCode, sessionCode string) error {
	code, err := token.Parse(sessionCode)
	if err != nil {
		return errors.Wrap(oidcsession.ErrSessionNotFound, "[HandleCallback] malformed session code")
	}

	session, err := b.repos.Sessions.Get(code)
	if err != nil {
		return errors.Wrap(err, "[HandleCallback] session lookup")
	}

	// Duplicate delivery of an already-committed outcome.
	if session.Completed() && session.AuthCode == authorizationCode {
		log.Debug().Str("code", sessionCode).Msg("callback replayed for completed session")
		return nil
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, b.exchangeTimeout)
	defer cancel()
	result, err := session.Strategy.ExchangeCode(exchangeCtx, authorizationCode, session.CallbackURL)
	if err != nil {
		return errors.Wrap(err, "[HandleCallback] exchange")
	}

	user, err := b.provisionUser(result)
	if err != nil {
		return errors.Wrap(err, "[HandleCallback] provisioning user")
	}

	candidate, err := token.NewRandom()
	if err != nil {
		return errors.Wrap(err, "[HandleCallback] issuing bearer token")
	}

	// The keep-or-issue decision runs inside the commit, under the store
	// lock, so concurrent duplicate deliveries agree on one credential: the
	// first commit wins and later ones keep the completed record untouched.
	committed, err := b.repos.Sessions.Commit(code, func(s oidcsession.Session) oidcsession.Session {
		if !s.AuthToken.IsZero() {
			return s
		}
		s.AuthCode = authorizationCode
		s.AuthToken = candidate
		s.Name = result.Name
		s.Email = result.Email
		return s
	})
	if err != nil {
		return errors.Wrap(err, "[HandleCallback] committing session")
	}

	// Bind only the credential the commit kept; a losing candidate is
	// discarded and never becomes a live token.
	if err := b.repos.Tokens.Bind(committed.AuthToken, user.ID); err != nil {
		return errors.Wrap(err, "[HandleCallback] binding bearer token")
	}

	log.Info().Str("code", sessionCode).Str("user", user.ID).Msg("auth session completed")
	return nil
}

// Poll reports the state of a handshake. The reply is nil for an unknown or
// expired code, for a binding mismatch, and for a still-pending session,
// deliberately indistinguishable so session existence never leaks to a
// caller who only observed the code.
func (b *Broker) Poll(sessionCode, correlationID, clientUUIDBase64 string) (*UserDescriptor, error) {
	code, err := token.Parse(sessionCode)
	if err != nil {
		return nil, nil
	}

	session, err := b.repos.Sessions.Get(code)
	if err != nil {
		if errors.Is(err, oidcsession.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Poll] session lookup")
	}

	uuidBytes, err := base64.StdEncoding.DecodeString(clientUUIDBase64)
	if err != nil {
		return nil, nil
	}

	// Bind the poll to the client that started the handshake; a guessed
	// or observed session code alone is not enough.
	if session.ID != correlationID || session.ClientUUID != string(uuidBytes) {
		log.Warn().Str("code", sessionCode).Msg("poll rejected: client binding mismatch")
		return nil, nil
	}

	if !session.Completed() {
		return nil, nil
	}

	admin := false
	if user, err := b.repos.Users.GetByEmail(session.Email); err == nil {
		admin = user.Admin
	} else if user, err := b.repos.Users.GetByName(session.Name); err == nil {
		admin = user.Admin
	}

	return &UserDescriptor{
		AccessToken: session.AuthToken,
		Name:        session.Name,
		Email:       session.Email,
		Admin:       admin,
	}, nil
}

// provisionUser finds or creates the account matching the exchanged
// identity and stamps its last login. Lookup and upsert run under one lock
// so concurrent deliveries of the same identity resolve to one account.
func (b *Broker) provisionUser(result *providers.ExchangeResult) (*users.User, error) {
	b.provisionMu.Lock()
	defer b.provisionMu.Unlock()

	user, err := b.repos.Users.GetByEmail(result.Email)
	if errors.Is(err, users.ErrUserNotFound) {
		user, err = b.repos.Users.GetByName(result.Name)
	}
	if errors.Is(err, users.ErrUserNotFound) {
		user = &users.User{
			ID:        uuid.NewString(),
			Name:      result.Name,
			Email:     result.Email,
			Source:    users.SourceOAuth2,
			CreatedAt: b.nowTime(),
		}
	} else if err != nil {
		return nil, err
	}

	user.LastLogin = b.nowTime()
	if err := b.repos.Users.Upsert(user); err != nil {
		return nil, err
	}
	return user, nil
}

// StartReaper sweeps expired sessions at the given interval until ctx is
// cancelled. Without it the store grows without bound: completed sessions
// nobody polls again and pending sessions the user abandoned would stay
// forever.
func (b *Broker) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := b.nowTime().Add(-b.sessionTTL)
				if reaped := b.repos.Sessions.DeleteExpired(cutoff); reaped > 0 {
					log.Debug().Int("reaped", reaped).Msg("expired auth sessions removed")
				}
			}
		}
	}()
}
