package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hexdesk/desk-api/auth/bearertoken"
	"github.com/hexdesk/desk-api/auth/oidcsession"
	"github.com/hexdesk/desk-api/providers"
	"github.com/hexdesk/desk-api/token"
	"github.com/hexdesk/desk-api/users"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStrategy is a controllable providers.Strategy for driving the broker
// through callback outcomes without a live provider.
type stubStrategy struct {
	result    *providers.ExchangeResult
	err       error
	exchanges int
}

func (s *stubStrategy) RedirectURL(callbackURL, state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (s *stubStrategy) ExchangeCode(ctx context.Context, code, callbackURL string) (*providers.ExchangeResult, error) {
	s.exchanges++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubStrategy) Kind() providers.Kind { return providers.KindDex }

type brokerFixture struct {
	broker   *Broker
	sessions *oidcsession.InMemoryRepo
	users    *users.InMemoryRepo
	tokens   *bearertoken.InMemoryRepo
	now      time.Time
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()
	registry, err := providers.NewRegistry([]providers.Config{
		{
			Kind:         providers.KindGithub,
			Op:           "github",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
	})
	require.NoError(t, err)

	f := &brokerFixture{
		users:  users.NewInMemoryRepo(),
		tokens: bearertoken.NewInMemoryRepo(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sessions = oidcsession.NewInMemoryRepo(10*time.Minute,
		oidcsession.WithNowTime(func() time.Time { return f.now }))
	f.broker, err = NewBroker(Repos{
		Sessions: f.sessions,
		Users:    f.users,
		Tokens:   f.tokens,
	}, registry, WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	return f
}

// seedSession installs a pending session bound to the given strategy,
// standing in for a prior BeginAuth.
func (f *brokerFixture) seedSession(t *testing.T, strategy providers.Strategy) *oidcsession.Session {
	t.Helper()
	code := token.MustNewRandom()
	session := &oidcsession.Session{
		ID:          "client-1",
		ClientUUID:  "machine-uuid",
		Code:        code,
		CallbackURL: "https://desk.example.com/api/oidc/callback",
		Strategy:    strategy,
		CreatedAt:   f.now,
	}
	require.NoError(t, f.sessions.Create(session))
	return session
}

func uuidB64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestBeginAuthStartsPendingSession(t *testing.T) {
	f := newBrokerFixture(t)

	result, err := f.broker.BeginAuth(context.Background(), "client-1", uuidB64("machine-uuid"), "github", "https://desk.example.com/api/oidc/callback")
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
	assert.Contains(t, result.URL, "state="+result.Code)
	assert.Contains(t, result.URL, "client_id=client-id")
	assert.Contains(t, result.URL, "redirect_uri="+url.QueryEscape("https://desk.example.com/api/oidc/callback"))

	code, err := token.Parse(result.Code)
	require.NoError(t, err)
	session, err := f.sessions.Get(code)
	require.NoError(t, err)
	assert.Equal(t, "client-1", session.ID)
	assert.Equal(t, "machine-uuid", session.ClientUUID)
	assert.False(t, session.Completed())
}

func TestBeginAuthDistinctCodes(t *testing.T) {
	f := newBrokerFixture(t)

	first, err := f.broker.BeginAuth(context.Background(), "client-1", uuidB64("machine-uuid"), "github", "https://desk.example.com/cb")
	require.NoError(t, err)
	second, err := f.broker.BeginAuth(context.Background(), "client-1", uuidB64("machine-uuid"), "github", "https://desk.example.com/cb")
	require.NoError(t, err)

	assert.NotEqual(t, first.Code, second.Code)
	assert.Equal(t, 2, f.sessions.Len())
}

func TestBeginAuthMalformedUUID(t *testing.T) {
	f := newBrokerFixture(t)

	result, err := f.broker.BeginAuth(context.Background(), "client-1", "not!!base64", "github", "https://desk.example.com/cb")
	require.NoError(t, err)
	assert.Equal(t, BeginResult{URL: "", Code: CodeUUIDError}, result)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestBeginAuthUnknownProvider(t *testing.T) {
	f := newBrokerFixture(t)

	result, err := f.broker.BeginAuth(context.Background(), "client-1", uuidB64("machine-uuid"), "no-such-op", "https://desk.example.com/cb")
	require.NoError(t, err)
	assert.Equal(t, BeginResult{}, result)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestHandleCallbackCompletesSession(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{result: &providers.ExchangeResult{
		AccessToken: "provider-token",
		Name:        "Ann",
		Email:       "ann@example.com",
	}}
	session := f.seedSession(t, stub)

	err := f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String())
	require.NoError(t, err)

	got, err := f.sessions.Get(session.Code)
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "ann@example.com", got.Email)

	userID, err := f.tokens.UserID(got.AuthToken)
	require.NoError(t, err)
	user, err := f.users.GetByID(userID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, users.SourceOAuth2, user.Source)
}

func TestHandleCallbackUnknownCode(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{result: &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}}
	f.seedSession(t, stub)

	err := f.broker.HandleCallback(context.Background(), "auth-code-1", token.MustNewRandom().String())
	require.ErrorIs(t, err, oidcsession.ErrSessionNotFound)
	assert.Zero(t, stub.exchanges)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestHandleCallbackMalformedCode(t *testing.T) {
	f := newBrokerFixture(t)

	err := f.broker.HandleCallback(context.Background(), "auth-code-1", "definitely not a token")
	require.ErrorIs(t, err, oidcsession.ErrSessionNotFound)
}

func TestHandleCallbackExchangeFailureKeepsSessionPending(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{err: providers.NewExchangeError(providers.ReasonRejected, errors.New("bad code"))}
	session := f.seedSession(t, stub)

	err := f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String())
	require.Error(t, err)

	var exchangeErr *providers.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, providers.ReasonRejected, exchangeErr.Reason)

	got, err := f.sessions.Get(session.Code)
	require.NoError(t, err)
	assert.False(t, got.Completed())
}

func TestHandleCallbackRetryAfterFailure(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{err: providers.NewExchangeError(providers.ReasonNetwork, errors.New("timeout"))}
	session := f.seedSession(t, stub)

	require.Error(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))

	stub.err = nil
	stub.result = &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}
	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))

	got, err := f.sessions.Get(session.Code)
	require.NoError(t, err)
	assert.True(t, got.Completed())
}

func TestHandleCallbackDuplicateDeliveryIdempotent(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{result: &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}}
	session := f.seedSession(t, stub)

	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))
	first, err := f.sessions.Get(session.Code)
	require.NoError(t, err)

	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))
	second, err := f.sessions.Get(session.Code)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.exchanges)
	assert.Equal(t, first.AuthToken, second.AuthToken)
}

// barrierStrategy holds every exchange at a rendezvous so the test can put
// two deliveries inside ExchangeCode at the same time before releasing them.
type barrierStrategy struct {
	entered chan struct{}
	release chan struct{}
	result  *providers.ExchangeResult
}

func (s *barrierStrategy) RedirectURL(callbackURL, state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (s *barrierStrategy) ExchangeCode(ctx context.Context, code, callbackURL string) (*providers.ExchangeResult, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.result, nil
}

func (s *barrierStrategy) Kind() providers.Kind { return providers.KindDex }

func TestHandleCallbackConcurrentDuplicateDelivery(t *testing.T) {
	f := newBrokerFixture(t)
	strategy := &barrierStrategy{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
		result:  &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"},
	}
	session := f.seedSession(t, strategy)

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			errs <- f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String())
		}()
	}

	// Both deliveries sit inside the exchange before either commits, so
	// each sees a pending session snapshot.
	<-strategy.entered
	<-strategy.entered
	close(strategy.release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	got, err := f.sessions.Get(session.Code)
	require.NoError(t, err)
	require.True(t, got.Completed())

	// Exactly one credential was minted and it is the session's; the
	// losing delivery's candidate never became a live token.
	assert.Equal(t, 1, f.tokens.Len())
	userID, err := f.tokens.UserID(got.AuthToken)
	require.NoError(t, err)
	_, err = f.users.GetByID(userID)
	require.NoError(t, err)

	// Both deliveries resolved to one account.
	list, err := f.users.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPollPendingSession(t *testing.T) {
	f := newBrokerFixture(t)
	session := f.seedSession(t, &stubStrategy{})

	descriptor, err := f.broker.Poll(session.Code.String(), "client-1", uuidB64("machine-uuid"))
	require.NoError(t, err)
	assert.Nil(t, descriptor)
}

func TestPollCompletedSession(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{result: &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}}
	session := f.seedSession(t, stub)
	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))

	descriptor, err := f.broker.Poll(session.Code.String(), "client-1", uuidB64("machine-uuid"))
	require.NoError(t, err)
	require.NotNil(t, descriptor)
	assert.Equal(t, "Ann", descriptor.Name)
	assert.Equal(t, "ann@example.com", descriptor.Email)
	assert.False(t, descriptor.Admin)
	assert.False(t, descriptor.AccessToken.IsZero())

	// The issued token authenticates API calls.
	user, err := f.broker.UserFromBearer(descriptor.AccessToken.String())
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
}

func TestPollBindingMismatch(t *testing.T) {
	f := newBrokerFixture(t)
	stub := &stubStrategy{result: &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}}
	session := f.seedSession(t, stub)
	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))

	tests := []struct {
		name string
		id   string
		uuid string
	}{
		{name: "wrong id", id: "client-2", uuid: uuidB64("machine-uuid")},
		{name: "wrong uuid", id: "client-1", uuid: uuidB64("other-machine")},
		{name: "undecodable uuid", id: "client-1", uuid: "not!!base64"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			descriptor, err := f.broker.Poll(session.Code.String(), tc.id, tc.uuid)
			require.NoError(t, err)
			assert.Nil(t, descriptor)
		})
	}
}

func TestPollUnknownCode(t *testing.T) {
	f := newBrokerFixture(t)

	descriptor, err := f.broker.Poll(token.MustNewRandom().String(), "client-1", uuidB64("machine-uuid"))
	require.NoError(t, err)
	assert.Nil(t, descriptor)

	descriptor, err = f.broker.Poll("garbage", "client-1", uuidB64("machine-uuid"))
	require.NoError(t, err)
	assert.Nil(t, descriptor)
}

func TestPollAdminFlagFromUserRegistry(t *testing.T) {
	f := newBrokerFixture(t)
	require.NoError(t, f.users.Upsert(&users.User{
		ID:    "admin-1",
		Name:  "Ann",
		Email: "ann@example.com",
		Admin: true,
	}))

	stub := &stubStrategy{result: &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}}
	session := f.seedSession(t, stub)
	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))

	descriptor, err := f.broker.Poll(session.Code.String(), "client-1", uuidB64("machine-uuid"))
	require.NoError(t, err)
	require.NotNil(t, descriptor)
	assert.True(t, descriptor.Admin)
}

func TestHandleCallbackReusesExistingAccount(t *testing.T) {
	f := newBrokerFixture(t)
	require.NoError(t, f.users.Upsert(&users.User{
		ID:    "user-1",
		Name:  "Ann",
		Email: "ann@example.com",
	}))

	stub := &stubStrategy{result: &providers.ExchangeResult{Name: "Ann", Email: "ann@example.com"}}
	session := f.seedSession(t, stub)
	require.NoError(t, f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String()))

	list, err := f.users.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "user-1", list[0].ID)
	assert.Equal(t, f.now, list[0].LastLogin)
}

func TestExchangeTimeoutApplied(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	f := newBrokerFixture(t)
	WithExchangeTimeout(50 * time.Millisecond)(f.broker)

	github := providers.NewGithub(&providers.Config{
		Kind:         providers.KindGithub,
		Op:           "github",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     slow.URL + "/token",
	})
	session := f.seedSession(t, github)

	start := time.Now()
	err := f.broker.HandleCallback(context.Background(), "auth-code-1", session.Code.String())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var exchangeErr *providers.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.True(t, exchangeErr.Retryable())
}

func TestLoginAndLogout(t *testing.T) {
	f := newBrokerFixture(t)
	hash, err := users.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, f.users.Upsert(&users.User{
		ID:           "user-1",
		Name:         "ann",
		Email:        "ann@example.com",
		PasswordHash: hash,
		Source:       users.SourcePassword,
	}))

	result, err := f.broker.Login("ann", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, result)

	user, err := f.broker.UserFromBearer(result.AccessToken.String())
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	f.broker.Logout(result.AccessToken.String())
	_, err = f.broker.UserFromBearer(result.AccessToken.String())
	require.ErrorIs(t, err, bearertoken.ErrTokenNotFound)
}

func TestLoginFailures(t *testing.T) {
	f := newBrokerFixture(t)
	hash, err := users.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, f.users.Upsert(&users.User{
		ID:           "user-1",
		Name:         "ann",
		PasswordHash: hash,
	}))
	require.NoError(t, f.users.Upsert(&users.User{
		ID:           "user-2",
		Name:         "bob",
		PasswordHash: hash,
		Disabled:     true,
	}))

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{name: "wrong password", user: "ann", password: "nope"},
		{name: "unknown user", user: "carol", password: "s3cret"},
		{name: "disabled account", user: "bob", password: "s3cret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.broker.Login(tc.user, tc.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestReaperRemovesExpiredSessions(t *testing.T) {
	f := newBrokerFixture(t)
	f.seedSession(t, &stubStrategy{})

	// Advance past the session TTL, then let one sweep run.
	f.now = f.now.Add(11 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.broker.StartReaper(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.sessions.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBeginAuthRedirectStateMatchesCode(t *testing.T) {
	f := newBrokerFixture(t)

	result, err := f.broker.BeginAuth(context.Background(), "client-1", uuidB64("machine-uuid"), "github", "https://desk.example.com/cb")
	require.NoError(t, err)

	idx := strings.Index(result.URL, "state=")
	require.GreaterOrEqual(t, idx, 0)
	state := result.URL[idx+len("state="):]
	if amp := strings.IndexByte(state, '&'); amp >= 0 {
		state = state[:amp]
	}
	assert.Equal(t, result.Code, state)
}
