// Package providers defines the identity-provider contract used by the auth
// broker: one Strategy per provider kind, selected through configuration
// loaded once at process start. Strategies build the provider's authorization
// redirect URL and perform the authorization-code-for-token exchange.
package providers

import (
	"context"
	"fmt"
)

// Kind identifies an identity-provider implementation.
type Kind string

const (
	KindGithub   Kind = "github"
	KindGitlab   Kind = "gitlab"
	KindGoogle   Kind = "google"
	KindApple    Kind = "apple"
	KindOkta     Kind = "okta"
	KindFacebook Kind = "facebook"
	KindAzure    Kind = "azure"
	KindAuth0    Kind = "auth0"
	KindDex      Kind = "dex"
)

// ExchangeResult is the outcome of a successful authorization-code exchange:
// the provider-issued access token plus the identity the provider asserted.
type ExchangeResult struct {
	AccessToken string
	Name        string
	Email       string
}

// Strategy is the per-provider capability set. Implementations are selected
// by configuration, never constructed from untyped input.
type Strategy interface {
	// RedirectURL deterministically builds the provider's authorization
	// endpoint URL carrying the given callback URL and opaque state.
	RedirectURL(callbackURL, state string) string

	// ExchangeCode performs the provider's token exchange. It is a network
	// call bounded by the caller's context deadline and runs outside any
	// session-store lock. Failures are classified ExchangeErrors.
	ExchangeCode(ctx context.Context, code, callbackURL string) (*ExchangeResult, error)

	// Kind identifies which provider variant this instance implements.
	Kind() Kind
}

// ExchangeReason classifies why a token exchange failed.
type ExchangeReason string

const (
	// ReasonNetwork covers transport failures and timeouts; the callback
	// may be retried.
	ReasonNetwork ExchangeReason = "network"
	// ReasonRejected means the provider refused the authorization code;
	// retrying with the same code will not succeed.
	ReasonRejected ExchangeReason = "rejected"
	// ReasonMalformedResponse means the provider answered with something
	// the strategy could not parse.
	ReasonMalformedResponse ExchangeReason = "malformed_response"
)

// ExchangeError is the classified failure surfaced by Strategy.ExchangeCode.
type ExchangeError struct {
	Reason ExchangeReason
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exchange failed (%s)", e.Reason)
	}
	return fmt.Sprintf("exchange failed (%s): %v", e.Reason, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Retryable reports whether a later callback delivery could still succeed.
func (e *ExchangeError) Retryable() bool { return e.Reason == ReasonNetwork }

// NewExchangeError wraps err with the given classification.
func NewExchangeError(reason ExchangeReason, err error) *ExchangeError {
	return &ExchangeError{Reason: reason, Err: err}
}
