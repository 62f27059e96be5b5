package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitHub speaks OAuth 2.0 without ID tokens, so the identity is resolved
// with follow-up calls to the user and email APIs after the code exchange.
const (
	githubAuthEndpoint  = "https://github.com/login/oauth/authorize"
	githubTokenEndpoint = "https://github.com/login/oauth/access_token"
	githubUserEndpoint  = "https://api.github.com/user"
)

// Github is the GitHub OAuth 2.0 strategy.
type Github struct {
	clientID     string
	clientSecret string
	scopes       []string

	authURL  string
	tokenURL string
	userURL  string

	http *http.Client
}

// NewGithub creates the GitHub strategy for the given provider entry.
// Endpoint overrides in the entry support GitHub Enterprise hosts.
func NewGithub(cfg *Config) *Github {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	g := &Github{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scopes:       scopes,
		authURL:      githubAuthEndpoint,
		tokenURL:     githubTokenEndpoint,
		userURL:      githubUserEndpoint,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
	if cfg.AuthorizeURL != "" {
		g.authURL = cfg.AuthorizeURL
	}
	if cfg.TokenURL != "" {
		g.tokenURL = cfg.TokenURL
	}
	if cfg.UserinfoURL != "" {
		g.userURL = cfg.UserinfoURL
	}
	return g
}

// Kind implements Strategy.
func (g *Github) Kind() Kind { return KindGithub }

// RedirectURL implements Strategy.
func (g *Github) RedirectURL(callbackURL, state string) string {
	u, _ := url.Parse(g.authURL)
	q := u.Query()
	q.Set("client_id", g.clientID)
	q.Set("redirect_uri", callbackURL)
	q.Set("scope", strings.Join(g.scopes, " "))
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String()
}

type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

type githubUserInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeCode implements Strategy. GitHub returns structured errors in a
// 200 body, so rejection is detected from the payload rather than the
// status code.
func (g *Github) ExchangeCode(ctx context.Context, code, callbackURL string) (*ExchangeResult, error) {
	form := url.Values{}
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", callbackURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewExchangeError(ReasonMalformedResponse, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, NewExchangeError(ReasonNetwork, err)
	}
	defer resp.Body.Close()

	var tr githubTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, NewExchangeError(ReasonMalformedResponse, err)
	}
	if tr.Error != "" {
		return nil, NewExchangeError(ReasonRejected, fmt.Errorf("github: %s - %s", tr.Error, tr.ErrorDesc))
	}
	if tr.AccessToken == "" {
		return nil, NewExchangeError(ReasonMalformedResponse, fmt.Errorf("github: no access_token in response"))
	}

	info, err := g.userInfo(ctx, tr.AccessToken)
	if err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}

	email := info.Email
	if email == "" {
		// Private-email accounts need the emails API.
		email = g.primaryEmail(ctx, tr.AccessToken)
	}

	return &ExchangeResult{
		AccessToken: tr.AccessToken,
		Name:        name,
		Email:       email,
	}, nil
}

func (g *Github) userInfo(ctx context.Context, accessToken string) (*githubUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userURL, nil)
	if err != nil {
		return nil, NewExchangeError(ReasonMalformedResponse, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, NewExchangeError(ReasonNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewExchangeError(ReasonRejected, fmt.Errorf("github user api: status %d", resp.StatusCode))
	}

	var info githubUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, NewExchangeError(ReasonMalformedResponse, err)
	}
	return &info, nil
}

// primaryEmail best-effort resolves the primary verified email. An empty
// result is acceptable; the broker stores whatever identity the provider
// was willing to share.
func (g *Github) primaryEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userURL+"/emails", nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var emails []githubEmailInfo
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return ""
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}
