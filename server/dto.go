package server

// Wire types for the desk client API. Field names follow the client's JSON
// contract and must not change.

// OidcAuthRequest starts the poll-based handshake.
type OidcAuthRequest struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
	Op   string `json:"op"`
}

// OidcAuthURL is the begin reply: the provider URL to open in a browser and
// the session code to poll with.
type OidcAuthURL struct {
	URL  string `json:"url"`
	Code string `json:"code"`
}

// OidcResponse is the completed auth-query reply.
type OidcResponse struct {
	AccessToken string   `json:"access_token"`
	Type        string   `json:"type"`
	TfaType     string   `json:"tfa_type"`
	Secret      string   `json:"secret"`
	User        OidcUser `json:"user"`
}

type OidcUser struct {
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Note          string       `json:"note"`
	Status        int          `json:"status"`
	Info          OidcUserInfo `json:"info"`
	IsAdmin       bool         `json:"is_admin"`
	ThirdAuthType string       `json:"third_auth_type"`
}

type OidcUserInfo struct {
	EmailVerification      bool              `json:"email_verification"`
	EmailAlarmNotification bool              `json:"email_alarm_notification"`
	LoginDeviceWhitelist   []string          `json:"login_device_whitelist"`
	Other                  map[string]string `json:"other"`
}

const (
	// UserStatusNormal is the active account status on the wire.
	UserStatusNormal = 1

	// AuthTypeOauth2 marks accounts authenticated through a provider.
	AuthTypeOauth2 = "Oauth2"

	// ResponseTypeAccessToken tags replies carrying a bearer credential.
	ResponseTypeAccessToken = "access_token"
)

// LoginRequest is a password login attempt.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ID       string `json:"id"`
	UUID     string `json:"uuid"`
}

// LoginReply carries the issued bearer credential.
type LoginReply struct {
	Type        string   `json:"type"`
	User        UserInfo `json:"user"`
	AccessToken string   `json:"access_token"`
}

// UserInfo is the account summary embedded in login and currentUser replies.
type UserInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Status  int    `json:"status"`
}

// CurrentUserResponse wraps the authenticated account lookup.
type CurrentUserResponse struct {
	Error bool     `json:"error"`
	Data  UserInfo `json:"data"`
}

// LogoutReply acknowledges a logout.
type LogoutReply struct {
	Data string `json:"data"`
}

// SoftwareVersionResponse reports the running server version.
type SoftwareVersionResponse struct {
	Server string `json:"server,omitempty"`
	Client string `json:"client,omitempty"`
}
