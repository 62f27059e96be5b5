package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// OidcAuthHandler starts a handshake. Input problems are reported inside the
// JSON body, not as HTTP errors: the desk client inspects the code field.
func (s *Server) OidcAuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request OidcAuthRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		result, err := s.broker.BeginAuth(r.Context(), request.ID, request.UUID, request.Op, s.callbackURL(r))
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("oidc auth failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(OidcAuthURL{URL: result.URL, Code: result.Code})
	}
}

// OidcCallbackHandler receives the provider redirect. The reply body is read
// by a person in a browser, so it is a bare OK or ERROR.
func (s *Server) OidcCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorizationCode := r.URL.Query().Get("code")
		sessionCode := r.URL.Query().Get("state")

		if err := s.broker.HandleCallback(r.Context(), authorizationCode, sessionCode); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("oidc callback failed")
			_, _ = w.Write([]byte("ERROR"))
			return
		}
		_, _ = w.Write([]byte("OK"))
	}
}

// OidcAuthQueryHandler is the client poll. Unknown code, binding mismatch
// and still-pending all reply with JSON null.
func (s *Server) OidcAuthQueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		descriptor, err := s.broker.Poll(query.Get("code"), query.Get("id"), query.Get("uuid"))
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("oidc auth-query failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if descriptor == nil {
			_, _ = w.Write([]byte("null"))
			return
		}

		response := OidcResponse{
			AccessToken: descriptor.AccessToken.String(),
			Type:        ResponseTypeAccessToken,
			TfaType:     "",
			Secret:      "",
			User: OidcUser{
				Name:   descriptor.Name,
				Email:  descriptor.Email,
				Status: UserStatusNormal,
				Info: OidcUserInfo{
					LoginDeviceWhitelist: []string{},
					Other:                map[string]string{},
				},
				IsAdmin:       descriptor.Admin,
				ThirdAuthType: AuthTypeOauth2,
			},
		}
		_ = json.NewEncoder(w).Encode(&response)
	}
}
