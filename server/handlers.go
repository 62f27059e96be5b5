package server

import (
	"encoding/json"
	"net/http"

	"github.com/hexdesk/desk-api/users"
	"github.com/rs/zerolog/log"
)

// LoginOptionsHandler lists the configured provider display strings; the
// desk client renders one login button per entry.
func (s *Server) LoginOptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.broker.ProviderOptions())
	}
}

// LoginHandler is the password login.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		result, err := s.broker.Login(request.Username, request.Password)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LoginReply{
			Type:        ResponseTypeAccessToken,
			User:        userInfoOf(result.User),
			AccessToken: result.AccessToken.String(),
		})
	}
}

// CurrentUserHandler reports the account behind the presented bearer token.
func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(ContextKeyUser).(*users.User)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CurrentUserResponse{
			Error: false,
			Data:  userInfoOf(user),
		})
	}
}

// LogoutHandler revokes the presented bearer token.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenText, ok := r.Context().Value(ContextKeyBearerToken).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s.broker.Logout(tokenText)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LogoutReply{Data: ""})
	}
}

// HeartbeatHandler acknowledges client keepalives.
func (s *Server) HeartbeatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) ServerVersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SoftwareVersionResponse{Server: s.version})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			log.Error().Err(err).Msg("health response")
		}
	}
}

func userInfoOf(user *users.User) UserInfo {
	return UserInfo{
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.Admin,
		Status:  UserStatusNormal,
	}
}
