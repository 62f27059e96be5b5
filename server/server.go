// Package server exposes the broker over HTTP for desk clients. The API is
// JSON over plain handlers on a stdlib mux; the OIDC endpoints implement the
// poll-based handshake for clients that cannot receive a redirect.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hexdesk/desk-api/auth"
	"github.com/hexdesk/desk-api/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	broker  *auth.Broker
	version string
}

func New(config config.Config, broker *auth.Broker, version string) (*Server, error) {
	if broker == nil {
		return nil, errors.New("[Server New] broker is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		broker:  broker,
		version: version,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Info().Str("path", parts[0]).Msg("route")
		}
	}
}

// callbackURL derives the externally visible OIDC callback address from the
// incoming request, so the URL registered with the provider matches however
// the client reached this server.
func (s *Server) callbackURL(r *http.Request) string {
	return fmt.Sprintf("%s://%s%s", getScheme(r), r.Host, RouteOidcCallback)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
