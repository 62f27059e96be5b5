package server

func (s *Server) initRoutes() {
	// OIDC handshake: begin, provider callback, client poll
	s.RegisterRouteHandler("POST "+RouteOidcAuth, ChainMiddleware(s.OidcAuthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOidcCallback, ChainMiddleware(s.OidcCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOidcAuthQuery, ChainMiddleware(s.OidcAuthQueryHandler(), s.APIMiddleware()...))

	// Login & session
	s.RegisterRouteHandler("GET "+RouteLoginOptions, ChainMiddleware(s.LoginOptionsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCurrentUser, ChainMiddleware(s.CurrentUserHandler(), s.APIMiddleware(s.RequireBearerAuth())...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireBearerAuth())...))

	// Client upkeep
	s.RegisterRouteHandler("POST "+RouteHeartbeat, ChainMiddleware(s.HeartbeatHandler(), s.APIMiddleware()...))

	// Software
	s.RegisterRouteHandler("GET "+RouteServerVersion, ChainMiddleware(s.ServerVersionHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
