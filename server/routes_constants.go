package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OIDC handshake
	RouteOidcAuth      = "/api/oidc/auth"
	RouteOidcCallback  = "/api/oidc/callback"
	RouteOidcAuthQuery = "/api/oidc/auth-query"

	// Login & session
	RouteLoginOptions = "/api/login-options"
	RouteLogin        = "/api/login"
	RouteCurrentUser  = "/api/currentUser"
	RouteLogout       = "/api/logout"

	// Client upkeep
	RouteHeartbeat = "/api/heartbeat"

	// Software
	RouteServerVersion = "/api/software/version/server"

	// Operations
	RouteHealth = "/health"
)
