package api

import (
	"net/http"

	"workspace-portal/internal/auth"

	"github.com/gorilla/mux"
)

// RouterDeps are the pieces NewRouter wires together.
type RouterDeps struct {
	Sessions      SessionBinder
	// Health is probed by /health; nil reports healthy.
	Health        HealthChecker
	SecureCookies bool
	OIDC          *auth.OIDCClient
	Arborist      *auth.ArboristClient
	Auth          *AuthHandler
	Workspaces    *WorkspaceHandler
	// LoginThrottle guards the login endpoints; nil disables it.
	LoginThrottle func(http.Handler) http.Handler
}

// NewRouter builds the router and registers every handler.
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint (public, no session)
	r.HandleFunc("/health", HealthCheckHandler(deps.Health)).Methods(http.MethodGet)

	// Everything else runs with the browser session bound
	app := r.PathPrefix("/").Subrouter()
	app.Use(SessionMiddleware(deps.Sessions, deps.SecureCookies))

	deps.Auth.RegisterRoutes(app, deps.LoginThrottle)

	// Protected API routes
	apiRouter := app.PathPrefix("/api").Subrouter()
	apiRouter.Use(deps.OIDC.RequireAuth())

	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(auth.RequireRole(deps.Arborist.AuthorizeAdmin))

	deps.Workspaces.RegisterRoutes(apiRouter, adminRouter)

	return r
}
