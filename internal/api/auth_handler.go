package api

import (
	"log/slog"
	"net/http"

	"workspace-portal/internal/auth"
	"workspace-portal/internal/conf"

	"github.com/gorilla/mux"
)

// LoginStartPath starts the login handshake.
const LoginStartPath = "/auth/login"

// FailureUnauthorized is reported when a user authenticates but holds no
// portal role.
const FailureUnauthorized = "unauthorized"

var failureMessages = map[string]string{
	auth.FailureInvalidRequest:       "The login response was incomplete. Please try again.",
	auth.FailureInvalidState:         "The login request could not be verified. Please try again.",
	auth.FailureAuthenticationFailed: "Authentication failed. Please try again.",
	auth.FailureInvalidNonce:         "The identity token could not be verified. Please try again.",
	FailureUnauthorized:              "You are not authorized to use this portal. Please contact support for access.",
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	oidcClient *auth.OIDCClient
	callback   *auth.CallbackController
	arborist   *auth.ArboristClient
	logger     *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(oidcClient *auth.OIDCClient, callback *auth.CallbackController, arborist *auth.ArboristClient, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		oidcClient: oidcClient,
		callback:   callback,
		arborist:   arborist,
		logger:     logger,
	}
}

// RegisterRoutes registers auth routes. throttle guards the endpoints that
// start or finish a login.
func (h *AuthHandler) RegisterRoutes(r *mux.Router, throttle func(http.Handler) http.Handler) {
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	r.HandleFunc(auth.LoginPath, h.loginPage).Methods(http.MethodGet)
	r.Handle(LoginStartPath, throttle(http.HandlerFunc(h.login))).Methods(http.MethodGet)
	r.Handle(conf.CallbackPath, throttle(http.HandlerFunc(h.handleCallback))).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodGet, http.MethodPost)

	// userinfo must run under RequireAuth so an anonymous browser gets 401
	r.Handle("/auth/userinfo", h.oidcClient.RequireAuth()(http.HandlerFunc(h.userinfo))).Methods(http.MethodGet)
}

// loginPage reports what the login page should render.
func (h *AuthHandler) loginPage(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())

	status := LoginStatus{
		Authenticated: h.oidcClient.IsAuthenticated(s),
		LoginURL:      LoginStartPath,
	}
	if code := r.URL.Query().Get("error"); code != "" {
		status.Error = code
		status.Message = failureMessage(code)
	}
	writeJSON(w, http.StatusOK, status)
}

// login starts the handshake and sends the browser to the identity provider.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())
	h.oidcClient.InitiateLogin(s, r.URL.Query().Get("return_to"))
	h.redirect(w, r, s)
}

// handleCallback finishes the handshake. A user without any portal role is
// signed straight back out.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())
	step := h.callback.Handle(r.Context(), s, auth.ParseCallbackParams(r.URL.Query()))

	switch step.State {
	case auth.StateIdle:
		writeJSON(w, http.StatusOK, CallbackStatus{State: step.State.String()})
		return
	case auth.StateAuthenticated:
		if h.arborist != nil && !h.arborist.AuthorizeLogin(r.Context(), s) {
			h.logger.Warn("authenticated user holds no portal role", "event", "login_unauthorized")
			s.Store.Clear()
			s.Nav.Navigate(auth.FailureTarget(FailureUnauthorized))
		}
	}
	h.redirect(w, r, s)
}

// logout clears the session and returns the browser to the login page.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())
	h.oidcClient.Logout(s)
	h.redirect(w, r, s)
}

// userinfo returns current user information
func (h *AuthHandler) userinfo(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())

	name, ok := h.oidcClient.Name(s)
	if !ok {
		auth.WriteUnauthorized(w, "missing authentication token")
		return
	}

	info := UserInfo{Name: name, Email: h.oidcClient.Email(s)}
	if h.arborist != nil {
		roles := h.arborist.Roles(r.Context(), s)
		if !h.oidcClient.IsAuthenticated(s) {
			auth.WriteUnauthorized(w, "session expired")
			return
		}
		info.Roles = RolesInfo{Admin: roles.Admin, Credits: roles.Credits, Grants: roles.Grants}
	}
	writeJSON(w, http.StatusOK, info)
}

// redirect turns the session's recorded navigation into a 302. Without
// one the browser is sent home.
func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, s *auth.Session) {
	target, ok := navigation(s)
	if !ok {
		target = auth.HomePath
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func failureMessage(code string) string {
	if msg, ok := failureMessages[code]; ok {
		return msg
	}
	return "Login failed: " + code
}
