package api

import (
	"context"
	"net/http"
	"time"

	"workspace-portal/internal/auth"

	"github.com/google/uuid"
)

// SessionCookieName names the cookie carrying the browser session id.
const SessionCookieName = "portal_session"

// sessionMaxAge bounds the cookie lifetime; the server side purges idle
// sessions on its own schedule.
const sessionMaxAge = 30 * 24 * time.Hour

// SessionBinder resolves a session id to its key/value storage.
type SessionBinder interface {
	Bind(ctx context.Context, sessionID string) auth.Storage
}

// SessionMiddleware attaches the browser's auth.Session to the request
// context, issuing a new session cookie when the browser has none.
func SessionMiddleware(binder SessionBinder, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionID(r)
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(sessionMaxAge.Seconds()),
				})
			}

			s := auth.NewSession(binder.Bind(r.Context(), id), &auth.RecordingNavigator{})
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), s)))
		})
	}
}

// sessionID returns the cookie's session id when it is a well-formed UUID.
func sessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// navigation returns where the session asked the browser to go.
func navigation(s *auth.Session) (string, bool) {
	nav, ok := s.Nav.(*auth.RecordingNavigator)
	if !ok {
		return "", false
	}
	return nav.Target()
}
