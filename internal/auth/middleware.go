package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// RequireAuth rejects requests whose session holds no access token.
// Must run after the session middleware.
func (c *OIDCClient) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := GetSessionFromContext(r.Context())
			if err != nil || !c.IsAuthenticated(s) {
				WriteUnauthorized(w, "missing authentication token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RoleCheck evaluates one capability for a session.
type RoleCheck func(ctx context.Context, s *Session) bool

// RequireRole rejects requests whose session fails check. A check that
// ended the session answers 401 so the browser goes back to the login page.
func RequireRole(check RoleCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := GetSessionFromContext(r.Context())
			if err != nil {
				WriteUnauthorized(w, "missing authentication token")
				return
			}
			if !check(r.Context(), s) {
				if _, ok := s.Store.Get(KeyAccessToken); !ok {
					WriteUnauthorized(w, "session expired")
					return
				}
				writeError(w, http.StatusForbidden, "forbidden", "not authorized for this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteUnauthorized answers 401 and points the browser at the login page.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":    "unauthorized",
		"message":  message,
		"location": LoginPath,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
