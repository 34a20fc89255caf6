package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when an access or refresh token is required but
	// the session holds none. The session is logged out before it is returned.
	ErrNoToken = errors.New("no token in session")

	// ErrSessionExpired is returned when a refresh cycle could not restore a
	// usable session. The session is logged out before it is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoSession is returned when no browser session is bound to a request.
	ErrNoSession = errors.New("no session bound to request")
)

// TokenExchangeError reports a non-success response from the code exchange.
type TokenExchangeError struct {
	StatusCode int
	Status     string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("failed to exchange code for tokens: %s", e.Status)
}

// TokenRefreshError reports a non-success response from the refresh exchange.
type TokenRefreshError struct {
	StatusCode int
	Status     string
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("failed to refresh tokens: %s", e.Status)
}

// CSRFValidationError reports a state or nonce mismatch on the login callback.
type CSRFValidationError struct {
	Param string // "state" or "nonce"
}

func (e *CSRFValidationError) Error() string {
	return "invalid " + e.Param
}

// APIError is a non-401 failure from a protected API call.
type APIError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api call failed: %s", e.Status)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
