package auth

import (
	"context"
)

type sessionContextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// GetSessionFromContext extracts the browser session from request context
func GetSessionFromContext(ctx context.Context) (*Session, error) {
	val := ctx.Value(sessionContextKey{})
	if val == nil {
		return nil, ErrNoSession
	}

	s, ok := val.(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}

	return s, nil
}

// MustGetSessionFromContext panics if no session in context (use after session middleware)
func MustGetSessionFromContext(ctx context.Context) *Session {
	s, err := GetSessionFromContext(ctx)
	if err != nil {
		panic("expected browser session in context")
	}
	return s
}
