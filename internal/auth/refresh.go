package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Call describes one protected API request. Body, when set, is sent as-is
// on every attempt.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// JSONCall builds a Call whose body is v encoded as JSON.
func JSONCall(method, url string, v any) (Call, error) {
	call := Call{Method: method, URL: url, Header: http.Header{}}
	if v != nil {
		body, err := json.Marshal(v)
		if err != nil {
			return Call{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
		call.Body = body
	}
	call.Header.Set("Content-Type", "application/json")
	return call, nil
}

// tokenRefresher is the part of the gateway the refresher depends on.
type tokenRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (TokenSet, error)
}

// Refresher wraps protected API calls with one-shot recovery from an
// expired access token.
type Refresher struct {
	gateway    tokenRefresher
	httpClient *http.Client
	logger     *slog.Logger
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefresherHTTPClient sets the HTTP client used for protected calls.
func WithRefresherHTTPClient(httpClient *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.httpClient = httpClient
	}
}

// WithRefresherLogger sets the logger.
func WithRefresherLogger(logger *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = logger
	}
}

// NewRefresher creates a refresher that renews tokens through gateway.
func NewRefresher(gateway tokenRefresher, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		gateway:    gateway,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do performs call with the session's access token and decodes a JSON
// response into out (when out is non-nil and the response has a body).
//
// A 401 triggers exactly one refresh and one retry. A second 401 means the
// session is dead: it is logged out and ErrSessionExpired is returned. Any
// other failure status is returned as *APIError without touching the session.
func (r *Refresher) Do(ctx context.Context, s *Session, call Call, out any) error {
	accessToken, ok := s.store().Get(KeyAccessToken)
	if !ok {
		r.logger.Info("no access token for protected call, logging out", "event", "logout", "url", call.URL)
		s.Logout()
		return ErrNoToken
	}

	resp, err := r.send(ctx, call, accessToken)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return finish(resp, out)
	}
	drain(resp)

	r.logger.Debug("protected call unauthorized, refreshing", "url", call.URL)
	accessToken, err = r.Refresh(ctx, s)
	if err != nil {
		return err
	}

	resp, err = r.send(ctx, call, accessToken)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		r.logger.Info("retry still unauthorized, logging out", "event", "logout", "url", call.URL)
		s.Logout()
		return ErrSessionExpired
	}
	return finish(resp, out)
}

// Refresh renews the session's tokens and returns the new access token. On
// any failure the session is logged out and the error wraps ErrSessionExpired,
// except when ctx itself was cancelled: then the session is kept.
func (r *Refresher) Refresh(ctx context.Context, s *Session) (string, error) {
	refreshToken, ok := s.store().Get(KeyRefreshToken)
	if !ok {
		r.logger.Info("no refresh token, logging out", "event", "logout")
		s.Logout()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoToken)
	}

	tokens, err := r.gateway.RefreshTokens(ctx, refreshToken)
	if err != nil && ctx.Err() != nil {
		r.logger.Debug("token refresh aborted", "error", err)
		return "", fmt.Errorf("token refresh aborted: %w", ctx.Err())
	}
	if err != nil {
		r.logger.Info("token refresh failed, logging out", "event", "logout", "error", err)
		s.Logout()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if !s.store().SaveTokens(tokens) {
		r.logger.Info("refresh returned an incomplete token set, logging out", "event", "logout")
		s.Logout()
		return "", fmt.Errorf("%w: incomplete token set", ErrSessionExpired)
	}

	r.logger.Info("tokens refreshed", "event", "tokens_refreshed")
	return tokens.AccessToken, nil
}

func (r *Refresher) send(ctx context.Context, call Call, accessToken string) (*http.Response, error) {
	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range call.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return r.httpClient.Do(req)
}

func finish(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return &APIError{StatusCode: resp.StatusCode, Status: statusText(resp), Body: body}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// IsSessionError reports whether err ended the session.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNoToken) || errors.Is(err, ErrSessionExpired)
}
