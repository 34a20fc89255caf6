package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds every outbound call made by this package.
const DefaultHTTPTimeout = 30 * time.Second

// GatewayClient calls the backend token gateway. The API key gates which
// callers may reach the gateway; it is not an OAuth credential.
type GatewayClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithGatewayHTTPClient sets a custom HTTP client.
func WithGatewayHTTPClient(httpClient *http.Client) GatewayOption {
	return func(c *GatewayClient) {
		c.httpClient = httpClient
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(c *GatewayClient) {
		c.logger = logger
	}
}

// NewGatewayClient creates a gateway client for apiEndpoint.
func NewGatewayClient(apiEndpoint, apiKey string, opts ...GatewayOption) *GatewayClient {
	c := &GatewayClient{
		endpoint:   strings.TrimSuffix(apiEndpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExchangeCodeForTokens trades an authorization code for a token set.
func (c *GatewayClient) ExchangeCodeForTokens(ctx context.Context, code string) (TokenSet, error) {
	reqURL := c.endpoint + "/auth/get-tokens?code=" + url.QueryEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to create token request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		c.logger.Debug("token exchange rejected", "status", resp.StatusCode)
		return TokenSet{}, &TokenExchangeError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}
	return decodeTokenSet(resp.Body)
}

// RefreshTokens trades a refresh token for a new token set. The gateway may
// rotate the refresh token; callers must keep the returned one.
func (c *GatewayClient) RefreshTokens(ctx context.Context, refreshToken string) (TokenSet, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to marshal refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+"/auth/refresh-tokens", bytes.NewReader(body))
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to create refresh request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		c.logger.Debug("token refresh rejected", "status", resp.StatusCode)
		return TokenSet{}, &TokenRefreshError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}
	return decodeTokenSet(resp.Body)
}

func (c *GatewayClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	return c.httpClient.Do(req)
}

// decodeTokenSet reads exactly the three token fields; anything else in the
// response body is dropped.
func decodeTokenSet(r io.Reader) (TokenSet, error) {
	var set TokenSet
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return TokenSet{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	return TokenSet{
		IDToken:      set.IDToken,
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
	}, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// statusText returns the reason phrase of resp, e.g. "Bad Gateway".
func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
