package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"
)

// accessMethod is the method a permission must carry to grant access.
const accessMethod = "access"

// Resources names the capability checked for each portal role.
type Resources struct {
	Admin   ResourceConfig
	Credits ResourceConfig
	Grants  ResourceConfig
}

// Authorize reports whether mapping grants access to cfg's resource through
// cfg's service. A nil mapping or a missing resource denies.
func Authorize(cfg ResourceConfig, mapping UserAuthMapping) bool {
	for _, perm := range mapping[cfg.Resource] {
		if perm.Method == accessMethod && perm.Service == cfg.Service {
			return true
		}
	}
	return false
}

// ArboristClient answers capability questions from the authorization
// service. Failures deny access; they never surface as errors.
type ArboristClient struct {
	uri        string
	resources  Resources
	refresher  *Refresher
	httpClient *http.Client
	logger     *slog.Logger

	// collapses concurrent fetches for the same access token
	fetches singleflight.Group
}

// ArboristOption configures an ArboristClient.
type ArboristOption func(*ArboristClient)

// WithArboristHTTPClient sets a custom HTTP client.
func WithArboristHTTPClient(httpClient *http.Client) ArboristOption {
	return func(c *ArboristClient) {
		c.httpClient = httpClient
	}
}

// WithArboristLogger sets the logger.
func WithArboristLogger(logger *slog.Logger) ArboristOption {
	return func(c *ArboristClient) {
		c.logger = logger
	}
}

// NewArboristClient creates a client for the mapping endpoint at uri.
func NewArboristClient(uri string, resources Resources, refresher *Refresher, opts ...ArboristOption) *ArboristClient {
	c := &ArboristClient{
		uri:        uri,
		resources:  resources,
		refresher:  refresher,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUserAuthMapping fetches the current principal's capability mapping.
// A failed fetch is retried once after a token refresh; if that fails too
// the session is logged out and nil is returned. A cancelled ctx denies
// without touching the session.
func (c *ArboristClient) GetUserAuthMapping(ctx context.Context, s *Session) UserAuthMapping {
	accessToken, ok := s.store().Get(KeyAccessToken)
	if !ok {
		c.logger.Info("no access token for authorization check, logging out", "event", "logout")
		s.Logout()
		return nil
	}

	mapping := c.fetch(ctx, accessToken)
	if mapping != nil {
		return mapping
	}
	if ctx.Err() != nil {
		return nil
	}

	c.logger.Debug("no user auth mapping, retrying after token refresh")
	accessToken, err := c.refresher.Refresh(ctx, s)
	if err != nil {
		return nil
	}

	mapping = c.fetch(ctx, accessToken)
	if mapping == nil && ctx.Err() == nil {
		c.logger.Info("user auth mapping unavailable after refresh, logging out", "event", "logout")
		s.Logout()
	}
	return mapping
}

// AuthorizeAdmin reports whether the user may use the admin panel.
func (c *ArboristClient) AuthorizeAdmin(ctx context.Context, s *Session) bool {
	return Authorize(c.resources.Admin, c.GetUserAuthMapping(ctx, s))
}

// AuthorizeCredits reports whether the user may request credit-funded workspaces.
func (c *ArboristClient) AuthorizeCredits(ctx context.Context, s *Session) bool {
	return Authorize(c.resources.Credits, c.GetUserAuthMapping(ctx, s))
}

// AuthorizeGrants reports whether the user may request grant-funded workspaces.
func (c *ArboristClient) AuthorizeGrants(ctx context.Context, s *Session) bool {
	return Authorize(c.resources.Grants, c.GetUserAuthMapping(ctx, s))
}

// Roles evaluates every portal role against a single mapping fetch.
func (c *ArboristClient) Roles(ctx context.Context, s *Session) Roles {
	mapping := c.GetUserAuthMapping(ctx, s)
	return Roles{
		Admin:   Authorize(c.resources.Admin, mapping),
		Credits: Authorize(c.resources.Credits, mapping),
		Grants:  Authorize(c.resources.Grants, mapping),
	}
}

// AuthorizeLogin reports whether the user holds any portal role.
func (c *ArboristClient) AuthorizeLogin(ctx context.Context, s *Session) bool {
	return c.Roles(ctx, s).Any()
}

// fetch shares one mapping request between concurrent callers holding the
// same token. The shared request is detached from any single caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (c *ArboristClient) fetch(ctx context.Context, accessToken string) UserAuthMapping {
	flight := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(accessToken, func() (any, error) {
		mapping, err := c.fetchMapping(flight, accessToken)
		if err != nil {
			c.logger.Warn("failed to fetch user auth mapping", "error", err)
			return UserAuthMapping(nil), nil
		}
		return mapping, nil
	})
	select {
	case res := <-ch:
		mapping, _ := res.Val.(UserAuthMapping)
		return mapping
	case <-ctx.Done():
		return nil
	}
}

func (c *ArboristClient) fetchMapping(ctx context.Context, accessToken string) (UserAuthMapping, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mapping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("mapping request failed with status %d", resp.StatusCode)
	}

	var mapping UserAuthMapping
	if err := json.NewDecoder(resp.Body).Decode(&mapping); err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}
	if mapping == nil {
		return nil, errors.New("empty mapping")
	}
	return mapping, nil
}
