package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"workspace-portal/internal/conf"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// LoginPath is where the browser lands after logout or a failed login.
	LoginPath = "/login"
	// HomePath is the default post-login target.
	HomePath = "/"
)

// csrfTTL bounds how long a login may take between redirect and callback.
const csrfTTL = 10 * time.Minute

// loginScopes are joined with a space into the scope parameter.
var loginScopes = []string{"openid", "user"}

// OIDCClient drives the redirect-based login handshake.
type OIDCClient struct {
	oauth2Config     oauth2.Config
	identityProvider string
	verifier         *oidc.IDTokenVerifier
	logger           *slog.Logger
	now              func() time.Time
}

// OIDCOption configures an OIDCClient.
type OIDCOption func(*OIDCClient)

// WithVerifier enables signature verification of ID tokens.
func WithVerifier(verifier *oidc.IDTokenVerifier) OIDCOption {
	return func(c *OIDCClient) {
		c.verifier = verifier
	}
}

// WithOIDCLogger sets the logger.
func WithOIDCLogger(logger *slog.Logger) OIDCOption {
	return func(c *OIDCClient) {
		c.logger = logger
	}
}

// NewOIDCClient creates a client for the configured authorization endpoint.
func NewOIDCClient(cfg *conf.Auth, opts ...OIDCOption) *OIDCClient {
	c := &OIDCClient{
		oauth2Config: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL: cfg.AuthorizationEndpoint,
			},
			Scopes: loginScopes,
		},
		identityProvider: cfg.IdentityProvider,
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewVerifier discovers the issuer's keys and returns an ID token verifier
// bound to clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// IsAuthenticated reports whether the session holds an access token.
func (c *OIDCClient) IsAuthenticated(s *Session) bool {
	_, ok := s.store().Get(KeyAccessToken)
	return ok
}

// AuthURL builds the authorization URL for the given state and nonce.
func (c *OIDCClient) AuthURL(state, nonce string) string {
	return c.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("idp", c.identityProvider),
	)
}

// InitiateLogin discards any existing tokens, stores a fresh state and nonce
// and sends the browser to the identity provider. returnTo is remembered as
// the post-login target when it is a safe relative path.
func (c *OIDCClient) InitiateLogin(s *Session, returnTo string) string {
	store := s.store()
	store.Clear()

	state := uuid.NewString()
	nonce := uuid.NewString()
	store.Set(KeyState, state)
	store.Set(KeyNonce, nonce)
	store.Set(KeyCSRFIssuedAt, strconv.FormatInt(c.now().Unix(), 10))
	if target := ValidateRedirectPath(returnTo, ""); target != "" {
		store.Set(KeyRedirectAfterLogin, target)
	}

	authURL := c.AuthURL(state, nonce)
	c.logger.Info("redirecting to identity provider",
		"event", "login_initiated",
		"idp", c.identityProvider,
	)
	s.navigate(authURL)
	return authURL
}

// ValidateState consumes the stored state and compares it to received.
// A second call always fails because the stored value is gone, and a state
// older than csrfTTL never matches.
func (c *OIDCClient) ValidateState(s *Session, received string) bool {
	return c.consume(s, KeyState, received)
}

// ValidateNonce consumes the stored nonce and compares it to received.
func (c *OIDCClient) ValidateNonce(s *Session, received string) bool {
	return c.consume(s, KeyNonce, received)
}

func (c *OIDCClient) consume(s *Session, key, received string) bool {
	store := s.store()
	stored, ok := store.Take(key)
	if !ok || received == "" || stored != received {
		return false
	}
	issued, ok := store.Get(KeyCSRFIssuedAt)
	if !ok {
		return false
	}
	unix, err := strconv.ParseInt(issued, 10, 64)
	if err != nil {
		return false
	}
	if age := c.now().Sub(time.Unix(unix, 0)); age > csrfTTL {
		c.logger.Info("login handshake expired", "param", key, "age", age.Round(time.Second))
		return false
	}
	return true
}

// DecodeIdentity extracts identity claims from an ID token. Signatures are
// only checked when a verifier is configured.
func (c *OIDCClient) DecodeIdentity(ctx context.Context, rawIDToken string) (Identity, error) {
	if c.verifier != nil {
		return verifyIdentity(ctx, c.verifier, rawIDToken)
	}
	return ParseIdentity(rawIDToken)
}

// Name returns the display name carried by the access token, "Unknown" if
// it cannot be read, or "" with false when the session has no access token.
func (c *OIDCClient) Name(s *Session) (string, bool) {
	accessToken, ok := s.store().Get(KeyAccessToken)
	if !ok {
		return "", false
	}
	name := displayName(accessToken)
	if name == unknownName {
		c.logger.Debug("could not read display name from access token")
	}
	return name, true
}

// Email returns the email claim of the ID token, if any.
func (c *OIDCClient) Email(s *Session) string {
	idToken, ok := s.store().Get(KeyIDToken)
	if !ok {
		return ""
	}
	id, err := ParseIdentity(idToken)
	if err != nil {
		return ""
	}
	return id.Email
}

// Logout clears every session key and sends the browser to the login page.
func (c *OIDCClient) Logout(s *Session) {
	s.Logout()
	c.logger.Info("session cleared", "event", "logout")
}
