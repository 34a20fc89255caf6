package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestInitiateLogin(t *testing.T) {
	t.Run("stores fresh state and nonce and navigates", func(t *testing.T) {
		c := newTestOIDCClient()
		s, storage, nav := newTestSession(loggedIn("old-access"))

		authURL := c.InitiateLogin(s, "/workspaces?tab=mine")

		target, ok := nav.Target()
		require.True(t, ok)
		require.Equal(t, authURL, target)

		require.False(t, storage.has(KeyAccessToken))
		require.False(t, storage.has(KeyIDToken))
		require.False(t, storage.has(KeyRefreshToken))

		state, _ := storage.GetItem(KeyState)
		nonce, _ := storage.GetItem(KeyNonce)
		issued, _ := storage.GetItem(KeyCSRFIssuedAt)
		require.NotEmpty(t, issued)
		require.Len(t, state, 36)
		require.Len(t, nonce, 36)
		require.NotEqual(t, state, nonce)

		redirect, _ := storage.GetItem(KeyRedirectAfterLogin)
		require.Equal(t, "/workspaces?tab=mine", redirect)

		u, err := url.Parse(authURL)
		require.NoError(t, err)
		require.Equal(t, "idp.example.org", u.Host)
		require.Equal(t, "/user/oauth2/authorize", u.Path)

		q := u.Query()
		require.Equal(t, "code", q.Get("response_type"))
		require.Equal(t, "portal-client", q.Get("client_id"))
		require.Equal(t, "https://portal.example.org/login/callback", q.Get("redirect_uri"))
		require.Equal(t, "openid user", q.Get("scope"))
		require.Equal(t, "google", q.Get("idp"))
		require.Equal(t, state, q.Get("state"))
		require.Equal(t, nonce, q.Get("nonce"))
	})

	t.Run("each call generates new values", func(t *testing.T) {
		c := newTestOIDCClient()
		s, storage, _ := newTestSession(nil)

		c.InitiateLogin(s, "")
		first, _ := storage.GetItem(KeyState)
		c.InitiateLogin(s, "")
		second, _ := storage.GetItem(KeyState)

		require.NotEqual(t, first, second)
	})

	t.Run("unsafe return target is not stored", func(t *testing.T) {
		c := newTestOIDCClient()
		s, storage, _ := newTestSession(nil)

		c.InitiateLogin(s, "https://evil.example.com/")
		require.False(t, storage.has(KeyRedirectAfterLogin))
	})
}

func TestValidateState(t *testing.T) {
	c := newTestOIDCClient()

	t.Run("matching value is accepted once", func(t *testing.T) {
		s, storage, _ := newTestSession(pendingLogin(map[string]string{KeyState: "abc"}))

		require.True(t, c.ValidateState(s, "abc"))
		require.False(t, storage.has(KeyState))
		require.False(t, c.ValidateState(s, "abc"))
	})

	t.Run("mismatch is rejected and consumed", func(t *testing.T) {
		s, storage, _ := newTestSession(pendingLogin(map[string]string{KeyState: "abc"}))

		require.False(t, c.ValidateState(s, "xyz"))
		require.False(t, storage.has(KeyState))
	})

	t.Run("state older than the handshake lifetime is rejected", func(t *testing.T) {
		stale := newTestOIDCClient()
		issued := time.Unix(1_700_000_000, 0)
		stale.now = func() time.Time { return issued.Add(csrfTTL + time.Second) }
		s, storage, _ := newTestSession(map[string]string{KeyState: "abc", KeyCSRFIssuedAt: issuedAt(issued)})

		require.False(t, stale.ValidateState(s, "abc"))
		require.False(t, storage.has(KeyState))
	})

	t.Run("state within the handshake lifetime is accepted", func(t *testing.T) {
		fresh := newTestOIDCClient()
		issued := time.Unix(1_700_000_000, 0)
		fresh.now = func() time.Time { return issued.Add(csrfTTL - time.Second) }
		s, _, _ := newTestSession(map[string]string{KeyState: "abc", KeyCSRFIssuedAt: issuedAt(issued)})

		require.True(t, fresh.ValidateState(s, "abc"))
	})

	t.Run("state without issue time is rejected", func(t *testing.T) {
		s, _, _ := newTestSession(map[string]string{KeyState: "abc"})
		require.False(t, c.ValidateState(s, "abc"))
	})

	t.Run("missing stored value never matches", func(t *testing.T) {
		s, _, _ := newTestSession(nil)
		require.False(t, c.ValidateState(s, ""))
		require.False(t, c.ValidateState(s, "abc"))
	})
}

func TestValidateNonce(t *testing.T) {
	c := newTestOIDCClient()
	s, storage, _ := newTestSession(pendingLogin(map[string]string{KeyNonce: "n-1"}))

	require.True(t, c.ValidateNonce(s, "n-1"))
	require.False(t, storage.has(KeyNonce))
	require.False(t, c.ValidateNonce(s, "n-1"))
}

func TestName(t *testing.T) {
	c := newTestOIDCClient()

	tests := []struct {
		name     string
		items    map[string]string
		wantName string
		wantOK   bool
	}{
		{
			name:   "no access token",
			items:  nil,
			wantOK: false,
		},
		{
			name:     "name claim present",
			items:    loggedIn(tokenWithName(t, "Ada Lovelace")),
			wantName: "Ada Lovelace",
			wantOK:   true,
		},
		{
			name:     "name claim missing",
			items:    loggedIn(makeToken(t, jwt.MapClaims{"sub": "user-1"})),
			wantName: "Unknown",
			wantOK:   true,
		},
		{
			name:     "token not decodable",
			items:    loggedIn("not-a-jwt"),
			wantName: "Unknown",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestSession(tt.items)
			name, ok := c.Name(s)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantName, name)
		})
	}
}

func TestEmail(t *testing.T) {
	c := newTestOIDCClient()
	items := loggedIn("a")
	items[KeyIDToken] = makeToken(t, jwt.MapClaims{"email": "ada@example.org"})
	s, _, _ := newTestSession(items)

	require.Equal(t, "ada@example.org", c.Email(s))
}

func TestDecodeIdentity(t *testing.T) {
	c := newTestOIDCClient()

	id, err := c.DecodeIdentity(context.Background(), makeToken(t, jwt.MapClaims{"nonce": "n-1", "email": "a@b.c"}))
	require.NoError(t, err)
	require.Equal(t, "n-1", id.Nonce)
	require.Equal(t, "a@b.c", id.Email)

	_, err = c.DecodeIdentity(context.Background(), "garbage")
	require.Error(t, err)

	_, err = c.DecodeIdentity(context.Background(), "")
	require.Error(t, err)
}

func TestLogout(t *testing.T) {
	c := newTestOIDCClient()
	items := loggedIn("a")
	items[KeyState] = "s"
	items[KeyRedirectAfterLogin] = "/x"
	s, storage, nav := newTestSession(items)

	c.Logout(s)

	require.Equal(t, 0, storage.len())
	target, ok := nav.Target()
	require.True(t, ok)
	require.Equal(t, LoginPath, target)
}

func TestIsAuthenticated(t *testing.T) {
	c := newTestOIDCClient()

	s, _, _ := newTestSession(loggedIn("a"))
	require.True(t, c.IsAuthenticated(s))

	s, _, _ = newTestSession(nil)
	require.False(t, c.IsAuthenticated(s))

	require.False(t, c.IsAuthenticated(NewSession(nil, nil)))
}
