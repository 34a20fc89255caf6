package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	set   TokenSet
	err   error
	calls int
	code  string
}

func (f *fakeExchanger) ExchangeCodeForTokens(_ context.Context, code string) (TokenSet, error) {
	f.calls++
	f.code = code
	return f.set, f.err
}

func TestTransition(t *testing.T) {
	start := Step{State: StateStart}

	tests := []struct {
		name string
		from Step
		ev   Event
		want Step
	}{
		{
			name: "error param fails with that error",
			from: start,
			ev:   Event{Kind: EventReceived, Params: CallbackParams{Error: "access_denied", Code: "c", State: "s"}},
			want: Step{State: StateFailed, Reason: "access_denied"},
		},
		{
			name: "no code is idle",
			from: start,
			ev:   Event{Kind: EventReceived, Params: CallbackParams{State: "s"}},
			want: Step{State: StateIdle},
		},
		{
			name: "code without state is invalid",
			from: start,
			ev:   Event{Kind: EventReceived, Params: CallbackParams{Code: "c"}},
			want: Step{State: StateFailed, Reason: FailureInvalidRequest},
		},
		{
			name: "code and state validate state",
			from: start,
			ev:   Event{Kind: EventReceived, Params: CallbackParams{Code: "c", State: "s"}},
			want: Step{State: StateValidatingState},
		},
		{
			name: "bad state",
			from: Step{State: StateValidatingState},
			ev:   Event{Kind: EventStateChecked, OK: false},
			want: Step{State: StateFailed, Reason: FailureInvalidState},
		},
		{
			name: "good state exchanges tokens",
			from: Step{State: StateValidatingState},
			ev:   Event{Kind: EventStateChecked, OK: true},
			want: Step{State: StateExchangingTokens},
		},
		{
			name: "exchange failure",
			from: Step{State: StateExchangingTokens},
			ev:   Event{Kind: EventTokensExchanged, OK: false},
			want: Step{State: StateFailed, Reason: FailureAuthenticationFailed},
		},
		{
			name: "exchange success validates nonce",
			from: Step{State: StateExchangingTokens},
			ev:   Event{Kind: EventTokensExchanged, OK: true},
			want: Step{State: StateValidatingNonce},
		},
		{
			name: "bad nonce",
			from: Step{State: StateValidatingNonce},
			ev:   Event{Kind: EventNonceChecked, OK: false},
			want: Step{State: StateFailed, Reason: FailureInvalidNonce},
		},
		{
			name: "good nonce authenticates",
			from: Step{State: StateValidatingNonce},
			ev:   Event{Kind: EventNonceChecked, OK: true},
			want: Step{State: StateAuthenticated},
		},
		{
			name: "out of order event is ignored",
			from: Step{State: StateValidatingState},
			ev:   Event{Kind: EventNonceChecked, OK: true},
			want: Step{State: StateValidatingState},
		},
		{
			name: "failed is terminal",
			from: Step{State: StateFailed, Reason: FailureInvalidState},
			ev:   Event{Kind: EventStateChecked, OK: true},
			want: Step{State: StateFailed, Reason: FailureInvalidState},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Transition(tt.from, tt.ev))
		})
	}
}

func TestCallbackControllerHandle(t *testing.T) {
	ctx := context.Background()

	// pending returns storage items for a browser that just started a login.
	pending := func(nonce string) map[string]string {
		return pendingLogin(map[string]string{
			KeyState:              "state-1",
			KeyNonce:              nonce,
			KeyRedirectAfterLogin: "/workspaces",
		})
	}

	t.Run("success stores tokens and redirects to the saved target", func(t *testing.T) {
		idToken := makeToken(t, jwt.MapClaims{"nonce": "nonce-1"})
		gw := &fakeExchanger{set: TokenSet{IDToken: idToken, AccessToken: "a", RefreshToken: "r"}}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, storage, nav := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})

		require.Equal(t, Step{State: StateAuthenticated}, step)
		require.Equal(t, 1, gw.calls)
		require.Equal(t, "code-1", gw.code)

		set, ok := s.Store.Tokens()
		require.True(t, ok)
		require.Equal(t, TokenSet{IDToken: idToken, AccessToken: "a", RefreshToken: "r"}, set)
		require.False(t, storage.has(KeyState))
		require.False(t, storage.has(KeyNonce))
		require.False(t, storage.has(KeyCSRFIssuedAt))
		require.False(t, storage.has(KeyRedirectAfterLogin))

		target, _ := nav.Target()
		require.Equal(t, "/workspaces", target)
	})

	t.Run("success without saved target goes home", func(t *testing.T) {
		idToken := makeToken(t, jwt.MapClaims{"nonce": "nonce-1"})
		gw := &fakeExchanger{set: TokenSet{IDToken: idToken, AccessToken: "a", RefreshToken: "r"}}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		items := pending("nonce-1")
		delete(items, KeyRedirectAfterLogin)
		s, _, nav := newTestSession(items)

		c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})

		target, _ := nav.Target()
		require.Equal(t, HomePath, target)
	})

	t.Run("wrong state fails before any network call", func(t *testing.T) {
		gw := &fakeExchanger{}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, storage, nav := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "forged"})

		require.Equal(t, Step{State: StateFailed, Reason: FailureInvalidState}, step)
		require.Equal(t, 0, gw.calls)
		require.Equal(t, 0, storage.len())

		target, _ := nav.Target()
		u, err := url.Parse(target)
		require.NoError(t, err)
		require.Equal(t, LoginPath, u.Path)
		require.Equal(t, FailureInvalidState, u.Query().Get("error"))
	})

	t.Run("expired login fails as invalid state", func(t *testing.T) {
		gw := &fakeExchanger{}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		items := pending("nonce-1")
		items[KeyCSRFIssuedAt] = issuedAt(time.Now().Add(-11 * time.Minute))
		s, storage, _ := newTestSession(items)

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})

		require.Equal(t, Step{State: StateFailed, Reason: FailureInvalidState}, step)
		require.Equal(t, 0, gw.calls)
		require.Equal(t, 0, storage.len())
	})

	t.Run("nonce mismatch persists nothing", func(t *testing.T) {
		idToken := makeToken(t, jwt.MapClaims{"nonce": "other"})
		gw := &fakeExchanger{set: TokenSet{IDToken: idToken, AccessToken: "a", RefreshToken: "r"}}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, storage, nav := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})

		require.Equal(t, Step{State: StateFailed, Reason: FailureInvalidNonce}, step)
		require.Equal(t, 0, storage.writes)
		require.Equal(t, 0, storage.len())
		target, _ := nav.Target()
		require.Equal(t, FailureTarget(FailureInvalidNonce), target)
	})

	t.Run("undecodable id token is a nonce failure", func(t *testing.T) {
		gw := &fakeExchanger{set: TokenSet{IDToken: "garbage", AccessToken: "a", RefreshToken: "r"}}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, storage, _ := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})

		require.Equal(t, Step{State: StateFailed, Reason: FailureInvalidNonce}, step)
		require.False(t, storage.has(KeyNonce))
		require.False(t, storage.has(KeyAccessToken))
	})

	t.Run("exchange failure", func(t *testing.T) {
		gw := &fakeExchanger{err: errors.New("boom")}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, storage, nav := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})

		require.Equal(t, Step{State: StateFailed, Reason: FailureAuthenticationFailed}, step)
		require.Equal(t, 0, storage.len())
		target, _ := nav.Target()
		require.Equal(t, FailureTarget(FailureAuthenticationFailed), target)
	})

	t.Run("incomplete token set is an exchange failure", func(t *testing.T) {
		gw := &fakeExchanger{set: TokenSet{AccessToken: "a"}}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, _, _ := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "state-1"})
		require.Equal(t, FailureAuthenticationFailed, step.Reason)
	})

	t.Run("error param navigates with that error", func(t *testing.T) {
		gw := &fakeExchanger{}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, _, nav := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{Error: "access_denied"})

		require.Equal(t, Step{State: StateFailed, Reason: "access_denied"}, step)
		require.Equal(t, 0, gw.calls)
		target, _ := nav.Target()
		require.Equal(t, "/login?error=access_denied", target)
	})

	t.Run("no code is idle and does not navigate", func(t *testing.T) {
		gw := &fakeExchanger{}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		s, storage, nav := newTestSession(pending("nonce-1"))

		step := c.Handle(ctx, s, CallbackParams{})

		require.Equal(t, Step{State: StateIdle}, step)
		require.Equal(t, 0, gw.calls)
		require.Equal(t, 4, storage.len())
		_, navigated := nav.Target()
		require.False(t, navigated)
	})

	t.Run("failure keeps existing tokens", func(t *testing.T) {
		gw := &fakeExchanger{}
		c := NewCallbackController(newTestOIDCClient(), gw, discardLogger())
		items := pending("nonce-1")
		for k, v := range loggedIn("a0") {
			items[k] = v
		}
		s, storage, _ := newTestSession(items)

		c.Handle(ctx, s, CallbackParams{Code: "code-1", State: "forged"})

		require.True(t, storage.has(KeyAccessToken))
		require.False(t, storage.has(KeyState))
	})
}
