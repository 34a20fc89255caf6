package auth

import (
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"workspace-portal/internal/conf"
)

// mapStorage is an in-memory Storage that counts writes.
type mapStorage struct {
	mu     sync.Mutex
	items  map[string]string
	writes int
}

func newMapStorage(items map[string]string) *mapStorage {
	s := &mapStorage{items: make(map[string]string)}
	for k, v := range items {
		s.items[k] = v
	}
	return s
}

func (s *mapStorage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *mapStorage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	s.writes++
}

func (s *mapStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

func (s *mapStorage) has(key string) bool {
	_, ok := s.GetItem(key)
	return ok
}

func (s *mapStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// newTestSession returns a session over items plus its storage and navigator.
func newTestSession(items map[string]string) (*Session, *mapStorage, *RecordingNavigator) {
	storage := newMapStorage(items)
	nav := &RecordingNavigator{}
	return NewSession(storage, nav), storage, nav
}

// loggedIn returns storage items for a session holding a full token set.
func loggedIn(accessToken string) map[string]string {
	return map[string]string{
		KeyIDToken:      "id-token",
		KeyAccessToken:  accessToken,
		KeyRefreshToken: "refresh-token",
	}
}

// issuedAt is the stored form of a CSRF issue time.
func issuedAt(at time.Time) string {
	return strconv.FormatInt(at.Unix(), 10)
}

// pendingLogin returns storage items for a login started just now.
func pendingLogin(items map[string]string) map[string]string {
	items[KeyCSRFIssuedAt] = issuedAt(time.Now())
	return items
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeToken builds a signed JWT with the given claims. Signatures are not
// checked on the unverified path, so a fixed test key is enough.
func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func tokenWithName(t *testing.T, name string) string {
	return makeToken(t, jwt.MapClaims{
		"sub":     "user-1",
		"context": map[string]any{"user": map[string]any{"name": name}},
	})
}

func testAuthConf() *conf.Auth {
	return &conf.Auth{
		AuthorizationEndpoint: "https://idp.example.org/user/oauth2/authorize",
		ClientID:              "portal-client",
		RedirectURI:           "https://portal.example.org/login/callback",
		IdentityProvider:      "google",
	}
}

func newTestOIDCClient() *OIDCClient {
	return NewOIDCClient(testAuthConf(), WithOIDCLogger(discardLogger()))
}
