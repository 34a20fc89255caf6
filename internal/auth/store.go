package auth

// Keys of the per-browser session keyspace.
const (
	KeyIDToken            = "id_token"
	KeyAccessToken        = "access_token"
	KeyRefreshToken       = "refresh_token"
	KeyState              = "state"
	KeyNonce              = "nonce"
	KeyRedirectAfterLogin = "redirect_after_login"
	// KeyCSRFIssuedAt holds the unix time the state and nonce were issued.
	KeyCSRFIssuedAt = "csrf_issued_at"
)

// undefinedValue is what a broken writer leaves behind when it stores an
// unset token. It is treated as absent.
const undefinedValue = "undefined"

var (
	tokenKeys = []string{KeyIDToken, KeyAccessToken, KeyRefreshToken}
	csrfKeys  = []string{KeyState, KeyNonce, KeyCSRFIssuedAt}
	allKeys   = []string{KeyIDToken, KeyAccessToken, KeyRefreshToken, KeyState, KeyNonce, KeyCSRFIssuedAt, KeyRedirectAfterLogin}
)

// Storage is the key/value capability backing one browser session.
// Implementations must be safe for concurrent use.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
}

// TokenStore wraps a session's Storage with the token lifecycle rules.
// A TokenStore with nil storage behaves as an empty store that ignores writes.
type TokenStore struct {
	storage Storage
}

// NewTokenStore creates a token store over the given storage.
func NewTokenStore(storage Storage) *TokenStore {
	return &TokenStore{storage: storage}
}

// Set writes value under key.
func (s *TokenStore) Set(key, value string) {
	if s == nil || s.storage == nil {
		return
	}
	s.storage.SetItem(key, value)
}

// Get reads the value under key. A missing value or the literal "undefined"
// is reported as not present; when that happens for a token key the session
// is treated as unauthenticated and all tokens and the CSRF pair are cleared.
func (s *TokenStore) Get(key string) (string, bool) {
	if s == nil || s.storage == nil {
		return "", false
	}
	value, ok := s.storage.GetItem(key)
	if ok && value != "" && value != undefinedValue {
		return value, true
	}
	if isTokenKey(key) {
		s.remove(tokenKeys...)
		s.remove(csrfKeys...)
	} else if ok {
		s.storage.RemoveItem(key)
	}
	return "", false
}

// Take reads and deletes the value under key, whatever it was.
func (s *TokenStore) Take(key string) (string, bool) {
	if s == nil || s.storage == nil {
		return "", false
	}
	value, ok := s.storage.GetItem(key)
	s.storage.RemoveItem(key)
	if !ok || value == "" || value == undefinedValue {
		return "", false
	}
	return value, true
}

// Delete removes a single key.
func (s *TokenStore) Delete(key string) {
	s.remove(key)
}

// Clear removes every session key.
func (s *TokenStore) Clear() {
	s.remove(allKeys...)
}

// ClearTokens removes the three token keys.
func (s *TokenStore) ClearTokens() {
	s.remove(tokenKeys...)
}

// ClearCSRF removes the state and nonce keys and their issue time.
func (s *TokenStore) ClearCSRF() {
	s.remove(csrfKeys...)
}

// Tokens returns the stored token set. The set is only reported when all
// three tokens are present; a partial set is cleared.
func (s *TokenStore) Tokens() (TokenSet, bool) {
	if s == nil || s.storage == nil {
		return TokenSet{}, false
	}
	var set TokenSet
	var ok bool
	if set.AccessToken, ok = s.Get(KeyAccessToken); !ok {
		return TokenSet{}, false
	}
	if set.IDToken, ok = s.Get(KeyIDToken); !ok {
		return TokenSet{}, false
	}
	if set.RefreshToken, ok = s.Get(KeyRefreshToken); !ok {
		return TokenSet{}, false
	}
	return set, true
}

// SaveTokens persists a complete token set. An incomplete set clears the
// stored tokens instead so that a partial set is never observable.
func (s *TokenStore) SaveTokens(set TokenSet) bool {
	if s == nil || s.storage == nil {
		return false
	}
	if !set.Complete() {
		s.ClearTokens()
		return false
	}
	s.storage.SetItem(KeyIDToken, set.IDToken)
	s.storage.SetItem(KeyAccessToken, set.AccessToken)
	s.storage.SetItem(KeyRefreshToken, set.RefreshToken)
	return true
}

func (s *TokenStore) remove(keys ...string) {
	if s == nil || s.storage == nil {
		return
	}
	for _, key := range keys {
		s.storage.RemoveItem(key)
	}
}

func isTokenKey(key string) bool {
	for _, k := range tokenKeys {
		if k == key {
			return true
		}
	}
	return false
}
