package auth

// Session is one browser's view of the authentication state: its token
// store plus the way to move the browser elsewhere.
type Session struct {
	Store *TokenStore
	Nav   Navigator
}

// NewSession binds storage and navigator into a session.
func NewSession(storage Storage, nav Navigator) *Session {
	return &Session{Store: NewTokenStore(storage), Nav: nav}
}

// Logout clears every session key and sends the browser to the login page.
func (s *Session) Logout() {
	s.store().Clear()
	s.navigate(LoginPath)
}

func (s *Session) navigate(target string) {
	if s == nil || s.Nav == nil {
		return
	}
	s.Nav.Navigate(target)
}

func (s *Session) store() *TokenStore {
	if s == nil {
		return nil
	}
	return s.Store
}
