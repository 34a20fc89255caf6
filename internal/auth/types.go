package auth

// TokenSet is the credential triple issued by the token gateway.
// It is either stored whole or not at all.
type TokenSet struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether all three tokens are present.
func (t TokenSet) Complete() bool {
	return t.IDToken != "" && t.AccessToken != "" && t.RefreshToken != ""
}

// Identity holds the claims read from a decoded token payload.
// It is derived on demand and never stored.
type Identity struct {
	Name  string
	Nonce string
	Email string
}

// Permission is a single capability tuple granted on a resource.
type Permission struct {
	Method  string `json:"method"`
	Service string `json:"service"`
}

// UserAuthMapping maps a resource path to the permissions the current
// principal holds on it, as returned by the authorization service.
type UserAuthMapping map[string][]Permission

// ResourceConfig names the capability an authorization check looks for.
type ResourceConfig struct {
	Resource string `yaml:"resource" json:"resource"`
	Service  string `yaml:"service" json:"service"`
}

// Roles is the result of evaluating all portal capabilities at once.
type Roles struct {
	Admin   bool `json:"admin"`
	Credits bool `json:"credits"`
	Grants  bool `json:"grants"`
}

// Any reports whether at least one role is granted.
func (r Roles) Any() bool {
	return r.Admin || r.Credits || r.Grants
}
