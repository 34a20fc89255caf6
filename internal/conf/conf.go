package conf

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the config structure.
type Config struct {
	Server        Server        `yaml:"server"`
	Auth          Auth          `yaml:"auth"`
	Authorization Authorization `yaml:"authorization"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	Log           Log           `yaml:"log"`
}

// Server is the server config. SessionDB is the SQLite file holding
// browser sessions, or "memory" to keep them in process.
type Server struct {
	Addr         string        `yaml:"addr"`
	BaseURL      string        `yaml:"base_url"`
	SessionDB    string        `yaml:"session_db"`
	SessionIdle  time.Duration `yaml:"session_idle"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

// Auth is the authentication config.
type Auth struct {
	// AuthorizationEndpoint is the identity provider's authorize URL.
	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	ClientID              string `yaml:"client_id"`
	RedirectURI           string `yaml:"redirect_uri"` // Optional: if not set, auto-constructed from server.base_url
	// IdentityProvider is passed as the idp hint, e.g. "google".
	IdentityProvider string `yaml:"identity_provider"`
	// Issuer enables ID token signature verification when set.
	Issuer string `yaml:"issuer"`

	// APIEndpoint is the token gateway and workspace API base URL.
	APIEndpoint string `yaml:"api_endpoint"`
	APIKey      string `yaml:"api_key"`
}

// Authorization is the authorization service config.
type Authorization struct {
	ArboristURI string    `yaml:"arborist_uri"`
	Resources   Resources `yaml:"resources"`
}

// Resources holds the capability checked for each portal role.
type Resources struct {
	Admin   Resource `yaml:"admin"`
	Credits Resource `yaml:"credits"`
	Grants  Resource `yaml:"grants"`
}

// Resource is a {resource, service} capability pair.
type Resource struct {
	Resource string `yaml:"resource"`
	Service  string `yaml:"service"`
}

// RateLimit throttles the login endpoints per client IP.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
	// TrustedProxies lists the addresses or CIDR ranges of reverse proxies
	// allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ProxyPrefixes parses TrustedProxies. A bare address becomes a single-host
// prefix.
func (r RateLimit) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, entry := range r.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Log is the logging config.
type Log struct {
	Level string `yaml:"level"`
}

// CallbackPath is where the identity provider sends the browser back to.
const CallbackPath = "/login/callback"

// GetRedirectURI returns the OIDC callback URL
// If RedirectURI is explicitly configured, use it
// Otherwise, construct from server base_url + hardcoded callback path
func (a *Auth) GetRedirectURI(serverBaseURL string) string {
	if a.RedirectURI != "" {
		return a.RedirectURI
	}
	return strings.TrimSuffix(serverBaseURL, "/") + CallbackPath
}

// Load loads config from file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses config from YAML, applies defaults and env overrides, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	cfg.Auth.RedirectURI = cfg.Auth.GetRedirectURI(cfg.Server.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.SessionDB == "" {
		c.Server.SessionDB = "data/sessions.db"
	}
	if c.Server.SessionIdle <= 0 {
		c.Server.SessionIdle = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 10
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = c.RateLimit.Requests
	}
	if c.Authorization.Resources.Admin == (Resource{}) {
		c.Authorization.Resources.Admin = Resource{Resource: "/admin", Service: "workspace_admin"}
	}
}

// Override config from env vars if present
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"SERVER_ADDR":       &c.Server.Addr,
		"SERVER_BASE_URL":   &c.Server.BaseURL,
		"SESSION_DB":        &c.Server.SessionDB,
		"OIDC_AUTH_URI":     &c.Auth.AuthorizationEndpoint,
		"OIDC_CLIENT_ID":    &c.Auth.ClientID,
		"OIDC_REDIRECT_URI": &c.Auth.RedirectURI,
		"OIDC_ISSUER":       &c.Auth.Issuer,
		"AUTH_SERVICE":      &c.Auth.IdentityProvider,
		"API_GW_ENDPOINT":   &c.Auth.APIEndpoint,
		"API_KEY":           &c.Auth.APIKey,
		"ARBORIST_URI":      &c.Authorization.ArboristURI,
		"LOG_LEVEL":         &c.Log.Level,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if secure, err := strconv.ParseBool(v); err == nil {
			c.Server.CookieSecure = secure
		}
	}
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	var errs []error
	for _, field := range []struct{ name, value string }{
		{"auth.authorization_endpoint", c.Auth.AuthorizationEndpoint},
		{"auth.client_id", c.Auth.ClientID},
		{"auth.api_endpoint", c.Auth.APIEndpoint},
		{"auth.api_key", c.Auth.APIKey},
		{"authorization.arborist_uri", c.Authorization.ArboristURI},
	} {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", field.name))
		}
	}
	if _, err := c.RateLimit.ProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
