package auth

import (
	"net/url"
	"strings"
)

// ValidateRedirectPath returns path if it is a same-origin relative path and
// fallback otherwise. Absolute and protocol-relative URLs are rejected.
func ValidateRedirectPath(path, fallback string) string {
	if path == "" || !strings.HasPrefix(path, "/") {
		return fallback
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, `/\`) {
		return fallback
	}
	u, err := url.Parse(path)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}

	sanitized := u.EscapedPath()
	if sanitized == "" {
		return fallback
	}
	if u.RawQuery != "" {
		sanitized += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		sanitized += "#" + u.EscapedFragment()
	}
	return sanitized
}
