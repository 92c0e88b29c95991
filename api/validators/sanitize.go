package validators

import (
	"net/url"
	"strings"
)

// SafeRedirect returns next when it is a local absolute path and "/" otherwise.
// Scheme-relative ("//host") and backslash tricks are rejected.
func SafeRedirect(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
