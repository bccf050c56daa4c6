package auth

import (
	"net/http"
	"strings"
)

const AccessCookieName = "feyza_access"

// TokenFromRequest returns the access token from the session cookie, falling
// back to an Authorization bearer header when allowBearer is set.
func TokenFromRequest(r *http.Request, allowBearer bool) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !allowBearer {
		return ""
	}
	return BearerToken(r.Header.Get("Authorization"))
}

func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
