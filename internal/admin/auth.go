// Package admin implements the REST/WebSocket surface used to manage
// instances out-of-band from the MCP protocol itself: list/add/remove/
// enable/disable, tool discovery, ad hoc tool calls, health, and a
// realtime log stream. It is grounded on the original's security manager
// (bearer-token validation) and API routes.
package admin

import (
	"net/http"
	"strings"

	"github.com/mcprouter/mcprouter/internal/routererr"
)

// Auth validates the Authorization header against a configured bearer
// token. When no token is configured or validation is disabled, every
// request passes — matching the original's SecurityManager semantics.
type Auth struct {
	token   string
	enabled bool
}

// NewAuth builds an Auth gate. enabled disables all checking regardless of
// token when false.
func NewAuth(token string, enabled bool) *Auth {
	return &Auth{token: token, enabled: enabled}
}

// Validate checks the raw Authorization header value, stripping a "Bearer "
// prefix if present.
func (a *Auth) Validate(header string) error {
	if !a.enabled || a.token == "" {
		return nil
	}
	got := strings.TrimPrefix(header, "Bearer ")
	if got == "" {
		return routererr.Security("missing bearer token")
	}
	if got != a.token {
		return routererr.Security("invalid bearer token")
	}
	return nil
}

// Middleware wraps next, rejecting requests that fail Validate with 401.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Validate(r.Header.Get("Authorization")); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MaskToken renders a token for logging: first/last 4 characters visible,
// "***" for anything too short to mask usefully, "None" when absent.
func MaskToken(token string) string {
	if token == "" {
		return "None"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// CORSOrigins maps a configured cors_origin value to the concrete origin
// list a handler should echo back, matching the original's app.py mapping:
// "*"/"0.0.0.0" means wildcard, "127.0.0.1" means loopback-only, anything
// else is used literally.
func CORSOrigins(corsOrigin string) []string {
	switch corsOrigin {
	case "", "*", "0.0.0.0":
		return []string{"*"}
	case "127.0.0.1":
		return []string{"http://127.0.0.1", "http://localhost"}
	default:
		return []string{corsOrigin}
	}
}
