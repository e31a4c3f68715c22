package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware guards the MCP endpoint with a shared API key. Agents send
// the key either as `Authorization: Bearer <key>` or as the bare header
// value. An empty configured key disables the check entirely, which is the
// expected setup for local single-host deployments.
//
// The comparison is constant-time so the key cannot be recovered byte by
// byte from response timing.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		got := []byte(strings.TrimPrefix(header, "Bearer "))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
