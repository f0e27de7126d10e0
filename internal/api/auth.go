package api

import (
	"crypto/hmac"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// TokenGuard protects mutating routes with a shared admin token.
// There is no login flow: the token is handed out through configuration
// and callers present it on every request, either as
// "Authorization: Bearer <token>" or in the "X-Admin-Token" header.
//
// An empty token disables the guard entirely, which is the expected
// mode for local development.
type TokenGuard struct {
	token []byte
}

// NewTokenGuard creates a guard for the given admin token
func NewTokenGuard(token string) *TokenGuard {
	if token == "" {
		log.Println("⚠️ Admin token not set - mutating endpoints are open (dev mode)")
		return &TokenGuard{}
	}
	log.Println("🔐 Admin token configured - mutating endpoints require authentication")
	return &TokenGuard{token: []byte(token)}
}

// Enabled reports whether the guard actually checks anything
func (g *TokenGuard) Enabled() bool {
	return len(g.token) > 0
}

// Middleware rejects requests that don't carry the admin token
func (g *TokenGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		presented := tokenFromRequest(r)
		if presented == "" || !hmac.Equal([]byte(presented), g.token) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "unauthorized",
				"message": "Admin token required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest extracts the admin token from the request headers
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return r.Header.Get("X-Admin-Token")
}
