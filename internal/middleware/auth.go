package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAPIToken guards the local API with a shared token. Paired devices
// on the store LAN send it as "Authorization: Bearer <token>". An empty
// configured token disables the check entirely.
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("Authorization")
			got = strings.TrimPrefix(got, "Bearer ")
			if got == "" {
				// WebSocket clients can't set headers from browsers; allow
				// the token as a query parameter there.
				got = r.URL.Query().Get("token")
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
