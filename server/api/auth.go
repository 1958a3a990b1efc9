package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/zentity/zk-attest/logger"
)

// InternalTokenHeader authenticates calls from the services in front of this
// one.
const InternalTokenHeader = "X-Zentity-Internal-Token"

var publicPaths = map[string]bool{
	"/health": true,
}

// RequireInternalToken rejects requests without the shared internal token.
// An empty token disables the check.
func RequireInternalToken(token string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get(InternalTokenHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				log.Warn("Unauthorized request", "path", r.URL.Path)
				respondError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
