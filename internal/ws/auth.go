package ws

import (
	"net/http"
	"strings"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/auth"
)

// WrapWithAuth guards the Socket.IO handshake with the same JWT the
// REST API uses. The client passes it as ?token= or a Bearer header.
func WrapWithAuth(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := auth.ParseToken(token); err != nil {
			logger.WithField("remote", r.RemoteAddr).WithError(err).Debug("Handshake rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
