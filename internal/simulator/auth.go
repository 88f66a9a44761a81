package simulator

import (
	"log/slog"
	"net/http"
)

// APIKeyAuth rejects requests whose X-API-Key is not one of keys. With no keys configured
// every request is let through.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	valid := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		valid[k] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("Authentication failed: missing API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "API key required")
				return
			}
			if _, ok := valid[apiKey]; !ok {
				slog.Warn("Authentication failed: invalid API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
