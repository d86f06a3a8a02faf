package main

import (
	"net"
	"net/http"

	"github.com/ferro-labs/model-router/internal/ratelimit"
)

// rateLimitMiddleware limits requests per client IP using a token bucket.
// A non-positive rate disables limiting.
func rateLimitMiddleware(ratePerSecond, burst float64) func(http.Handler) http.Handler {
	if ratePerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	store := ratelimit.NewStore(ratePerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !store.Allow(ip) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error": map[string]any{"kind": "rate-limited", "message": "too many requests"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
