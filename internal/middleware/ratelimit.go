package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/ashureev/challenge-lab/internal/identity"
)

// RateLimit returns middleware that allows each learner at most perMinute
// requests per minute through next. Requests without an identity share
// the remote address bucket.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	return RateLimitWith(ratelimit.New(&ratelimit.Config{
		Rate:     perMinute,
		Burst:    perMinute,
		Interval: time.Minute,
	}))
}

// RateLimitWith wraps next with a caller-supplied limiter.
func RateLimitWith(limiter ratelimit.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := identity.UserIDFromContext(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			if !limiter.Allow(r.Context(), key) {
				writeError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
