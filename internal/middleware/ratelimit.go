package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit caps the request rate to perMinute with a burst of the same
// size. A non-positive perMinute disables the limit.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "Too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
