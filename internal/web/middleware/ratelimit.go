package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/ratelimit"
)

var errRateLimited = errors.New("rate limit exceeded")

// KeyFunc picks the identifier a request is counted under.
type KeyFunc func(r *http.Request) string

// ByIP counts requests per client address.
func ByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ByUser counts requests per authenticated user, falling back to the
// client address before authentication.
func ByUser(r *http.Request) string {
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		return "user:" + id.UserID.String()
	}
	return ByIP(r)
}

// RateLimit enforces l on every request. A nil limiter disables the check.
// Denied requests get 429 with Retry-After.
func RateLimit(l *ratelimit.Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(key(r))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter(time.Now())/time.Second)))
				deny(w, r, http.StatusTooManyRequests, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
