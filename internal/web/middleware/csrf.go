package middleware

import (
	"net/http"

	"github.com/JonMunkholm/DanceEntry/internal/csrf"
)

// CSRF applies p to cookie-authenticated requests. A request that carries
// its token in the Authorization header has no ambient credential to abuse
// and skips the check.
func CSRF(p *csrf.Protector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := p.Middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearerToken(r) != "" {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// CSRFFailure writes the standard 403 error body; pass it to
// csrf.WithErrorHandler.
func CSRFFailure(w http.ResponseWriter, r *http.Request, err error) {
	deny(w, r, http.StatusForbidden, err)
}
