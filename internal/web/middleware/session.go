package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/core"
)

// UserStore resolves an authenticated identity to its users row.
type UserStore interface {
	EnsureUser(ctx context.Context, id uuid.UUID, email, name string) (core.User, error)
}

// TokenFrom returns the access token of r: a Bearer Authorization header,
// or the session cookie.
func TokenFrom(r *http.Request, cookieName string) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Session authenticates the request and stores the caller's identity in the
// context. The role always comes from the users row; the token's role claim
// is ignored. Requests without a valid token get 401.
func Session(v *auth.Verifier, cookieName string, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFrom(r, cookieName)
			if token == "" {
				deny(w, r, http.StatusUnauthorized, auth.ErrNoToken)
				return
			}

			id, err := v.Verify(token)
			if err != nil {
				deny(w, r, http.StatusUnauthorized, err)
				return
			}

			ctx := core.WithRequestMeta(r.Context(), core.RequestMeta{IP: ClientIP(r), UserAgent: r.UserAgent()})

			user, err := users.EnsureUser(ctx, id.UserID, id.Email, "")
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, core.ErrNotFound) {
					status = http.StatusUnauthorized
				}
				deny(w, r, status, err)
				return
			}
			id.Email = user.Email
			id.Role = auth.Role(user.Role)

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, id)))
		})
	}
}

// RequireAdmin rejects callers whose stored role is not admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			deny(w, r, http.StatusUnauthorized, auth.ErrNoToken)
			return
		}
		if !id.IsAdmin() {
			deny(w, r, http.StatusForbidden, core.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
