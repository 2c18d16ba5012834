// Package csrf implements double-submit CSRF protection.
//
// Issue hands the caller a random token and stores sha256(token|expiry) with
// the expiry in an HttpOnly cookie. State-changing requests must echo the
// raw token in the X-CSRF-Token header; Verify recomputes the hash and
// compares it with the cookie. Tokens are never rotated, they simply expire.
package csrf

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// HeaderName carries the raw token on unsafe requests.
	HeaderName = "X-CSRF-Token"

	// DefaultCookieName holds the token hash and expiry.
	DefaultCookieName = "csrf_token"

	// DefaultTTL is how long an issued token stays valid.
	DefaultTTL = 24 * time.Hour

	tokenBytes = 32
)

var (
	ErrTokenMissing = errors.New("csrf token missing")
	ErrTokenInvalid = errors.New("csrf token invalid")
	ErrTokenExpired = errors.New("csrf token expired")
)

// Protector issues and verifies tokens.
type Protector struct {
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
	onError    func(http.ResponseWriter, *http.Request, error)
}

// Option configures a Protector.
type Option func(*Protector)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(p *Protector) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithSecureCookie sets the cookie's Secure attribute.
func WithSecureCookie(secure bool) Option {
	return func(p *Protector) { p.secure = secure }
}

// WithErrorHandler replaces the response written when verification fails.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(p *Protector) {
		if h != nil {
			p.onError = h
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Protector) { p.now = now }
}

// New creates a Protector with a 24 hour TTL and Secure cookies.
func New(opts ...Option) *Protector {
	p := &Protector{
		cookieName: DefaultCookieName,
		ttl:        DefaultTTL,
		secure:     true,
		now:        time.Now,
		onError:    writeError,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Issue generates a token, sets the hash cookie on w and returns the raw
// token for the client to echo back.
func (p *Protector) Issue(w http.ResponseWriter) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := hex.EncodeToString(buf)

	expires := p.now().Add(p.ttl)
	exp := strconv.FormatInt(expires.Unix(), 10)

	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    digest(token, exp) + "." + exp,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(p.ttl.Seconds()),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Verify checks the header token against the cookie.
func (p *Protector) Verify(r *http.Request) error {
	token := r.Header.Get(HeaderName)
	cookie, err := r.Cookie(p.cookieName)
	if token == "" || err != nil || cookie.Value == "" {
		return ErrTokenMissing
	}

	hash, exp, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrTokenInvalid
	}
	if !p.now().Before(time.Unix(expUnix, 0)) {
		return ErrTokenExpired
	}

	if subtle.ConstantTimeCompare([]byte(digest(token, exp)), []byte(hash)) != 1 {
		return ErrTokenInvalid
	}
	return nil
}

// Middleware verifies every request except GET, HEAD and OPTIONS.
// Failures go to the error handler, a 403 JSON body by default.
func (p *Protector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if err := p.Verify(r); err != nil {
			p.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func digest(token, exp string) string {
	sum := sha256.Sum256([]byte(token + "|" + exp))
	return hex.EncodeToString(sum[:])
}
