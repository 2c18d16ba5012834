package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/csrf"
	"github.com/JonMunkholm/DanceEntry/internal/ratelimit"
)

const secret = "0123456789abcdef0123456789abcdef"

// fakeUsers returns the stored role for known ids.
type fakeUsers struct {
	roles map[uuid.UUID]string
	err   error
	calls int
}

func (f *fakeUsers) EnsureUser(_ context.Context, id uuid.UUID, email, _ string) (core.User, error) {
	f.calls++
	if f.err != nil {
		return core.User{}, f.err
	}
	role, ok := f.roles[id]
	if !ok {
		role = "participant"
	}
	return core.User{ID: id, Email: email, Role: role}, nil
}

func token(t *testing.T, id uuid.UUID, role auth.Role) string {
	t.Helper()
	tok, err := auth.Issue(secret, id, "dancer@example.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

// echoIdentity writes the identity seen by the handler.
var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	json.NewEncoder(w).Encode(id)
})

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSession(t *testing.T) {
	admin := uuid.New()
	users := &fakeUsers{roles: map[uuid.UUID]string{admin: "admin"}}
	h := Session(auth.NewVerifier(secret), "entry_session", users)(echoIdentity)

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH001", decodeError(t, rec).Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH002", decodeError(t, rec).Code)
	})

	t.Run("role comes from the users row", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, uuid.New(), auth.RoleAdmin))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var id auth.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
		assert.Equal(t, auth.RoleParticipant, id.Role)
	})

	t.Run("cookie session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: "entry_session", Value: token(t, admin, auth.RoleParticipant)})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var id auth.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
		assert.Equal(t, admin, id.UserID)
		assert.Equal(t, auth.RoleAdmin, id.Role)
	})

	t.Run("tokens without email never reach the users table", func(t *testing.T) {
		counting := &fakeUsers{}
		h := Session(auth.NewVerifier(secret), "entry_session", counting)(echoIdentity)
		for _, id := range []uuid.UUID{uuid.New(), uuid.New()} {
			tok, err := auth.Issue(secret, id, "", auth.RoleParticipant, time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "AUTH002", decodeError(t, rec).Code)
		}
		assert.Zero(t, counting.calls)
	})

	t.Run("user lookup failure", func(t *testing.T) {
		failing := Session(auth.NewVerifier(secret), "entry_session", &fakeUsers{err: errors.New("connection refused")})(echoIdentity)
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, admin, auth.RoleAdmin))
		rec := httptest.NewRecorder()
		failing.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "DB003", decodeError(t, rec).Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"participant", auth.WithIdentity(context.Background(), auth.Identity{Role: auth.RoleParticipant}), http.StatusForbidden},
		{"admin", auth.WithIdentity(context.Background(), auth.Identity{Role: auth.RoleAdmin}), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/entries", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCSRF(t *testing.T) {
	p := csrf.New(csrf.WithSecureCookie(false), csrf.WithErrorHandler(CSRFFailure))
	h := CSRF(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/entries", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH004", decodeError(t, rec).Code)

	issued := httptest.NewRecorder()
	tok, err := p.Issue(issued)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/entries", nil)
	req.Header.Set(csrf.HeaderName, tok)
	for _, c := range issued.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, "bearer requests skip csrf")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORS([]string{"https://entry.example.com/"})(next)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/settings/public", nil)
		req.Header.Set("Origin", "https://entry.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://entry.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/settings/public", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
		req.Header.Set("Origin", "https://entry.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-CSRF-Token")
	})
}

func TestRateLimit(t *testing.T) {
	l := ratelimit.New(ratelimit.Policy{Max: 2, Window: time.Minute})
	h := RateLimit(l, ByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/sections", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1000").Code)
	rec := send("10.0.0.1:2000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = send("10.0.0.1:3000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1000").Code, "other clients are unaffected")
}

func TestRateLimit_NilLimiter(t *testing.T) {
	next := http.NotFoundHandler()
	h := RateLimit(nil, ByIP)(next)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestByUser(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "ip:192.0.2.1", ByUser(req))

	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: id}))
	assert.Equal(t, "user:"+id.String(), ByUser(req))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(true)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")

	rec = httptest.NewRecorder()
	SecurityHeaders(false)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}
