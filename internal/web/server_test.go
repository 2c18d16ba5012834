package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/config"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	_ "github.com/JonMunkholm/DanceEntry/internal/core/sections"
	"github.com/JonMunkholm/DanceEntry/internal/csrf"
	"github.com/JonMunkholm/DanceEntry/internal/ratelimit"
	"github.com/JonMunkholm/DanceEntry/internal/storage"
)

const testSecret = "test-secret-with-enough-length-000"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{
			MaxMusicSize:    1 << 20,
			MaxVideoSize:    1 << 20,
			MaxPhotoSize:    1 << 20,
			MaxDocumentSize: 1 << 20,
			MaxImportSize:   1 << 20,
			MaxConcurrent:   2,
			MaxWaitTime:     time.Second,
		},
		Security: config.SecurityConfig{
			JWTSecret:     testSecret,
			SessionCookie: "entry_session",
			CSRFTTL:       time.Hour,
		},
		App: config.AppConfig{URL: "http://localhost:8080", Timezone: "Asia/Tokyo"},
	}
}

// fakeUsers stands in for the users table.
type fakeUsers struct {
	admins map[uuid.UUID]bool
}

func (f *fakeUsers) EnsureUser(_ context.Context, id uuid.UUID, email, name string) (core.User, error) {
	role := "participant"
	if f.admins[id] {
		role = "admin"
	}
	return core.User{ID: id, Email: email, Name: name, Role: role}, nil
}

type fixture struct {
	srv         *Server
	admin       uuid.UUID
	participant uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cfg := testConfig()
	store := storage.NewWithFs(afero.NewMemMapFs())
	svc := core.NewService(nil, cfg, store, nil)

	f := &fixture{admin: uuid.New(), participant: uuid.New()}
	users := &fakeUsers{admins: map[uuid.UUID]bool{f.admin: true}}
	f.srv = NewServer(cfg, svc, append([]Option{WithUserStore(users)}, opts...)...)
	return f
}

func (f *fixture) token(t *testing.T, id uuid.UUID) string {
	t.Helper()
	// The claimed role is ignored; the users row decides.
	tok, err := auth.Issue(testSecret, id, "user@example.com", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, req *http.Request, as uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	if as != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+f.token(t, as))
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), uuid.Nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	// Browser flow: fetch a CSRF token, then exchange the access token.
	csrfRec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/csrf", nil), uuid.Nil)
	require.Equal(t, http.StatusOK, csrfRec.Code)
	var issued struct{ Token string }
	require.NoError(t, json.Unmarshal(csrfRec.Body.Bytes(), &issued))

	body := `{"token":"` + f.token(t, f.participant) + `","name":"Aoi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(body))
	req.Header.Set(csrf.HeaderName, issued.Token)
	for _, c := range csrfRec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := f.do(t, req, uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "entry_session" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	// The cookie alone authenticates GETs.
	me := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	me.AddCookie(session)
	rec = f.do(t, me, uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, f.participant.String(), got.ID)
	assert.False(t, got.Admin)
}

func TestCreateSession_Rejections(t *testing.T) {
	f := newFixture(t)

	t.Run("without csrf token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{"token":"x"}`))
		rec := f.do(t, req, uuid.Nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "AUTH004", decodeErr(t, rec).Code)
	})

	t.Run("invalid access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{"token":"garbage"}`))
		// A bearer header skips the CSRF check.
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		f.srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer x")
		rec := httptest.NewRecorder()
		f.srv.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeErr(t, rec)
		assert.Equal(t, "SEC003", resp.Code)
		assert.Contains(t, rec.Body.String(), `"field":"token"`)
	})
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/me", "/api/sections", "/api/entries/mine", "/api/admin/entries"} {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, path, nil), uuid.Nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "AUTH001", decodeErr(t, rec).Code, path)
	}
}

func TestAdminRoutesRejectParticipants(t *testing.T) {
	f := newFixture(t)
	paths := []string{
		"/api/admin/entries",
		"/api/admin/settings",
		"/api/admin/templates/entries",
		"/api/admin/debug-logs",
		"/api/admin/uploads/status",
	}
	for _, path := range paths {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, path, nil), f.participant)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "AUTH003", decodeErr(t, rec).Code, path)
	}
}

func TestListSections(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/sections", nil), f.participant)
	require.Equal(t, http.StatusOK, rec.Code)

	var sections []struct {
		Key         string `json:"key"`
		DeadlineKey string `json:"deadline_key"`
		Fields      []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sections))
	require.Len(t, sections, 7)
	assert.Equal(t, "basic_info", sections[0].Key)
	assert.Equal(t, "deadline.basic_info", sections[0].DeadlineKey)
	require.NotEmpty(t, sections[0].Fields)
	assert.Equal(t, "team_name", sections[0].Fields[0].Name)
	assert.Equal(t, "text", sections[0].Fields[0].Type)
}

func TestEntryRoutes_BadParams(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/entries/not-a-uuid", nil), f.participant)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ENT001", decodeErr(t, rec).Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/files/42", nil), f.participant)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "FILE006", decodeErr(t, rec).Code)

	path := "/api/entries/" + uuid.NewString() + "/sections/karaoke_info"
	rec = f.do(t, httptest.NewRequest(http.MethodGet, path, nil), f.participant)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SEC001", decodeErr(t, rec).Code)
}

func TestUploadFile_UnknownType(t *testing.T) {
	f := newFixture(t)
	body, ctype := multipartBody(t, map[string]string{"file_type": "karaoke"}, "song.mp3", []byte("ID3"))
	req := httptest.NewRequest(http.MethodPost, "/api/entries/"+uuid.NewString()+"/files", body)
	req.Header.Set("Content-Type", ctype)

	rec := f.do(t, req, f.participant)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE002", decodeErr(t, rec).Code)
}

func TestUploadFile_MissingFile(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("file_type", "music"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/entries/"+uuid.NewString()+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(t, req, f.participant)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"file"`)
}

func TestDownloadTemplate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/templates/basic_info", nil), f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "basic_info_template.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\ufeffteam_name,"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/templates/entries", nil), f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\ufeffemail,name,team_name"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/templates/nope", nil), f.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CSV003", decodeErr(t, rec).Code)
}

func TestExportSection_Unknown(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/export/nope", nil), f.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CSV003", decodeErr(t, rec).Code)
}

func TestImport_EmptyFile(t *testing.T) {
	f := newFixture(t)
	body, ctype := multipartBody(t, nil, "entries.csv", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", body)
	req.Header.Set("Content-Type", ctype)

	rec := f.do(t, req, f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CSV002", decodeErr(t, rec).Code)
}

func TestImport_MissingColumns(t *testing.T) {
	f := newFixture(t)
	body, ctype := multipartBody(t, nil, "entries.csv", []byte("email,name\r\na@example.com,A\r\n"))
	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", body)
	req.Header.Set("Content-Type", ctype)

	rec := f.do(t, req, f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CSV001", decodeErr(t, rec).Code)
}

func TestReview_Validation(t *testing.T) {
	f := newFixture(t)
	path := "/api/admin/entries/" + uuid.NewString() + "/review"

	rec := f.do(t, httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"score":10}`)), f.admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"status"`)

	rec = f.do(t, httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"status":"draft","extra":1}`)), f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"status":"crowned"}`)), f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ENT003", decodeErr(t, rec).Code)
}

func TestSendNotification_Validation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/api/admin/notifications/send",
		strings.NewReader(`{"template":"reminder","entry_ids":[]}`)), f.admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"entry_ids"`)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/admin/notifications/send",
		strings.NewReader(`{"template":"reminder","entry_ids":["`+uuid.NewString()+`"]}`)), f.admin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "mail is not configured")
	assert.Equal(t, "MAIL001", decodeErr(t, rec).Code)
}

func TestUploadStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/uploads/status", nil), f.admin)
	require.Equal(t, http.StatusOK, rec.Code)

	var st core.UploadLimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.MaxConcurrent)
	assert.Equal(t, 2, st.Available)
}

func TestDebugLogs(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/debug-logs?limit=5", nil), f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records"`)
}

func TestLoginRateLimit(t *testing.T) {
	limits := ratelimit.NewSet(map[ratelimit.Class]ratelimit.Policy{
		ratelimit.Login: {Max: 1, Window: time.Minute},
	})
	f := newFixture(t, WithRateLimits(limits))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(`{"token":"x"}`))
		req.RemoteAddr = "198.51.100.4:5000"
		req.Header.Set("Authorization", "Bearer x")
		rec := httptest.NewRecorder()
		f.srv.Router().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrNoToken, http.StatusUnauthorized},
		{core.ErrForbidden, http.StatusForbidden},
		{core.ErrDeadlinePassed, http.StatusForbidden},
		{core.ErrEntryNotFound, http.StatusNotFound},
		{core.ErrEntryExists, http.StatusConflict},
		{&core.IncompleteError{Sections: []string{"sns_info"}}, http.StatusUnprocessableEntity},
		{core.ValidationErrors{{Field: "x", Message: "bad"}}, http.StatusBadRequest},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAttachment(t *testing.T) {
	assert.Equal(t, `attachment; filename=entries.csv`, attachment("entries.csv"))
	assert.Equal(t, `attachment; filename="my song.mp3"`, attachment("my song.mp3"))
	assert.Equal(t, `attachment; filename*=utf-8''%E6%9B%B2.mp3`, attachment("\u66f2.mp3"))
}
