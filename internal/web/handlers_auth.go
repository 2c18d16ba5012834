package web

import (
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleCSRFToken issues a token and its cookie for browser clients.
func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.csrf.Issue(w)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

type sessionRequest struct {
	Token string `json:"token" validate:"required"`
	Name  string `json:"name" validate:"max=100"`
}

type sessionResponse struct {
	User      core.User `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleCreateSession exchanges an access token for an HttpOnly session
// cookie. The users row is created on first sign-in.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	id, err := s.verifier.Verify(req.Token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.users.EnsureUser(r.Context(), id.UserID, id.Email, req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Security.SessionCookie,
		Value:    req.Token,
		Path:     "/",
		Expires:  id.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logging.FromContext(r.Context()).Info("session created", "user_id", user.ID, "role", user.Role)
	writeJSON(w, sessionResponse{User: user, ExpiresAt: id.ExpiresAt})
}

// handleDeleteSession clears the session cookie.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Security.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
	Admin bool      `json:"admin"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	writeJSON(w, meResponse{
		ID:    id.UserID.String(),
		Email: id.Email,
		Role:  id.Role,
		Admin: id.IsAdmin(),
	})
}

// handlePublicSettings returns titles, background URLs and deadline status.
func (s *Server) handlePublicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.PublicSettings(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

// handleBackground serves a page's background image.
func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	rc, key, err := s.service.OpenBackground(r.Context(), urlParam(r, "page"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(key))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("background copy interrupted", "error", err)
	}
}
