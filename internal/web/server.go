// Package web provides the HTTP server and JSON handlers for the entry
// service.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/config"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/csrf"
	"github.com/JonMunkholm/DanceEntry/internal/ratelimit"
	"github.com/JonMunkholm/DanceEntry/internal/web/middleware"
)

// Server is the HTTP server for the entry service.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	users    middleware.UserStore
	limits   *ratelimit.Set
	csrf     *csrf.Protector
	verifier *auth.Verifier
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithUserStore replaces the store used to resolve session users. The
// default is the service itself.
func WithUserStore(u middleware.UserStore) Option {
	return func(s *Server) { s.users = u }
}

// WithRateLimits sets the per-class limiters. Without it the server builds
// its own from cfg.Rate.
func WithRateLimits(set *ratelimit.Set) Option {
	return func(s *Server) { s.limits = set }
}

// NewRateLimits builds the limiter set described by cfg. It returns nil when
// rate limiting is disabled.
func NewRateLimits(cfg config.RateLimitConfig) *ratelimit.Set {
	if !cfg.Enabled {
		return nil
	}
	return ratelimit.NewSet(map[ratelimit.Class]ratelimit.Policy{
		ratelimit.Login:  {Max: cfg.LoginMax, Window: cfg.LoginWindow},
		ratelimit.API:    {Max: cfg.APIMax, Window: cfg.APIWindow},
		ratelimit.Upload: {Max: cfg.UploadMax, Window: cfg.UploadWindow},
		ratelimit.Email:  {Max: cfg.EmailMax, Window: cfg.EmailWindow},
	})
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, service *core.Service, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		service:  service,
		users:    service,
		verifier: auth.NewVerifier(cfg.Security.JWTSecret),
		validate: newValidator(),
		router:   chi.NewRouter(),
	}
	s.limits = NewRateLimits(cfg.Rate)
	for _, opt := range opts {
		opt(s)
	}
	s.csrf = csrf.New(
		csrf.WithTTL(cfg.Security.CSRFTTL),
		csrf.WithSecureCookie(cfg.Security.SecureCookies),
		csrf.WithErrorHandler(middleware.CSRFFailure),
	)

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(middleware.CORS(s.cfg.Security.AllowedOrigins))
	s.router.Use(middleware.RateLimit(s.limits.Get(ratelimit.API), middleware.ByIP))
	s.router.Use(middleware.CSRF(s.csrf))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/csrf", s.handleCSRFToken)
		r.Get("/settings/public", s.handlePublicSettings)
		r.Get("/backgrounds/{page}", s.handleBackground)
		r.With(s.limit(ratelimit.Login, middleware.ByIP)).Post("/auth/session", s.handleCreateSession)
		r.Delete("/auth/session", s.handleDeleteSession)

		// Participant
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(s.verifier, s.cfg.Security.SessionCookie, s.users))

			r.Get("/me", s.handleMe)
			r.Get("/sections", s.handleListSections)

			r.Post("/entries", s.handleCreateEntry)
			r.Get("/entries/mine", s.handleMyEntry)
			r.Get("/entries/{id}", s.handleGetEntry)
			r.Post("/entries/{id}/submit", s.handleSubmitEntry)
			r.Get("/entries/{id}/sections/{section}", s.handleGetSection)
			r.Put("/entries/{id}/sections/{section}", s.handleSaveSection)

			r.Get("/entries/{id}/files", s.handleListFiles)
			r.With(s.limit(ratelimit.Upload, middleware.ByUser)).Post("/entries/{id}/files", s.handleUploadFile)
			r.Get("/files/{fileID}", s.handleDownloadFile)
			r.Delete("/files/{fileID}", s.handleDeleteFile)

			// Admin
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/entries", s.handleAdminListEntries)
				r.Get("/entries/{id}", s.handleAdminGetEntry)
				r.Delete("/entries/{id}", s.handleAdminDeleteEntry)
				r.Put("/entries/{id}/review", s.handleReviewEntry)

				r.Get("/templates/{kind}", s.handleDownloadTemplate)
				r.With(s.limit(ratelimit.Upload, middleware.ByUser)).Post("/import", s.handleImport)
				r.Get("/export/entries", s.handleExportEntries)
				r.Get("/export/{section}", s.handleExportSection)

				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleUpdateSettings)
				r.With(s.limit(ratelimit.Upload, middleware.ByUser)).Post("/settings/background/{page}", s.handleSetBackground)

				r.Get("/notification-templates", s.handleListTemplates)
				r.Put("/notification-templates/{key}", s.handleUpdateTemplate)
				r.With(s.limit(ratelimit.Email, middleware.ByUser)).Post("/notifications/send", s.handleSendNotification)

				r.Get("/email-logs", s.handleEmailLogs)
				r.Get("/audit-log", s.handleAuditLog)
				r.Get("/debug-logs", s.handleDebugLogs)
				r.Get("/uploads/status", s.handleUploadStatus)
			})
		})
	})
}

// limit applies the limiter of class, counting requests by key.
func (s *Server) limit(class ratelimit.Class, key middleware.KeyFunc) func(http.Handler) http.Handler {
	return middleware.RateLimit(s.limits.Get(class), key)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// RateLimits returns the limiter set so callers can run its sweeper.
func (s *Server) RateLimits() *ratelimit.Set {
	return s.limits
}
