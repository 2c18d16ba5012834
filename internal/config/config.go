// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Upload      UploadConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Storage     StorageConfig
	Mail        MailConfig
	App         AppConfig
	Logging     LoggingConfig
	Maintenance MaintenanceConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s, video uploads are large)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, CSV exports stream)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 120s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"120s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds entry file upload settings.
type UploadConfig struct {
	// MaxMusicSize is the ceiling for music files in bytes (default: 20MB)
	MaxMusicSize int64 `env:"UPLOAD_MAX_MUSIC_SIZE" default:"20971520"`

	// MaxVideoSize is the ceiling for video files in bytes (default: 500MB)
	MaxVideoSize int64 `env:"UPLOAD_MAX_VIDEO_SIZE" default:"524288000"`

	// MaxPhotoSize is the ceiling for photos in bytes (default: 10MB)
	MaxPhotoSize int64 `env:"UPLOAD_MAX_PHOTO_SIZE" default:"10485760"`

	// MaxDocumentSize is the ceiling for PDF documents in bytes (default: 10MB)
	MaxDocumentSize int64 `env:"UPLOAD_MAX_DOCUMENT_SIZE" default:"10485760"`

	// MaxImportSize is the ceiling for CSV imports in bytes (default: 5MB)
	MaxImportSize int64 `env:"UPLOAD_MAX_IMPORT_SIZE" default:"5242880"`

	// MaxFilenameLength is the longest sanitized file name kept (default: 100)
	MaxFilenameLength int `env:"UPLOAD_MAX_FILENAME_LENGTH" default:"100"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds fixed-window rate limits per route class.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	LoginMax    int           `env:"RATE_LIMIT_LOGIN_MAX" default:"10"`
	LoginWindow time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" default:"15m"`

	APIMax    int           `env:"RATE_LIMIT_API_MAX" default:"120"`
	APIWindow time.Duration `env:"RATE_LIMIT_API_WINDOW" default:"1m"`

	UploadMax    int           `env:"RATE_LIMIT_UPLOAD_MAX" default:"20"`
	UploadWindow time.Duration `env:"RATE_LIMIT_UPLOAD_WINDOW" default:"10m"`

	EmailMax    int           `env:"RATE_LIMIT_EMAIL_MAX" default:"5"`
	EmailWindow time.Duration `env:"RATE_LIMIT_EMAIL_WINDOW" default:"1h"`

	// SweepInterval is how often expired windows are discarded (default: 1m)
	SweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL" default:"1m"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// AllowedOrigins lists origins permitted for credentialed CORS requests
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	// JWTSecret verifies access tokens issued by the identity provider (required)
	JWTSecret string `env:"AUTH_JWT_SECRET" required:"true"`

	// SessionCookie is the cookie holding the access token for browser sessions
	SessionCookie string `env:"AUTH_SESSION_COOKIE" default:"entry_session"`

	// CSRFTTL is how long an issued CSRF token stays valid (default: 24h)
	CSRFTTL time.Duration `env:"CSRF_TTL" default:"24h"`

	// SecureCookies sets the Secure attribute on cookies (default: true)
	SecureCookies bool `env:"SECURE_COOKIES" default:"true"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	// Root is the directory that stores uploaded objects (default: ./data/objects)
	Root string `env:"STORAGE_ROOT" default:"./data/objects"`
}

// MailConfig holds settings for the external email-sending function.
type MailConfig struct {
	// FunctionURL is the endpoint that delivers email; empty disables sending
	FunctionURL string `env:"MAIL_FUNCTION_URL"`

	// FunctionKey is sent as a bearer token to the function
	FunctionKey string `env:"MAIL_FUNCTION_KEY"`

	// From is the sender address
	From string `env:"MAIL_FROM" default:"entries@example.com"`

	// Timeout bounds a single function call (default: 15s)
	Timeout time.Duration `env:"MAIL_TIMEOUT" default:"15s"`

	// Concurrency is the number of parallel sends for bulk notifications (default: 4)
	Concurrency int `env:"MAIL_CONCURRENCY" default:"4"`
}

// AppConfig holds public application settings.
type AppConfig struct {
	// URL is the public base URL used in notification links
	URL string `env:"APP_URL" default:"http://localhost:8080"`

	// Timezone is the IANA zone deadlines are displayed in (default: Asia/Tokyo)
	Timezone string `env:"APP_TIMEZONE" default:"Asia/Tokyo"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// RingSize is the number of recent records kept for the admin debug log (default: 500)
	RingSize int `env:"LOG_RING_SIZE" default:"500"`
}

// MaintenanceConfig holds settings for the background cleanup job.
type MaintenanceConfig struct {
	// LogRetentionDays is days to keep email and audit logs (default: 365)
	LogRetentionDays int `env:"MAINTENANCE_LOG_RETENTION_DAYS" default:"365"`

	// CheckInterval is how often to run the cleanup job (default: 24h)
	CheckInterval time.Duration `env:"MAINTENANCE_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Location resolves the display timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
