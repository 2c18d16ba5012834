package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
// Missing required variables are collected so a single run reports all of them.
func loadStruct(v reflect.Value) error {
	var missing []string
	if err := walkStruct(v, &missing); err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

func walkStruct(v reflect.Value, missing *[]string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := walkStruct(fieldVal, missing); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok := lookup(envName, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				*missing = append(*missing, envName)
				continue
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the first non-empty value of the primary or alternate variable.
func lookup(name, alt string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, true
	}
	if alt != "" {
		if v := strings.TrimSpace(os.Getenv(alt)); v != "" {
			return v, true
		}
	}
	return "", false
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var result []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	// Database
	if c.Database.URL == "" {
		add("DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		add("DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		add("DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		add("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload
	for name, size := range map[string]int64{
		"UPLOAD_MAX_MUSIC_SIZE":    c.Upload.MaxMusicSize,
		"UPLOAD_MAX_VIDEO_SIZE":    c.Upload.MaxVideoSize,
		"UPLOAD_MAX_PHOTO_SIZE":    c.Upload.MaxPhotoSize,
		"UPLOAD_MAX_DOCUMENT_SIZE": c.Upload.MaxDocumentSize,
		"UPLOAD_MAX_IMPORT_SIZE":   c.Upload.MaxImportSize,
	} {
		if size <= 0 {
			add("%s must be positive", name)
		}
	}
	if c.Upload.MaxFilenameLength < 16 {
		add("UPLOAD_MAX_FILENAME_LENGTH must be at least 16")
	}
	if c.Upload.MaxConcurrent <= 0 {
		add("UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		add("UPLOAD_MAX_WAIT_TIME must be positive")
	}

	// Rate limits
	if c.Rate.Enabled {
		checkPolicy := func(prefix string, max int, window time.Duration) {
			if max <= 0 {
				add("%s_MAX must be positive when rate limiting is enabled", prefix)
			}
			if window <= 0 {
				add("%s_WINDOW must be positive when rate limiting is enabled", prefix)
			}
		}
		checkPolicy("RATE_LIMIT_LOGIN", c.Rate.LoginMax, c.Rate.LoginWindow)
		checkPolicy("RATE_LIMIT_API", c.Rate.APIMax, c.Rate.APIWindow)
		checkPolicy("RATE_LIMIT_UPLOAD", c.Rate.UploadMax, c.Rate.UploadWindow)
		checkPolicy("RATE_LIMIT_EMAIL", c.Rate.EmailMax, c.Rate.EmailWindow)
		if c.Rate.SweepInterval <= 0 {
			add("RATE_LIMIT_SWEEP_INTERVAL must be positive")
		}
	}

	// Security
	if len(c.Security.JWTSecret) < 32 {
		add("AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Security.CSRFTTL <= 0 {
		add("CSRF_TTL must be positive")
	}
	for _, origin := range c.Security.AllowedOrigins {
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			add("ALLOWED_ORIGINS entry %q must be an absolute origin", origin)
		}
	}

	// Mail
	if c.Mail.FunctionURL != "" {
		if u, err := url.Parse(c.Mail.FunctionURL); err != nil || u.Scheme == "" {
			add("MAIL_FUNCTION_URL (%q) must be an absolute URL", c.Mail.FunctionURL)
		}
	}
	if c.Mail.Concurrency <= 0 {
		add("MAIL_CONCURRENCY must be positive")
	}

	// App
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		add("APP_TIMEZONE (%q) is not a valid IANA zone", c.App.Timezone)
	}

	// Storage
	if c.Storage.Root == "" {
		add("STORAGE_ROOT is required")
	}

	// Maintenance
	if c.Maintenance.LogRetentionDays <= 0 {
		add("MAINTENANCE_LOG_RETENTION_DAYS must be positive")
	}
	if c.Maintenance.CheckInterval <= 0 {
		add("MAINTENANCE_CHECK_INTERVAL must be positive")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}
	if c.Logging.RingSize < 0 {
		add("LOG_RING_SIZE must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Secrets and the database URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Upload: {MaxVideoSize: %d, MaxConcurrent: %d}, ",
		c.Upload.MaxVideoSize, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, APIMax: %d/%s}, ",
		c.Rate.Enabled, c.Rate.APIMax, c.Rate.APIWindow)
	fmt.Fprintf(&b, "Security: {JWTSecret: [MASKED], Origins: %d}, ", len(c.Security.AllowedOrigins))
	fmt.Fprintf(&b, "Mail: {FunctionURL: %q, FunctionKey: [MASKED]}, ", c.Mail.FunctionURL)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
