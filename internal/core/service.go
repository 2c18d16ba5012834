package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/config"
	"github.com/JonMunkholm/DanceEntry/internal/filecheck"
	"github.com/JonMunkholm/DanceEntry/internal/mail"
	"github.com/JonMunkholm/DanceEntry/internal/storage"
)

// ObjectStore holds uploaded file contents by key.
type ObjectStore interface {
	Put(key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, storage.Object, error)
	Delete(key string) error
	DeletePrefix(prefix string) error
}

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Service provides the business logic for entries, sections, files,
// settings, CSV transfer and notifications.
type Service struct {
	pool    Pool
	store   ObjectStore
	mailer  Mailer
	render  *mail.Renderer
	checker *filecheck.Checker
	limiter *UploadLimiter

	loc             *time.Location
	appURL          string
	maxFilename     int
	mailConcurrency int
	mailEnabled     bool

	now func() time.Time
}

// NewService creates a new Service instance. mailer may be nil when email
// sending is not configured.
func NewService(pool Pool, cfg *config.Config, store ObjectStore, mailer Mailer) *Service {
	s := &Service{
		pool:   pool,
		store:  store,
		mailer: mailer,
		render: mail.NewRenderer(cfg.App.URL),
		checker: filecheck.New(filecheck.Limits{
			filecheck.Music:    cfg.Upload.MaxMusicSize,
			filecheck.Video:    cfg.Upload.MaxVideoSize,
			filecheck.Photo:    cfg.Upload.MaxPhotoSize,
			filecheck.Document: cfg.Upload.MaxDocumentSize,
		}),
		limiter:         NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		loc:             cfg.App.Location(),
		appURL:          cfg.App.URL,
		maxFilename:     cfg.Upload.MaxFilenameLength,
		mailConcurrency: cfg.Mail.Concurrency,
		now:             time.Now,
	}
	if mailer != nil {
		if e, ok := mailer.(interface{ Enabled() bool }); ok {
			s.mailEnabled = e.Enabled()
		} else {
			s.mailEnabled = true
		}
	}
	if s.maxFilename <= 0 {
		s.maxFilename = filecheck.DefaultMaxFilename
	}
	if s.mailConcurrency <= 0 {
		s.mailConcurrency = 1
	}
	return s
}

// UploadLimiter returns the limiter bounding concurrent file uploads.
func (s *Service) UploadLimiter() *UploadLimiter {
	return s.limiter
}

// Location is the time zone deadlines are displayed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Sections returns information about all registered sections.
func (s *Service) Sections() []SectionInfo {
	defs := All()
	infos := make([]SectionInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// withTx runs fn in a transaction, committing on success.
func (s *Service) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
