package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors returned by the service. Handlers map them to HTTP
// statuses with errors.Is; MapError turns their text into user messages.
var (
	ErrNotFound         = errors.New("not found")
	ErrEntryNotFound    = fmt.Errorf("entry %w", ErrNotFound)
	ErrFileNotFound     = fmt.Errorf("file %w", ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("notification template %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)

	ErrForbidden        = errors.New("permission denied")
	ErrEntryExists      = errors.New("entry already exists for this user")
	ErrInvalidSection   = errors.New("unknown section")
	ErrDeadlinePassed   = errors.New("deadline has passed for this section")
	ErrInvalidStatus    = errors.New("invalid entry status")
	ErrIncomplete       = errors.New("entry is incomplete")
	ErrNotDraft         = errors.New("entry has already been submitted")
	ErrInvalidSetting   = errors.New("invalid setting")
	ErrInvalidFileType  = errors.New("unknown file type")
	ErrTooManyFiles     = errors.New("too many files of this type")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidImport    = errors.New("invalid csv")
	ErrNoRecipients     = errors.New("no recipients selected")
	ErrMailDisabled     = errors.New("email sending is not configured")
	ErrInvalidTemplate  = errors.New("invalid notification template")
	ErrInvalidExportKey = errors.New("unknown export")
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in one payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationErrors.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// isUniqueViolation reports whether err is a unique-constraint failure,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound converts pgx.ErrNoRows into the given sentinel.
func notFound(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
