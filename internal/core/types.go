package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Pool is the connection pool a Service runs on. Satisfied by *pgxpool.Pool.
type Pool interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// FieldType represents the expected data type of a section field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumber
	FieldBool
	FieldEmail
	FieldURL
)

// FieldSpec defines validation rules for a single section field.
// Name doubles as the JSON key and the CSV column header.
type FieldSpec struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Type       FieldType `json:"-"`
	Required   bool      `json:"required"`
	EnumValues []string  `json:"enum_values,omitempty"`
	MaxLength  int       `json:"max_length,omitempty"`
}

// TypeName is the lowercase name of the field type, as exposed over the API.
func (f FieldSpec) TypeName() string {
	return fieldTypeName(f.Type)
}

// SectionInfo describes one form section and where it is stored.
type SectionInfo struct {
	Key               string   `json:"key"`   // "basic_info"
	Label             string   `json:"label"` // "Basic information"
	Order             int      `json:"order"`
	Table             string   `json:"-"` // detail table; trusted identifier
	DoneColumn        string   `json:"-"` // status flag on entries; trusted identifier
	RequiredForSubmit bool     `json:"required_for_submit"`
	Columns           []string `json:"columns"`
	Sample            []string `json:"-"` // CSV template sample row, same order as Columns
}

// DeadlineKey is the settings key holding this section's deadline.
func (i SectionInfo) DeadlineKey() string {
	return "deadline." + i.Key
}

// SectionDefinition contains everything needed to validate and store a section.
type SectionDefinition struct {
	Info       SectionInfo
	FieldSpecs []FieldSpec
}

// Spec returns the field spec with the given name.
func (d SectionDefinition) Spec(name string) (FieldSpec, bool) {
	for _, s := range d.FieldSpecs {
		if s.Name == name {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// EntryStatus is the review state of an entry.
type EntryStatus string

const (
	StatusDraft       EntryStatus = "draft"
	StatusSubmitted   EntryStatus = "submitted"
	StatusUnderReview EntryStatus = "under_review"
	StatusSelected    EntryStatus = "selected"
	StatusRejected    EntryStatus = "rejected"
	StatusWaitlisted  EntryStatus = "waitlisted"
)

// Statuses lists every valid entry status.
var Statuses = []EntryStatus{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusSelected, StatusRejected, StatusWaitlisted,
}

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Entry is one participant's registration with its section flags.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Email        string          `json:"email"`
	Name         string          `json:"name"`
	TeamName     string          `json:"team_name"`
	Status       EntryStatus     `json:"status"`
	Score        *float64        `json:"score"`
	AdminComment string          `json:"admin_comment,omitempty"`
	Sections     map[string]bool `json:"sections"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	SubmittedAt  *time.Time      `json:"submitted_at"`
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	Status EntryStatus
	Search string // matches team name, user name or email
	Limit  int
	Offset int
}

// EntryPage is one page of entries with the unpaged total.
type EntryPage struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// SectionData is a stored section payload.
type SectionData struct {
	EntryID   uuid.UUID      `json:"entry_id"`
	Section   string         `json:"section"`
	Data      map[string]any `json:"data"`
	Completed bool           `json:"completed"`
	UpdatedAt *time.Time     `json:"updated_at"`
	Deadline  *DeadlineInfo  `json:"deadline,omitempty"`
}

// EntryFile is an uploaded file attached to an entry.
type EntryFile struct {
	ID           uuid.UUID `json:"id"`
	EntryID      uuid.UUID `json:"entry_id"`
	FileType     string    `json:"file_type"`
	Path         string    `json:"-"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is a row from the users table.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailLog records one notification attempt.
type EmailLog struct {
	ID          int64      `json:"id"`
	TemplateKey string     `json:"template_key"`
	EntryID     *uuid.UUID `json:"entry_id"`
	Recipient   string     `json:"recipient"`
	Subject     string     `json:"subject"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AuditEntry is a row from audit_log.
type AuditEntry struct {
	ID        int64          `json:"id"`
	ActorID   *uuid.UUID     `json:"actor_id"`
	Action    string         `json:"action"`
	EntryID   *uuid.UUID     `json:"entry_id"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}
