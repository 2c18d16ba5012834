package core

// error_messages.go defines user-friendly error messages with codes for
// support reference. When users encounter errors they can quote the code to
// support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - Sign-in required            Patterns: "authentication required"
//	AUTH002 - Session expired             Patterns: "invalid or expired token"
//	AUTH003 - Not allowed                 Patterns: "permission denied"
//	AUTH004 - Form expired                Patterns: "csrf token"
//	AUTH005 - Account not found           Patterns: "user not found"
//
// # Entries (ENT001-ENT099)
//
//	ENT001 - Entry not found              Patterns: "entry not found"
//	ENT002 - Entry already exists         Patterns: "entry already exists"
//	ENT003 - Invalid status               Patterns: "invalid entry status"
//	ENT004 - Entry incomplete             Patterns: "entry is incomplete"
//	ENT005 - Already submitted            Patterns: "already been submitted"
//
// # Sections and settings (SEC001-SEC099)
//
//	SEC004 - Invalid setting              Patterns: "invalid setting"
//	SEC003 - Invalid input                Patterns: "validation failed"
//	SEC001 - Unknown section              Patterns: "unknown section"
//	SEC002 - Deadline passed              Patterns: "deadline has passed"
//
// # Files (FILE001-FILE099)
//
//	FILE001 - File too large              Patterns: "file too large"
//	FILE002 - Unsupported type            Patterns: "unsupported file type", "unknown file type"
//	FILE003 - Content mismatch            Patterns: "file signature mismatch"
//	FILE004 - Empty file                  Patterns: "empty file"
//	FILE005 - Too many files              Patterns: "too many files"
//	FILE006 - File not found              Patterns: "file not found"
//	FILE007 - System busy                 Patterns: "too many concurrent uploads"
//
// # CSV (CSV001-CSV099)
//
//	CSV001 - Missing columns              Patterns: "missing required columns"
//	CSV002 - Invalid CSV                  Patterns: "invalid csv"
//	CSV003 - Unknown export               Patterns: "unknown export"
//
// # Email (MAIL001-MAIL099)
//
//	MAIL001 - Email disabled              Patterns: "email sending is not configured"
//	MAIL002 - No recipients               Patterns: "no recipients"
//	MAIL003 - Template not found          Patterns: "notification template not found"
//	MAIL004 - Invalid template            Patterns: "invalid notification template"
//	MAIL005 - Delivery failed             Patterns: "email function"
//
// # Rate limiting (RATE001)
//
//	RATE001 - Too many requests           Patterns: "rate limit"
//
// # Database (DB001-DB099)
//
//	DB001 - Duplicate                     Patterns: "duplicate key", "violates unique"
//	DB002 - Missing reference             Patterns: "violates foreign key"
//	DB003 - Database unavailable          Patterns: "connection refused", "connection reset"
//	DB004 - Timeout                       Patterns: "timeout", "context deadline exceeded"
//	DB005 - Busy                          Patterns: "deadlock"
//	DB006 - Cancelled                     Patterns: "context canceled"
//
// # General (ERR000)
//
//	ERR000 - Unexpected error: fallback when no pattern matches. Check the
//	         server logs for the technical error using the request id.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information for display.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorPattern maps a technical error pattern to a user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// Authentication
	{
		pattern: "authentication required",
		msg:     UserMessage{Message: "Please sign in to continue", Action: "Sign in and try again", Code: "AUTH001"},
	},
	{
		pattern: "invalid or expired token",
		msg:     UserMessage{Message: "Your session has expired", Action: "Sign in again", Code: "AUTH002"},
	},
	{
		pattern: "permission denied",
		msg:     UserMessage{Message: "You do not have access to this resource", Action: "Contact the organizers if you think this is wrong", Code: "AUTH003"},
	},
	{
		pattern: "user not found",
		msg:     UserMessage{Message: "Account not found", Action: "Sign in again", Code: "AUTH005"},
	},
	{
		pattern: "csrf token",
		msg:     UserMessage{Message: "This form has expired", Action: "Reload the page and try again", Code: "AUTH004"},
	},

	// Entries
	{
		pattern: "entry not found",
		msg:     UserMessage{Message: "Entry not found", Action: "Check the link or create a new entry", Code: "ENT001"},
	},
	{
		pattern: "entry already exists",
		msg:     UserMessage{Message: "You already have an entry", Action: "Open your existing entry instead", Code: "ENT002"},
	},
	{
		pattern: "invalid entry status",
		msg:     UserMessage{Message: "Unknown entry status", Action: "Choose one of the listed statuses", Code: "ENT003"},
	},
	{
		pattern: "entry is incomplete",
		msg:     UserMessage{Message: "Some required sections are not complete", Action: "Complete the listed sections and submit again", Code: "ENT004"},
	},
	{
		pattern: "already been submitted",
		msg:     UserMessage{Message: "This entry has already been submitted", Action: "No further action is needed", Code: "ENT005"},
	},

	// Sections and settings
	{
		pattern: "invalid setting",
		msg:     UserMessage{Message: "One or more settings are invalid", Action: "Review the highlighted settings", Code: "SEC004"},
	},
	{
		pattern: "validation failed",
		msg:     UserMessage{Message: "Some fields are invalid", Action: "Review the highlighted fields", Code: "SEC003"},
	},
	{
		pattern: "unknown section",
		msg:     UserMessage{Message: "Unknown form section", Action: "Reload the page and try again", Code: "SEC001"},
	},
	{
		pattern: "deadline has passed",
		msg:     UserMessage{Message: "The deadline for this section has passed", Action: "Contact the organizers for changes", Code: "SEC002"},
	},

	// Files
	{
		pattern: "file too large",
		msg:     UserMessage{Message: "The file exceeds the size limit", Action: "Upload a smaller file", Code: "FILE001"},
	},
	{
		pattern: "unsupported file type",
		msg:     UserMessage{Message: "This file type is not accepted", Action: "Check the accepted formats and try again", Code: "FILE002"},
	},
	{
		pattern: "unknown file type",
		msg:     UserMessage{Message: "This file type is not accepted", Action: "Check the accepted formats and try again", Code: "FILE002"},
	},
	{
		pattern: "file signature mismatch",
		msg:     UserMessage{Message: "The file content does not match its type", Action: "Export the file again in a supported format", Code: "FILE003"},
	},
	{
		pattern: "empty file",
		msg:     UserMessage{Message: "The uploaded file is empty", Action: "Choose a file with content", Code: "FILE004"},
	},
	{
		pattern: "too many files",
		msg:     UserMessage{Message: "The file limit for this type is reached", Action: "Delete a file before uploading another", Code: "FILE005"},
	},
	{
		pattern: "file not found",
		msg:     UserMessage{Message: "File not found", Action: "Reload the page and try again", Code: "FILE006"},
	},
	{
		pattern: "too many concurrent uploads",
		msg:     UserMessage{Message: "The system is busy processing other uploads", Action: "Please wait a moment and try again", Code: "FILE007"},
	},

	// CSV
	{
		pattern: "missing required columns",
		msg:     UserMessage{Message: "Required columns are missing from the CSV", Action: "Download the template and keep its header row", Code: "CSV001"},
	},
	{
		pattern: "invalid csv",
		msg:     UserMessage{Message: "The file is not a valid CSV", Action: "Save the file as UTF-8 CSV and try again", Code: "CSV002"},
	},
	{
		pattern: "unknown export",
		msg:     UserMessage{Message: "Unknown export or template", Action: "Choose one of the listed exports", Code: "CSV003"},
	},

	// Email
	{
		pattern: "email sending is not configured",
		msg:     UserMessage{Message: "Email sending is not configured", Action: "Set MAIL_FUNCTION_URL and restart the server", Code: "MAIL001"},
	},
	{
		pattern: "no recipients",
		msg:     UserMessage{Message: "No recipients were selected", Action: "Select at least one entry", Code: "MAIL002"},
	},
	{
		pattern: "notification template not found",
		msg:     UserMessage{Message: "Notification template not found", Action: "Choose one of the listed templates", Code: "MAIL003"},
	},
	{
		pattern: "invalid notification template",
		msg:     UserMessage{Message: "The template is invalid", Action: "Provide a single-line subject and a body", Code: "MAIL004"},
	},
	{
		pattern: "email function",
		msg:     UserMessage{Message: "The email could not be delivered", Action: "Check the email logs and try again", Code: "MAIL005"},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg:     UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"},
	},

	// Database
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A record with this value already exists", Action: "Review your data for duplicates", Code: "DB001"},
	},
	{
		pattern: "violates unique",
		msg:     UserMessage{Message: "A record with this value already exists", Action: "Review your data for duplicates", Code: "DB001"},
	},
	{
		pattern: "violates foreign key",
		msg:     UserMessage{Message: "Referenced record does not exist", Action: "Reload the page and try again", Code: "DB002"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB003"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB003"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Request timed out", Action: "Try again later", Code: "DB004"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Operation timed out", Action: "Try again later", Code: "DB004"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB005"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "DB006"},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches the known error patterns (case-insensitive) and returns the
// first match, or the ERR000 fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
