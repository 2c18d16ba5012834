package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. statusFor picks the HTTP status from the sentinel in the chain
//  4. Error is mapped via core.MapError to get user-friendly message
//  5. Technical error is logged with the request id for correlation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/csrf"
	"github.com/JonMunkholm/DanceEntry/internal/filecheck"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
	"github.com/JonMunkholm/DanceEntry/internal/storage"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// statusFor maps an error chain to an HTTP status.
func statusFor(err error) int {
	var reject *filecheck.RejectError
	var incomplete *core.IncompleteError

	switch {
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden), errors.Is(err, core.ErrDeadlinePassed):
		return http.StatusForbidden
	case errors.Is(err, csrf.ErrTokenMissing), errors.Is(err, csrf.ErrTokenInvalid), errors.Is(err, csrf.ErrTokenExpired):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidSection), errors.Is(err, core.ErrInvalidExportKey):
		return http.StatusNotFound
	case errors.As(err, &reject):
		if reject.Reason == filecheck.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEntryExists), errors.Is(err, core.ErrNotDraft), errors.Is(err, core.ErrTooManyFiles):
		return http.StatusConflict
	case errors.As(err, &incomplete), errors.Is(err, core.ErrIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidSetting),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrInvalidFileType),
		errors.Is(err, core.ErrInvalidImport),
		errors.Is(err, core.ErrInvalidTemplate),
		errors.Is(err, core.ErrNoRecipients):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyUploads), errors.Is(err, core.ErrMailDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorDetails returns structured detail for errors that carry it.
func errorDetails(err error) any {
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	var incomplete *core.IncompleteError
	if errors.As(err, &incomplete) {
		return map[string]any{"sections": incomplete.Sections}
	}
	return nil
}

// respondError logs err with request context and writes a JSON error.
// Server errors hide the technical text from the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context()).With(
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Details: errorDetails(err),
	}
	if status >= http.StatusInternalServerError {
		resp.Error = userMsg.Message
	}
	writeJSONStatus(w, status, resp)
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
