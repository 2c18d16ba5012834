// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// errorBody mirrors the JSON error shape the handlers use.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// deny writes a JSON error for a request stopped by middleware.
func deny(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := core.MapError(err)
	logging.FromContext(r.Context()).Warn("request denied",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
