// Package api provides the JSON API handlers and shared HTTP utilities:
// the error envelope, reason codes, and request context accessors.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/prepshare/prepshare-go/internal/engine"
)

// Deterministic reason codes for stable error classification. Engine
// operations carry their own reason codes (engine.Reason*); the codes here
// cover the transport layer.
const (
	// Authentication and authorization
	ReasonUnauthenticated    = "unauthenticated"
	ReasonUnauthorized       = "unauthorized"
	ReasonSessionExpired     = "session_expired"
	ReasonInvalidCredentials = "invalid_credentials"

	// Rate limiting
	ReasonRateLimited = "rate_limited"

	// Request validation
	ReasonBadRequest   = "bad_request"
	ReasonMissingField = "missing_field"
	ReasonInvalidField = "invalid_field"
	ReasonNotFound     = "not_found"
	ReasonConflict     = "conflict"

	// Server errors
	ReasonInternalError = "internal_error"
)

// ErrorEnvelope is the standard error response format.
// All error responses use this structure for consistency.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text (e.g., "conflict")
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	envelope := ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	}

	json.NewEncoder(w).Encode(envelope)
}

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusUnauthorized, reasonCode, message)
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusForbidden, reasonCode, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteConflict writes a 409 Conflict error.
func WriteConflict(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusConflict, reasonCode, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// Be careful not to leak sensitive information in the message.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}

// WriteEngineError maps an engine error onto the envelope: validation→400,
// conflict→409, authorization→403, not found→404. Anything untyped is a 500
// with a generic message.
func WriteEngineError(w http.ResponseWriter, err error) {
	e, ok := engine.As(err)
	if !ok {
		WriteInternalError(w, "internal error")
		return
	}

	switch e.Kind {
	case engine.KindValidation:
		WriteError(w, http.StatusBadRequest, e.Reason, e.Message)
	case engine.KindConflict:
		WriteError(w, http.StatusConflict, e.Reason, e.Message)
	case engine.KindAuthorization:
		WriteError(w, http.StatusForbidden, e.Reason, e.Message)
	case engine.KindNotFound:
		WriteError(w, http.StatusNotFound, e.Reason, e.Message)
	default:
		WriteInternalError(w, "internal error")
	}
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes the request body into dst; on failure it writes a 400
// and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return false
	}
	return true
}
