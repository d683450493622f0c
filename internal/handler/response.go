package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON, every failure through
// writeError, so the API has one error shape:
//
//	{"error": "not_found", "message": "run abc123 not found"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/mapchat/internal/apperror"
)

// ErrorResponse is the error body returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data as JSON with the given status code.
// Headers must be set before WriteHeader; the body follows.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// maxBodyBytes caps request bodies. It sits well above the code length
// limit so oversized code gets the service's validation message.
const maxBodyBytes = 1 << 20

// writeError maps a domain error to an HTTP status code and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation  → 400    ErrForbidden   → 403
//	ErrNotFound    → 404    ErrConflict    → 409
//	ErrUnavailable → 503    anything else  → 500
//
// Errors that are not AppErrors get a generic message; their text never
// reaches the client.
func writeError(w http.ResponseWriter, err error) {
	body := ErrorResponse{
		Error:   string(apperror.KindOf(err)),
		Message: apperror.PublicMessage(err),
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		body.Field = appErr.Field
	}
	writeJSON(w, statusFor[apperror.KindOf(err)], body)
}

var statusFor = map[apperror.Kind]int{
	apperror.KindValidation:  http.StatusBadRequest,
	apperror.KindForbidden:   http.StatusForbidden,
	apperror.KindNotFound:    http.StatusNotFound,
	apperror.KindConflict:    http.StatusConflict,
	apperror.KindUnavailable: http.StatusServiceUnavailable,
	apperror.KindInternal:    http.StatusInternalServerError,
}
