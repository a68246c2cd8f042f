package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// JSON shape for success and one for failure:
//
//	{"error": "not_found", "message": "repository not found with id 42"}
//
// The service layer never picks status codes. It returns *apperror.AppError
// values and writeError is the single place they become HTTP.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/petithub/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body: once Encode calls
// w.Write the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps an error to its HTTP status and machine-readable type.
//
// errors.Is walks the whole chain, so a service error like
//
//	fmt.Errorf("service/discovery: sampling below 42: %w", apperror.Exhausted(...))
//
// still matches ErrNotFound.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusInternalServerError, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Only AppError.Message reaches the client. The cause (which for upstream
// failures holds GitHub URLs and response bodies) stays in the logs.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := errorStatus(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// NEVER expose unknown error text: it may carry SQL or file paths.
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: "An internal error occurred",
	})
}

// logError records a failed request at a level matching its status: client
// mistakes are Info, everything we answer with a 5xx is Error.
func logError(logger *slog.Logger, r *http.Request, err error) {
	status, _ := errorStatus(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}
