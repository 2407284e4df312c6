// Package httperr maps core errors to HTTP responses and holds the JSON
// helpers the handlers share.
package httperr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

type mapping struct {
	err    error
	status int
	code   string
}

var mappings = []mapping{
	{apperr.ErrInsufficientCredits, http.StatusPaymentRequired, "insufficient_credits"},
	{apperr.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{apperr.ErrStaleState, http.StatusConflict, "stale_state"},
	{apperr.ErrRevisionAlreadyPending, http.StatusConflict, "revision_already_pending"},
	{apperr.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{apperr.ErrMissingRequiredField, http.StatusUnprocessableEntity, "missing_required_field"},
	{apperr.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// Status returns the HTTP status and machine code for err.
func Status(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}

	return http.StatusInternalServerError, "internal"
}

// Write sends err as a JSON error. Domain errors keep their message; anything
// else is logged and hidden behind a generic one.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)

	resp := errorResponse{Error: err.Error(), Code: code}

	var fe apperr.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)

		resp.Error = "internal error"
	}

	JSON(w, status, resp)
}

// BadRequest answers a request the handler could not decode.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
