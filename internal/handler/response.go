package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "conflict", "message": "city already exists", "id": 7}
//
// "fields" is added for validation errors and "id" for conflicts where the
// existing row is known. In development, 500s also carry "detail" and, for
// errors built with samber/oops, "stack".

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/oops"

	"github.com/sakif/tour-tracker/internal/apperror"
)

// ErrorResponse is the error body returned by all API endpoints.
type ErrorResponse struct {
	Error   string   `json:"error"`             // Machine-readable kind (e.g., "not_found")
	Message string   `json:"message"`           // Human-readable description
	Fields  []string `json:"fields,omitempty"`  // Failing fields of a validation error
	ID      int64    `json:"id,omitempty"`      // Existing row of a conflict
	Detail  string   `json:"detail,omitempty"`  // Development only
	Stack   string   `json:"stack,omitempty"`   // Development only
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set BEFORE the body: once Encode writes, the
// headers are on the wire.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// Responder turns errors into HTTP responses. Every handler embeds one.
type Responder struct {
	logger *slog.Logger
	dev    bool
}

// NewResponder returns a Responder. dev exposes internal error detail.
func NewResponder(logger *slog.Logger, dev bool) Responder {
	return Responder{logger: logger, dev: dev}
}

// statusOf maps a domain error kind to its HTTP status and machine code.
// The service layer never knows about HTTP; this is the only translation.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps err to a status and writes the standard error body.
func (h Responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		// NEVER expose internal error details outside development: the raw
		// message may contain SQL, file paths or hostnames.
		resp := ErrorResponse{Error: code, Message: "An internal error occurred"}
		if h.dev {
			resp.Detail = err.Error()
			if oopsErr, ok := oops.AsOops(err); ok {
				resp.Stack = oopsErr.Stacktrace()
			}
		}
		writeJSON(w, status, resp)
		return
	}

	resp := ErrorResponse{Error: code, Message: err.Error()}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Fields = appErr.Fields
		resp.ID = appErr.ExistingID
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads the request body into dst. Malformed JSON, an oversized
// body and (when strict) unknown fields are validation errors.
func decodeJSON(r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		default:
			return &apperror.AppError{
				Err:     apperror.ErrValidation,
				Message: "invalid JSON body",
				Field:   "body",
				Fields:  []string{"body"},
				Cause:   err,
			}
		}
	}
	return nil
}

// flexInt accepts a JSON number, a numeric string, null or "". The last two
// decode as 0, which the services treat as absent.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	*f = flexInt(n)
	return nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}
