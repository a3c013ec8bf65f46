package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/accounts/pkg/errors"
	"github.com/utafrali/accounts/pkg/logger"
	"github.com/utafrali/accounts/pkg/pagination"
	"github.com/utafrali/accounts/pkg/validator"
)

// Envelope is the success response body shared by every endpoint.
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries listing metadata alongside Data.
type Meta struct {
	Pagination *pagination.Meta `json:"pagination,omitempty"`
}

// ErrorBody is the error response body.
type ErrorBody struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Issues     []apperrors.Issue `json:"issues,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes an Envelope with the given message and optional data.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Message: message, Data: data})
}

// WritePage writes a 200 Envelope carrying one page of results.
func WritePage(w http.ResponseWriter, message string, data any, meta pagination.Meta) {
	WriteJSON(w, http.StatusOK, Envelope{
		Message: message,
		Data:    data,
		Meta:    &Meta{Pagination: &meta},
	})
}

// WriteError converts err into an ErrorBody and writes it. AppErrors keep their
// status, message and issues; validator failures become a 400 with issues;
// bare sentinels map to a generic message; anything else is logged and
// reported as a 500. The request-scoped logger is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	body := ErrorBody{RequestID: logger.CorrelationIDFromContext(r.Context())}

	var (
		appErr *apperrors.AppError
		valErr *validator.ValidationError
	)
	switch {
	case errors.As(err, &appErr):
		body.StatusCode = appErr.Status
		body.Message = appErr.Message
		body.Issues = appErr.Issues
	case errors.As(err, &valErr):
		appErr = valErr.AppError()
		body.StatusCode = appErr.Status
		body.Message = appErr.Message
		body.Issues = appErr.Issues
	default:
		body.StatusCode = apperrors.HTTPStatus(err)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			body.Message = "resource not found"
		case errors.Is(err, apperrors.ErrConflict):
			body.Message = "resource already exists"
		case errors.Is(err, apperrors.ErrInvalidInput):
			body.Message = err.Error()
		case errors.Is(err, apperrors.ErrUnauthorized):
			body.Message = "unauthorized"
		case errors.Is(err, apperrors.ErrForbidden):
			body.Message = "forbidden"
		case errors.Is(err, apperrors.ErrTooManyRequests):
			body.Message = "too many requests"
		default:
			body.Message = "an internal error occurred"
		}
	}

	if body.StatusCode >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, body.StatusCode, body)
}

// WriteValidationError writes a 400 for a failed DecodeAndValidate. Field
// failures are reported as issues; malformed bodies as a single message.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		appErr := valErr.AppError()
		WriteJSON(w, http.StatusBadRequest, ErrorBody{
			StatusCode: http.StatusBadRequest,
			Message:    appErr.Message,
			Issues:     appErr.Issues,
			RequestID:  requestID,
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, ErrorBody{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
		RequestID:  requestID,
	})
}

// ParseUUID validates that param is a UUID. On failure it writes a 400 and
// returns false, signaling the caller to return early.
func ParseUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorBody{
			StatusCode: http.StatusBadRequest,
			Message:    "invalid UUID: " + param,
			RequestID:  logger.CorrelationIDFromContext(r.Context()),
		})
		return uuid.Nil, false
	}
	return id, true
}
