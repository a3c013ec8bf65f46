package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/accounts/pkg/errors"
)

// ErrorResponse mirrors the error body written by httputil.WriteError.
type ErrorResponse struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Issues     []apperrors.Issue `json:"issues,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError carrying the same status, message and issues. Bodies
// that are not an ErrorResponse produce a plain error with the raw body.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("status %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var body ErrorResponse
	if json.Unmarshal(bodyBytes, &body) == nil && body.Message != "" {
		return mapError(resp.StatusCode, body)
	}

	return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
}

func mapError(status int, body ErrorResponse) error {
	var appErr *apperrors.AppError
	switch status {
	case http.StatusNotFound:
		appErr = apperrors.NotFoundMessage(body.Message)
	case http.StatusBadRequest:
		if len(body.Issues) > 0 {
			appErr = apperrors.Validation(body.Issues...)
		} else {
			appErr = apperrors.InvalidInput(body.Message)
		}
	case http.StatusConflict:
		appErr = apperrors.Conflict(body.Message)
	case http.StatusUnauthorized:
		appErr = apperrors.Unauthorized(body.Message)
	case http.StatusForbidden:
		appErr = apperrors.Forbidden(body.Message)
	case http.StatusTooManyRequests:
		appErr = apperrors.TooManyRequests(body.Message)
	default:
		if status >= 500 {
			return fmt.Errorf("server error (%d): %s", status, body.Message)
		}
		return &apperrors.AppError{Code: http.StatusText(status), Message: body.Message, Status: status}
	}
	appErr.Message = body.Message
	return appErr
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
