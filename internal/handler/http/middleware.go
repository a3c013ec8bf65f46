package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/accounts/internal/auth"
	"github.com/utafrali/accounts/internal/service"
	apperrors "github.com/utafrali/accounts/pkg/errors"
	"github.com/utafrali/accounts/pkg/httputil"
	"github.com/utafrali/accounts/pkg/middleware"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ContentTypeJSON enforces that requests with a body have Content-Type:
// application/json and caps the body size.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorBody{
					StatusCode: http.StatusUnsupportedMediaType,
					Message:    "Content-Type must be application/json",
				})
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// tokenValidator accepts only tokens issued for purpose and resolves their
// subject through the auth service.
func tokenValidator(svc *service.AuthService, purpose auth.Purpose) middleware.TokenValidator {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		user, err := svc.Authenticate(ctx, token, purpose)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{UserID: user.ID, Role: user.Role}, nil
	}
}

// currentUserID returns the authenticated caller, or writes a 401.
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.UserIDFromContext(r.Context())
	if id == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
		return "", false
	}
	return id, true
}
