package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/accounts/internal/auth"
	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/internal/service"
	"github.com/utafrali/accounts/pkg/httputil"
	"github.com/utafrali/accounts/pkg/validator"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(authSvc *service.AuthService, userSvc *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, users: userSvc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest is the JSON request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Password string `json:"password" validate:"required,min=6"`
}

// ForgotPasswordRequest is the JSON request body for requesting a reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// VerifyOTPRequest is the JSON request body for checking a reset code.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,password"`
}

// ChangePasswordRequest is the JSON request body for changing password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password"`
}

// --- Response types ---

// TokenResponse carries freshly issued tokens and, when relevant, the user.
type TokenResponse struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ResetToken   string       `json:"reset_token,omitempty"`
	User         *domain.User `json:"user,omitempty"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// OTPSentResponse reports when a reset code expires.
type OTPSentResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.users.Create(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, "User registered successfully!", UserResponse{User: user})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeTokens(w, r, "Login successfully!", user, auth.PurposeAccess, auth.PurposeRefresh)
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	expiresAt, err := h.auth.ForgotPassword(r.Context(), service.ForgotPasswordInput{
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "OTP sent successfully!", OTPSentResponse{ExpiresAt: expiresAt})
}

// VerifyOTP handles POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.auth.VerifyOTP(r.Context(), service.VerifyOTPInput{
		Email: req.Email,
		Phone: req.Phone,
		OTP:   req.OTP,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resetToken, err := h.auth.IssueResetToken(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "OTP verified successfully!", TokenResponse{
		ResetToken: resetToken,
	})
}

// ResetPassword handles POST /api/v1/auth/reset-password. The caller is the
// subject of a reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.auth.ResetPassword(r.Context(), userID, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeTokens(w, r, "Password reset successfully!", user, auth.PurposeAccess, auth.PurposeRefresh)
}

// RefreshToken handles POST /api/v1/auth/refresh-token. The caller is the
// subject of a refresh token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tokens, err := h.auth.IssueTokens(userID, auth.PurposeAccess)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "AccessToken refreshed successfully!", TokenResponse{
		AccessToken: tokens[auth.PurposeAccess],
	})
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Password changed successfully!", nil)
}

// VerifyAccount handles POST /api/v1/auth/verify-account
func (h *AuthHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.auth.VerifyAccount(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Account verified successfully!", UserResponse{User: user})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, r *http.Request, message string, user *domain.User, purposes ...auth.Purpose) {
	tokens, err := h.auth.IssueTokens(user.ID, purposes...)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, message, TokenResponse{
		AccessToken:  tokens[auth.PurposeAccess],
		RefreshToken: tokens[auth.PurposeRefresh],
		User:         user,
	})
}
