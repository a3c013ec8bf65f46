package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/accounts/internal/auth"
	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/internal/event"
	"github.com/utafrali/accounts/internal/otp"
	"github.com/utafrali/accounts/internal/repository"
	"github.com/utafrali/accounts/internal/template"
	apperrors "github.com/utafrali/accounts/pkg/errors"
)

const (
	msgUserNotFound      = "User doesn't exist"
	msgIncorrectPassword = "Incorrect password"
	msgInvalidOTP        = "Invalid or expired OTP"
)

// AttemptLimiter bounds how often an identity may try an OTP.
type AttemptLimiter interface {
	Allow(ctx context.Context, identity string) error
	Reset(ctx context.Context, identity string) error
}

// AuthConfig holds the tunables of the auth flows.
type AuthConfig struct {
	// ServerName appears in the reset email.
	ServerName string
	OTPLength  int
	OTPExpiry  time.Duration
}

// AuthService coordinates login, token issuance and the password reset flows.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenIssuer
	hasher    auth.PasswordHasher
	limiter   AttemptLimiter
	publisher event.Publisher
	cfg       AuthConfig
	logger    *slog.Logger

	generateOTP otp.Generator
	now         func() time.Time
}

// NewAuthService creates a new auth service. A nil limiter disables OTP
// attempt limiting.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenIssuer,
	hasher auth.PasswordHasher,
	limiter AttemptLimiter,
	publisher event.Publisher,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if cfg.OTPLength <= 0 {
		cfg.OTPLength = otp.DefaultLength
	}
	if cfg.OTPExpiry <= 0 {
		cfg.OTPExpiry = 5 * time.Minute
	}
	if publisher == nil {
		publisher = event.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		hasher:      hasher,
		limiter:     limiter,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
		generateOTP: otp.Generate,
		now:         time.Now,
	}
}

// LoginInput holds the credentials for a login. One of Email and Phone is
// required.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
}

// ForgotPasswordInput identifies the account requesting a reset code.
type ForgotPasswordInput struct {
	Email string
	Phone string
}

// VerifyOTPInput holds a reset code and the identity it was sent to.
type VerifyOTPInput struct {
	Email string
	Phone string
	OTP   string
}

// Login checks the credentials and returns the matching user without secrets.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, error) {
	email, phone := domain.NormalizeEmail(input.Email), domain.NormalizePhone(input.Phone)
	if err := domain.ValidateIdentity(email, phone); err != nil {
		recordAuth("login", outcomeInvalid)
		return nil, err
	}

	user, err := s.findByIdentity(ctx, "login", email, phone)
	if err != nil {
		return nil, err
	}

	if !auth.VerifyPassword(input.Password, user.PasswordHash) {
		recordAuth("login", outcomeBadCredentials)
		return nil, apperrors.Unauthorized(msgIncorrectPassword)
	}

	recordAuth("login", outcomeSuccess)
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return user.Sanitize(), nil
}

// IssueTokens signs one token per purpose for userID.
func (s *AuthService) IssueTokens(userID string, purposes ...auth.Purpose) (map[auth.Purpose]string, error) {
	tokens, err := s.tokens.Issue(userID, purposes...)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return tokens, nil
}

// IssueResetToken signs a reset token for userID stamped with the current
// password, so it stops working once any password change lands.
func (s *AuthService) IssueResetToken(ctx context.Context, userID string) (string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	tokens, err := s.tokens.IssueStamped(user.ID, auth.PasswordStamp(user.PasswordHash), auth.PurposeReset)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	return tokens[auth.PurposeReset], nil
}

// ResetPassword stores a new password for the subject of a reset token and
// clears any pending reset code.
func (s *AuthService) ResetPassword(ctx context.Context, userID, newPassword string) (*domain.User, error) {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(msgUserNotFound)
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	recordAuth("reset_password", outcomeSuccess)
	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", userID))

	return user.Sanitize(), nil
}

// ChangePassword replaces the password of userID after checking the current
// one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if !auth.VerifyPassword(oldPassword, user.PasswordHash) {
		recordAuth("change_password", outcomeBadCredentials)
		return apperrors.Unauthorized(msgIncorrectPassword)
	}
	if oldPassword == newPassword {
		return apperrors.InvalidInput("New password must be different from the old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	recordAuth("change_password", outcomeSuccess)
	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))
	return nil
}

// VerifyAccount promotes an unverified user to the user role. Verified users
// and admins are returned unchanged.
func (s *AuthService) VerifyAccount(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != domain.RoleUnverified {
		return user.Sanitize(), nil
	}

	user, err = s.users.UpdateRole(ctx, userID, domain.RoleUser)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(msgUserNotFound)
		}
		return nil, fmt.Errorf("verify account: %w", err)
	}
	user.Sanitize()

	if err := s.publisher.UserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account verified", slog.String("user_id", userID))
	return user, nil
}

// ForgotPassword stores a fresh reset code for the account and publishes the
// rendered reset email. It returns when the code expires.
func (s *AuthService) ForgotPassword(ctx context.Context, input ForgotPasswordInput) (time.Time, error) {
	email, phone := domain.NormalizeEmail(input.Email), domain.NormalizePhone(input.Phone)
	if err := domain.ValidateIdentity(email, phone); err != nil {
		recordAuth("forgot_password", outcomeInvalid)
		return time.Time{}, err
	}

	user, err := s.findByIdentity(ctx, "forgot_password", email, phone)
	if err != nil {
		return time.Time{}, err
	}

	code, err := s.generateOTP(s.cfg.OTPLength)
	if err != nil {
		return time.Time{}, fmt.Errorf("forgot password: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.OTPExpiry)
	if err := s.users.SetOTP(ctx, user.ID, hash, expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("store otp: %w", err)
	}

	html, err := template.ResetPasswordOTP(template.ResetOTPData{
		ServerName: s.cfg.ServerName,
		UserName:   user.Name,
		OTP:        code,
		Expiry:     s.cfg.OTPExpiry,
		Year:       now.Year(),
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("render reset email: %w", err)
	}

	err = s.publisher.PasswordResetRequested(ctx, event.PasswordResetRequestedData{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Subject:   "Reset your " + s.cfg.ServerName + " password",
		HTML:      html,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset_requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	recordAuth("forgot_password", outcomeSuccess)
	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))

	return expiresAt, nil
}

// VerifyOTP checks a reset code and consumes it. The returned user is the
// subject for the reset token.
func (s *AuthService) VerifyOTP(ctx context.Context, input VerifyOTPInput) (*domain.User, error) {
	email, phone := domain.NormalizeEmail(input.Email), domain.NormalizePhone(input.Phone)
	if err := domain.ValidateIdentity(email, phone); err != nil {
		recordAuth("verify_otp", outcomeInvalid)
		return nil, err
	}

	identity := email
	if identity == "" {
		identity = phone
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, identity); err != nil {
			if errors.Is(err, otp.ErrTooManyAttempts) {
				recordAuth("verify_otp", outcomeRateLimited)
				return nil, apperrors.TooManyRequests("Too many OTP attempts, try again later")
			}
			// Limiter failures other than exhaustion fail open.
			s.logger.WarnContext(ctx, "otp limiter unavailable", slog.String("error", err.Error()))
		}
	}

	user, err := s.findByIdentity(ctx, "verify_otp", email, phone)
	if err != nil {
		return nil, err
	}

	if !user.OTPValid(s.now()) || !auth.VerifyPassword(input.OTP, user.OTP) {
		recordAuth("verify_otp", outcomeBadCredentials)
		return nil, apperrors.Unauthorized(msgInvalidOTP)
	}

	if err := s.users.ClearOTP(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("clear otp: %w", err)
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, identity); err != nil {
			s.logger.WarnContext(ctx, "failed to reset otp attempts", slog.String("error", err.Error()))
		}
	}

	recordAuth("verify_otp", outcomeSuccess)
	s.logger.InfoContext(ctx, "otp verified", slog.String("user_id", user.ID))

	return user.Sanitize(), nil
}

// Authenticate resolves the user behind a token issued for purpose. The
// user is reloaded so role changes apply to tokens already issued.
func (s *AuthService) Authenticate(ctx context.Context, token string, purpose auth.Purpose) (*domain.User, error) {
	claims, err := s.tokens.Parse(token, purpose)
	if err != nil {
		s.logger.DebugContext(ctx, "token rejected",
			slog.String("purpose", string(purpose)),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, apperrors.Internal(fmt.Errorf("load token subject: %w", err))
	}
	// A reset token dies with the password it was issued against.
	if purpose == auth.PurposeReset && claims.Stamp != auth.PasswordStamp(user.PasswordHash) {
		s.logger.DebugContext(ctx, "token rejected",
			slog.String("purpose", string(purpose)),
			slog.String("error", "password changed since issue"),
		)
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	return user.Sanitize(), nil
}

// findByIdentity looks up a user by email or phone and maps absence to the
// public not-found error.
func (s *AuthService) findByIdentity(ctx context.Context, operation, email, phone string) (*domain.User, error) {
	user, err := s.users.FindByIdentity(ctx, email, phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			recordAuth(operation, outcomeNotFound)
			return nil, apperrors.NotFoundMessage(msgUserNotFound)
		}
		recordAuth(operation, outcomeError)
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(msgUserNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
