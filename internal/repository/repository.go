package repository

import (
	"context"
	"time"

	"github.com/utafrali/accounts/internal/domain"
)

// ListFilter narrows and pages a user listing.
type ListFilter struct {
	// Search is matched case-insensitively against name, email and phone.
	Search string
	// Role, when set, must equal the user's role.
	Role   string
	Offset int
	Limit  int
}

// UserRepository defines the interface for user persistence operations.
// Lookups return apperrors.ErrNotFound when no row matches; unique violations
// on email or phone are reported as apperrors.Conflict.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// FindByIdentity returns the first user whose email or phone matches.
	// Blank identifiers never match.
	FindByIdentity(ctx context.Context, email, phone string) (*domain.User, error)

	// List returns one page of users and the total number of matches.
	List(ctx context.Context, filter ListFilter) ([]domain.User, int, error)

	// CountByRole returns the number of users per role. Roles without users
	// are absent.
	CountByRole(ctx context.Context) (map[string]int, error)

	// Update persists name, email, phone and avatar.
	Update(ctx context.Context, user *domain.User) error
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetOTP(ctx context.Context, id, otpHash string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
