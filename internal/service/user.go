package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/accounts/internal/auth"
	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/internal/event"
	"github.com/utafrali/accounts/internal/repository"
	apperrors "github.com/utafrali/accounts/pkg/errors"
	"github.com/utafrali/accounts/pkg/pagination"
)

// AvatarRemover deletes replaced or orphaned avatar files in the background.
type AvatarRemover interface {
	Schedule(key string)
}

// UserService implements the user directory: registration, profile updates,
// listing and deletion.
type UserService struct {
	users     repository.UserRepository
	hasher    auth.PasswordHasher
	avatars   AvatarRemover
	publisher event.Publisher
	logger    *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	avatars AvatarRemover,
	publisher event.Publisher,
	logger *slog.Logger,
) *UserService {
	if publisher == nil {
		publisher = event.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		avatars:   avatars,
		publisher: publisher,
		logger:    logger,
	}
}

// --- Input/Output types ---

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// UpdateUserInput holds the profile fields to change. Nil fields are left
// untouched. An empty Email or Phone clears it while the other remains; an
// empty Avatar removes the current one.
type UpdateUserInput struct {
	Name   *string
	Email  *string
	Phone  *string
	Avatar *string
}

// ListUsersInput holds the parameters for listing users.
type ListUsersInput struct {
	Page   int
	Limit  int
	Search string
	Role   string
	// Omit is a comma separated list of fields to leave out of each user.
	Omit string
}

// ListUsersResult is one page of users.
type ListUsersResult struct {
	Users []domain.User
	Meta  pagination.Meta
}

// --- Operations ---

// Create registers a new unverified user.
func (s *UserService) Create(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email, phone := domain.NormalizeEmail(input.Email), domain.NormalizePhone(input.Phone)
	if err := domain.ValidateIdentity(email, phone); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByIdentity(ctx, email, phone)
	switch {
	case err == nil && existing != nil:
		return nil, apperrors.Conflict("User already exists with this " + domain.DescribeIdentity(email, phone))
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         domain.RoleUnverified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// A concurrent registration that passed the check above is rejected by
	// the unique constraints and surfaces as a Conflict.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.Sanitize()
	UsersRegistered.Inc()

	if err := s.publisher.UserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Update applies a partial profile update. A replaced avatar is deleted in
// the background once the update is stored.
func (s *UserService) Update(ctx context.Context, userID string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage(msgUserNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	previousAvatar := user.Avatar

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		user.Email = domain.NormalizeEmail(*input.Email)
	}
	if input.Phone != nil {
		user.Phone = domain.NormalizePhone(*input.Phone)
	}
	if input.Avatar != nil {
		avatar := *input.Avatar
		if avatar != "" && avatar != previousAvatar && !domain.OwnsAvatar(user.ID, avatar) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("avatar must be stored under %s", domain.AvatarPrefix(user.ID)))
		}
		user.Avatar = avatar
	}

	if err := domain.ValidateIdentity(user.Email, user.Phone); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if previousAvatar != user.Avatar {
		s.removeAvatar(ctx, user.ID, previousAvatar)
	}
	user.Sanitize()

	if err := s.publisher.UserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user updated", slog.String("user_id", user.ID))
	return user, nil
}

// List returns a page of users matching the search and role filters.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersResult, error) {
	if input.Role != "" && !domain.IsValidRole(input.Role) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", input.Role))
	}
	omit, err := domain.ParseOmit(input.Omit)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	params := pagination.New(input.Page, input.Limit)
	users, total, err := s.users.List(ctx, repository.ListFilter{
		Search: input.Search,
		Role:   input.Role,
		Offset: params.Offset,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	for i := range users {
		users[i].Sanitize().Omit(omit...)
	}

	return &ListUsersResult{
		Users: users,
		Meta:  pagination.NewMeta(total, params),
	}, nil
}

// GetByID returns the user with the given id, or nil when there is none.
// Fields named in omit are cleared.
func (s *UserService) GetByID(ctx context.Context, userID string, omit ...string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user.Sanitize().Omit(omit...), nil
}

// CountByRole returns the number of users per role. Every known role is
// present, with zero when it has no users.
func (s *UserService) CountByRole(ctx context.Context) (map[string]int, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}

	result := make(map[string]int, len(domain.ValidRoles()))
	for _, role := range domain.ValidRoles() {
		result[role] = 0
	}
	for role, n := range counts {
		result[role] = n
	}
	return result, nil
}

// Delete removes a user and schedules deletion of their avatar.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFoundMessage(msgUserNotFound)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFoundMessage(msgUserNotFound)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.removeAvatar(ctx, userID, user.Avatar)

	if err := s.publisher.UserDeleted(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", userID))
	return nil
}

// removeAvatar schedules deletion of key when it lies under userID's prefix.
// Keys outside it are left in place.
func (s *UserService) removeAvatar(ctx context.Context, userID, key string) {
	if key == "" || s.avatars == nil {
		return
	}
	if !domain.OwnsAvatar(userID, key) {
		s.logger.WarnContext(ctx, "avatar outside user prefix left in place",
			slog.String("user_id", userID),
			slog.String("key", key),
		)
		return
	}
	s.avatars.Schedule(key)
}
