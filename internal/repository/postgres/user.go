package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/internal/repository"
	"github.com/utafrali/accounts/pkg/database"
	apperrors "github.com/utafrali/accounts/pkg/errors"
)

// userColumns is the projection shared by every query returning a user.
// Email and phone are nullable in the table and empty strings in the domain.
const userColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), password, role, avatar, otp, otp_expires_at, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, name, email, phone, password, role, avatar, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "users.Create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.Phone,
		u.PasswordHash,
		u.Role,
		u.Avatar,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "users.GetByID", query, id)
}

// FindByIdentity retrieves the first user whose email or phone matches.
func (r *UserRepository) FindByIdentity(ctx context.Context, email, phone string) (*domain.User, error) {
	if email == "" && phone == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (email = NULLIF($1, '') OR phone = NULLIF($2, ''))
		ORDER BY created_at
		LIMIT 1`
	return r.scanUser(ctx, "users.FindByIdentity", query, email, phone)
}

// List returns users matching filter along with the total match count.
func (r *UserRepository) List(ctx context.Context, filter repository.ListFilter) (users []domain.User, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if s := strings.TrimSpace(filter.Search); s != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+escapeLike(s)+"%")
		argIndex++
	}

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIndex))
		args = append(args, filter.Role)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the total alongside the page in one round trip.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM users
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := max(filter.Offset, 0)

	ctx, end := database.TraceQuery(ctx, "users.List", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.Phone,
			&u.PasswordHash,
			&u.Role,
			&u.Avatar,
			&u.OTP,
			&u.OTPExpiresAt,
			&u.CreatedAt,
			&u.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}

	if users == nil {
		users = []domain.User{}
		// A page past the end carries no window count.
		if offset > 0 {
			total, err = r.count(ctx, whereClause, args)
			if err != nil {
				return nil, 0, err
			}
		}
	}

	return users, total, nil
}

func (r *UserRepository) count(ctx context.Context, whereClause string, args []any) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM users "+whereClause, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// CountByRole returns the number of users per role.
func (r *UserRepository) CountByRole(ctx context.Context) (counts map[string]int, err error) {
	query := `SELECT role, count(*) FROM users GROUP BY role`

	ctx, end := database.TraceQuery(ctx, "users.CountByRole", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	defer rows.Close()

	counts = make(map[string]int)
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan role count: %w", err)
		}
		counts[role] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role counts: %w", err)
	}

	return counts, nil
}

// Update persists the profile fields of u.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, email = NULLIF($2, ''), phone = NULLIF($3, ''), avatar = $4, updated_at = $5
		WHERE id = $6`

	ctx, end := database.TraceQuery(ctx, "users.Update", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		u.Name,
		u.Email,
		u.Phone,
		u.Avatar,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// UpdateRole sets the role of a user and returns the updated record.
func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) (*domain.User, error) {
	query := `
		UPDATE users
		SET role = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + userColumns

	u, err := r.scanUser(ctx, "users.UpdateRole", query, role, time.Now().UTC(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("user", id)
	}
	return u, err
}

// UpdatePassword stores a new password hash and clears any pending OTP.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password = $1, otp = '', otp_expires_at = NULL, updated_at = $2
		WHERE id = $3`
	return r.execByID(ctx, "users.UpdatePassword", query, id, passwordHash, time.Now().UTC(), id)
}

// SetOTP stores the hash of a reset code and its expiry.
func (r *UserRepository) SetOTP(ctx context.Context, id, otpHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET otp = $1, otp_expires_at = $2, updated_at = $3
		WHERE id = $4`
	return r.execByID(ctx, "users.SetOTP", query, id, otpHash, expiresAt, time.Now().UTC(), id)
}

// ClearOTP removes any stored reset code.
func (r *UserRepository) ClearOTP(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET otp = '', otp_expires_at = NULL, updated_at = $1
		WHERE id = $2`
	return r.execByID(ctx, "users.ClearOTP", query, id, time.Now().UTC(), id)
}

// Delete removes a user from the database by their ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execByID(ctx, "users.Delete", `DELETE FROM users WHERE id = $1`, id, id)
}

// execByID runs a statement that targets exactly one user and reports a
// NotFound error when no row was affected.
func (r *UserRepository) execByID(ctx context.Context, operation, query, id string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.Role,
		&u.Avatar,
		&u.OTP,
		&u.OTPExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// uniqueConflict maps a unique violation on email or phone to a Conflict
// error. It returns nil for any other error.
func uniqueConflict(err error) error {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case "users_email_key":
		return apperrors.Conflict("User already exists with this email")
	case "users_phone_key":
		return apperrors.Conflict("User already exists with this phone")
	default:
		return apperrors.Conflict("User already exists")
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so search text matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
