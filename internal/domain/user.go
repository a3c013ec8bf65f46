package domain

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"time"
)

// User represents an account holder. At least one of Email and Phone is set.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	OTP          string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Sanitize clears the password hash and OTP fields so the user can leave the
// service boundary.
func (u *User) Sanitize() *User {
	u.PasswordHash = ""
	u.OTP = ""
	u.OTPExpiresAt = nil
	return u
}

// Omittable fields of a User for list and lookup projections.
const (
	FieldName   = "name"
	FieldEmail  = "email"
	FieldPhone  = "phone"
	FieldAvatar = "avatar"
	FieldRole   = "role"
)

// OmittableFields returns the field names a caller may exclude from a result.
func OmittableFields() []string {
	return []string{FieldName, FieldEmail, FieldPhone, FieldAvatar, FieldRole}
}

// ParseOmit splits a comma separated omit list and checks every name against
// OmittableFields. Blank entries are ignored.
func ParseOmit(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !slices.Contains(OmittableFields(), f) {
			return nil, fmt.Errorf("unknown field %q, allowed: %s", f, strings.Join(OmittableFields(), ", "))
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Omit zeroes the given fields. Names are expected to be validated by ParseOmit.
func (u *User) Omit(fields ...string) *User {
	for _, f := range fields {
		switch f {
		case FieldName:
			u.Name = ""
		case FieldEmail:
			u.Email = ""
		case FieldPhone:
			u.Phone = ""
		case FieldAvatar:
			u.Avatar = ""
		case FieldRole:
			u.Role = ""
		}
	}
	return u
}

// OTPValid reports whether an OTP is stored and has not expired at now.
func (u *User) OTPValid(now time.Time) bool {
	return u.OTP != "" && u.OTPExpiresAt != nil && now.Before(*u.OTPExpiresAt)
}

// AvatarPrefix is the storage key prefix reserved for userID's avatars.
func AvatarPrefix(userID string) string {
	return "avatars/" + userID + "/"
}

// OwnsAvatar reports whether key names a file under userID's avatar prefix.
// Only keys already in path.Clean form match.
func OwnsAvatar(userID, key string) bool {
	if userID == "" || strings.ContainsRune(key, '\\') {
		return false
	}
	prefix := AvatarPrefix(userID)
	if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return false
	}
	return path.Clean(key) == key
}
