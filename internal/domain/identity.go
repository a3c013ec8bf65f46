package domain

import (
	"strings"

	apperrors "github.com/utafrali/accounts/pkg/errors"
)

const missingIdentifier = "Email or phone is missing"

// ValidateIdentity enforces that at least one of email and phone is present.
// When both are blank the returned validation error names both fields.
func ValidateIdentity(email, phone string) error {
	if strings.TrimSpace(email) != "" || strings.TrimSpace(phone) != "" {
		return nil
	}
	return apperrors.Validation(
		apperrors.Issue{Path: FieldEmail, Message: missingIdentifier},
		apperrors.Issue{Path: FieldPhone, Message: missingIdentifier},
	)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims surrounding whitespace from a phone number.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// DescribeIdentity lists the provided identifiers, e.g. "email phone", for
// use in conflict messages.
func DescribeIdentity(email, phone string) string {
	var parts []string
	if email != "" {
		parts = append(parts, FieldEmail)
	}
	if phone != "" {
		parts = append(parts, FieldPhone)
	}
	return strings.Join(parts, " ")
}
