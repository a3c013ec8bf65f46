package validator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/utafrali/accounts/pkg/errors"
)

// Password length bounds. bcrypt ignores input past 72 bytes, so the upper
// bound counts bytes while the lower bound counts characters.
const (
	PasswordMinChars = 6
	PasswordMaxBytes = 72
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so issue paths match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("password", validPassword); err != nil {
		panic(err)
	}
	// omitempty still validates a non-nil pointer to "", so optional patch
	// fields that may be cleared need an explicit empty alternative.
	v.RegisterAlias("clearable_email", "eq=|email")
	return v
}

func validPassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	return utf8.RuneCountInString(pw) >= PasswordMinChars && len(pw) <= PasswordMaxBytes
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Errors: validationErrors}
		}
		return err
	}
	return nil
}

// ValidationError wraps validator.ValidationErrors with a user-friendly message.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", err.Field(), msgForTag(err)))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns a map of field names to error messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, err := range e.Errors {
		fields[err.Field()] = msgForTag(err)
	}
	return fields
}

// Issues returns the errors as an ordered list of path/message pairs.
func (e *ValidationError) Issues() []apperrors.Issue {
	issues := make([]apperrors.Issue, 0, len(e.Errors))
	for _, err := range e.Errors {
		issues = append(issues, apperrors.Issue{
			Path:    err.Field(),
			Message: fmt.Sprintf("%s %s", err.Field(), msgForTag(err)),
		})
	}
	return issues
}

// AppError converts the validation failure into a 400 application error.
func (e *ValidationError) AppError() *apperrors.AppError {
	return apperrors.Validation(e.Issues()...)
}

// fixedMessages covers tags whose message does not depend on the parameter.
var fixedMessages = map[string]string{
	"required":        "is required",
	"email":           "must be a valid email address",
	"clearable_email": "must be a valid email address or empty",
	"e164":            "must be a phone number in E.164 format",
	"numeric":         "must contain only digits",
	"uuid":            "must be a valid UUID",
	"url":             "must be a valid URL",
	"password":        fmt.Sprintf("must be at least %d characters and at most %d bytes", PasswordMinChars, PasswordMaxBytes),
}

// paramMessages covers tags whose message quotes the tag parameter.
var paramMessages = map[string]string{
	"min":   "must be at least %s characters",
	"max":   "must be at most %s characters",
	"len":   "must be exactly %s characters",
	"gte":   "must be greater than or equal to %s",
	"lte":   "must be less than or equal to %s",
	"oneof": "must be one of: %s",
}

func msgForTag(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	if format, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Param())
	}
	return fmt.Sprintf("failed on '%s' validation", fe.Tag())
}

// DecodeAndValidate reads JSON from the request body, decodes it into dst,
// and validates it. Returns a 400 error response on failure.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return Validate(dst)
}
