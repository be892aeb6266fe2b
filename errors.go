package account

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeInvalidLink        = "INVALID_LINK"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeInvalidOldPassword = "INVALID_OLD_PASSWORD"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeDecode             = "DECODE_ERROR"
)

// ErrInvalidActivationLink is returned for any activation link that does
// not resolve to a pending account: bad id, unknown user or bad token.
var ErrInvalidActivationLink = goerrors.New("Invalid activation link", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidLink)

// ErrInvalidResetLink is the password reset counterpart of ErrInvalidActivationLink
var ErrInvalidResetLink = goerrors.New("Invalid or expired password reset link", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidLink)

// ErrMissingActivationParams is returned when uid or token are empty
var ErrMissingActivationParams = goerrors.New("Missing uid or token.", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidLink)

// ErrInvalidCredentials is the single login failure, whatever the cause
var ErrInvalidCredentials = goerrors.New("Unable to log in with provided credentials.", goerrors.CategoryAuth).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidCredentials)

// ErrInvalidOldPassword is returned by password change
var ErrInvalidOldPassword = goerrors.New("Your old password was entered incorrectly. Please enter it again.", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidOldPassword)

// ErrUnauthenticated is returned when a session is required but missing
var ErrUnauthenticated = goerrors.New("Authentication credentials were not provided.", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthenticated)

// ErrDecode is returned by the IdentityEncoder for malformed input
var ErrDecode = goerrors.New("unable to decode identifier", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeDecode)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("NOT_FOUND")

// ErrSessionNotFound is returned for unknown or expired sessions
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("NOT_FOUND")

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match
var ErrMismatchedHashAndPassword = goerrors.New("password does not match hash", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownHashFormat is returned when a stored hash has an unknown encoding
var ErrUnknownHashFormat = goerrors.New("unknown password hash format", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal)

const msgEmailTaken = "user with this email address already exists."

// NewValidationError builds a ValidationError with field level messages
func NewValidationError(fields map[string]string) *goerrors.Error {
	return goerrors.New("Invalid request payload", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(map[string]any{"fields": fields})
}

// ValidationFields returns the field messages of a ValidationError
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsInvalidLink reports whether err is an invalid activation or reset link
func IsInvalidLink(err error) bool {
	return hasTextCode(err, TextCodeInvalidLink)
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// ErrInvalidPassword is returned when a confirmation password does not match
var ErrInvalidPassword = goerrors.New("Invalid password.", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode("INVALID_PASSWORD")

// richError returns err when it already is a rich error, otherwise it
// wraps it as an internal failure with msg.
func richError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrIdentityNotFound) || goerrors.IsNotFound(err)
}

// ErrMalformedPayload is returned when a request body can not be decoded
var ErrMalformedPayload = goerrors.New("Malformed request.", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode("MALFORMED_PAYLOAD")
