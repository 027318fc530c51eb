package accounts

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeAccountBanned       = "ACCOUNT_BANNED"
	TextCodeAccountInactive     = "ACCOUNT_INACTIVE"
	TextCodeAdminRequired       = "ADMIN_REQUIRED"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeCannotModerateAdmin = "CANNOT_MODERATE_ADMIN"
	TextCodeCannotModifySelf    = "CANNOT_MODIFY_SELF"
	TextCodeAlreadyBanned       = "ALREADY_BANNED"
	TextCodeNotBanned           = "NOT_BANNED"
	TextCodeWrongPassword       = "WRONG_PASSWORD"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenRequired       = "TOKEN_REQUIRED"
	TextCodeTokenInvalid        = "TOKEN_INVALID"
	TextCodeValidation          = "VALIDATION_ERROR"
	TextCodeRateLimited         = "RATE_LIMITED"
)

// ErrIdentityNotFound is returned when no account matches.
var ErrIdentityNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidAdminCredentials is returned by the admin login.
var ErrInvalidAdminCredentials = goerrors.New("Invalid admin credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned for accounts that were deactivated.
var ErrAccountInactive = goerrors.New("Account is not active", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeForbidden)

// ErrAdminRequired is returned when a non admin reaches an admin route.
var ErrAdminRequired = goerrors.New("Access denied. Admin privileges required.", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAdminRequired).
	WithCode(goerrors.CodeForbidden)

// ErrEmailTaken is returned when an email already belongs to an account.
var ErrEmailTaken = goerrors.New("User with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

var ErrCannotBanAdmin = goerrors.New("Cannot ban admin users", goerrors.CategoryAuthz).
	WithTextCode(TextCodeCannotModerateAdmin).
	WithCode(goerrors.CodeForbidden)

var ErrCannotDeleteAdmin = goerrors.New("Cannot delete admin users", goerrors.CategoryAuthz).
	WithTextCode(TextCodeCannotModerateAdmin).
	WithCode(goerrors.CodeForbidden)

var ErrCannotChangeOwnStatus = goerrors.New("Cannot change your own status", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCannotModifySelf).
	WithCode(goerrors.CodeBadRequest)

var ErrCannotChangeOwnRole = goerrors.New("Cannot change your own role", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCannotModifySelf).
	WithCode(goerrors.CodeBadRequest)

var ErrCannotDeleteSelf = goerrors.New("Cannot delete your own account", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCannotModifySelf).
	WithCode(goerrors.CodeBadRequest)

var ErrAlreadyBanned = goerrors.New("User is already banned", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyBanned).
	WithCode(goerrors.CodeBadRequest)

var ErrNotBanned = goerrors.New("User is not banned", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNotBanned).
	WithCode(goerrors.CodeBadRequest)

// ErrCurrentPasswordInvalid is returned by a password change with a wrong
// current password.
var ErrCurrentPasswordInvalid = goerrors.New("Current password is incorrect", goerrors.CategoryBadInput).
	WithTextCode(TextCodeWrongPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccessTokenRequired is returned by the route guards when no bearer
// token was sent.
var ErrAccessTokenRequired = goerrors.New("Access token required", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRequired).
	WithCode(goerrors.CodeUnauthorized)

var ErrInvalidToken = goerrors.New("Invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyRequests is returned once a client exhausts its request window.
var ErrTooManyRequests = goerrors.New("Too many requests from this IP, please try again later.", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(fiber.StatusTooManyRequests)

// ErrUnableToDecodeSession is returned when a token parses but its claims do not.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// NewAccountBannedError builds the 403 returned to banned accounts. Its
// metadata carries banned=true so clients can tell a ban from other refusals.
func NewAccountBannedError(message, reason string) *goerrors.Error {
	if message == "" {
		message = "Account has been banned"
	}
	metadata := map[string]any{"banned": true}
	if reason != "" {
		metadata["reason"] = reason
	}
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithTextCode(TextCodeAccountBanned).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(metadata)
}

// NewValidationError converts ozzo validation errors into a 400 carrying the
// failing fields.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if !errors.As(err, &fields) {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Validation failed").
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	details := make([]map[string]string, 0, len(fields))
	for field, fieldErr := range fields {
		if fieldErr == nil {
			continue
		}
		details = append(details, map[string]string{
			"field":   field,
			"message": fieldErr.Error(),
		})
	}

	return goerrors.New("Validation failed", goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"fields": details})
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// IsNotFound reports whether err means the account does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrIdentityNotFound) || goerrors.IsNotFound(err)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return HasTextCode(err, TextCodeTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return HasTextCode(err, TextCodeTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
