package auth

import (
	"database/sql"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/lib/pq"
)

// Text codes exported to the UI layer. Handlers switch on these,
// never on error messages.
const (
	TextCodeValidation          = "validation_error"
	TextCodeIdentifierNotFound  = "identifier_not_found"
	TextCodeWrongRole           = "wrong_role"
	TextCodeAccountInactive     = "account_inactive"
	TextCodeAmbiguousIdentifier = "ambiguous_identifier"
	TextCodeBadPassword         = "bad_password"
	TextCodeLoginBlocked        = "login_blocked"
	TextCodeEmailTaken          = "email_taken"
	TextCodeUsernameCollision   = "username_collision"
	TextCodeTokenExpired        = "token_expired"
	TextCodeTokenMismatch       = "token_mismatch"
	TextCodeStorageUnavailable  = "storage_unavailable"
	TextCodeInternal            = "internal_error"
	TextCodeSessionNotFound     = "session_not_found"
)

// Login blocked reasons, stored under the "reason" metadata key.
const (
	BlockedReasonTooManyAttempts = "too_many_attempts"
	BlockedReasonPasswordReset   = "password_reset_required"
	BlockedReasonProfileMissing  = "participant_profile_missing"
	BlockedReasonAccountFlagged  = "account_flagged"
	blockedReasonMetadataKey     = "reason"
	validationFieldsMetadataKey  = "fields"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrPasswordResetRequired is returned when verifying against an unusable hash
var ErrPasswordResetRequired = errors.New("password reset required")

// ErrUnknownHashAlgorithm signals a stored hash we can not verify
var ErrUnknownHashAlgorithm = errors.New("unknown password hash algorithm")

// ErrSessionNotFound is returned for missing or expired sessions
var ErrSessionNotFound = errors.New("session not found")

// ErrUnsupportedImage is returned for uploads that are not jpeg, png or gif
var ErrUnsupportedImage = errors.New("upload a valid image, the file you uploaded was either not an image or a corrupted image")

func errIdentifierNotFound(identifier string) error {
	return goerrors.New("no account found for identifier", goerrors.CategoryAuth).
		WithTextCode(TextCodeIdentifierNotFound).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{"identifier": identifier})
}

func errWrongRole(role Role) error {
	return goerrors.New("account is not allowed on this login", goerrors.CategoryAuthz).
		WithTextCode(TextCodeWrongRole).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{"role": string(role)})
}

func errAccountInactive() error {
	return goerrors.New("account is inactive", goerrors.CategoryAuth).
		WithTextCode(TextCodeAccountInactive).
		WithCode(goerrors.CodeForbidden)
}

func errAmbiguousIdentifier(identifier string, matches int) error {
	return goerrors.New("identifier matches more than one account", goerrors.CategoryAuth).
		WithTextCode(TextCodeAmbiguousIdentifier).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{
			"identifier": identifier,
			"matches":    matches,
		})
}

func errBadPassword() error {
	return goerrors.New("invalid credentials", goerrors.CategoryAuth).
		WithTextCode(TextCodeBadPassword).
		WithCode(goerrors.CodeUnauthorized)
}

func errLoginBlocked(reason string) error {
	return goerrors.New("login is not allowed for this account", goerrors.CategoryAuth).
		WithTextCode(TextCodeLoginBlocked).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{blockedReasonMetadataKey: reason})
}

func errEmailTaken(email string) error {
	return goerrors.New("this email address is already registered", goerrors.CategoryConflict).
		WithTextCode(TextCodeEmailTaken).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			validationFieldsMetadataKey: map[string]string{
				"email": "This email address is already registered.",
			},
			"email": email,
		})
}

func errUsernameCollision(username string) error {
	return goerrors.New("username already exists", goerrors.CategoryConflict).
		WithTextCode(TextCodeUsernameCollision).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"username": username})
}

func errTokenExpired() error {
	return goerrors.New("password reset token has expired", goerrors.CategoryValidation).
		WithTextCode(TextCodeTokenExpired).
		WithCode(goerrors.CodeBadRequest)
}

func errTokenMismatch() error {
	return goerrors.New("invalid password reset token", goerrors.CategoryValidation).
		WithTextCode(TextCodeTokenMismatch).
		WithCode(goerrors.CodeBadRequest)
}

func errSessionNotFound(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, "session not found or expired").
		WithTextCode(TextCodeSessionNotFound).
		WithCode(goerrors.CodeUnauthorized)
}

func errStorage(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeStorageUnavailable).
		WithCode(goerrors.CodeInternal)
}

func errInternal(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// NewValidationError wraps an ozzo validation error and keeps one message per field
func NewValidationError(err error) error {
	return goerrors.New("invalid input", goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			validationFieldsMetadataKey: FormatValidationErrorToMap(err),
		})
}

// FormatValidationErrorToMap flattens ozzo validation errors to field -> message
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

// TextCodeOf returns the taxonomy code carried by err, or internal_error
func TextCodeOf(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return TextCodeInternal
}

// HasTextCode reports whether err carries the given taxonomy code
func HasTextCode(err error, code string) bool {
	return err != nil && TextCodeOf(err) == code
}

// ValidationFields returns the per field messages of a validation or conflict error
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata[validationFieldsMetadataKey].(map[string]string)
	return fields
}

// BlockedReason returns why a login was blocked, if it was
func BlockedReason(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return ""
	}
	reason, _ := richErr.Metadata[blockedReasonMetadataKey].(string)
	return reason
}

// IsNotFound reports whether err is a missing record
func IsNotFound(err error) bool {
	return repository.IsRecordNotFound(err) ||
		goerrors.IsNotFound(err) ||
		errors.Is(err, sql.ErrNoRows)
}

// Unique indexes on users, see data/sql/migrations
const (
	constraintUsersUsername = "users_username_key"
	constraintUsersEmail    = "users_email_ci_key"
)

type uniqueViolation struct {
	// constraint is set for postgres, message for sqlite
	constraint string
	message    string
}

// asUniqueViolation detects duplicate key errors from postgres and sqlite
func asUniqueViolation(err error) (uniqueViolation, bool) {
	if err == nil {
		return uniqueViolation{}, false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			return uniqueViolation{constraint: pqErr.Constraint}, true
		}
		return uniqueViolation{}, false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") {
		return uniqueViolation{message: msg}, true
	}
	return uniqueViolation{}, false
}

// on matches the index name, or for sqlite column constraints the
// table.column token. Conflicting values never take part.
func (u uniqueViolation) on(constraint, column string) bool {
	if u.constraint != "" {
		return u.constraint == constraint
	}
	return strings.Contains(u.message, "index '"+constraint+"'") ||
		strings.Contains(u.message, "failed: "+column)
}
