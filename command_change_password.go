package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChangePasswordMessage is the signed in password change form
type ChangePasswordMessage struct {
	UserID       uuid.UUID   `json:"-"`
	OldPassword  string      `json:"old_password"`
	NewPassword1 string      `json:"new_password1"`
	NewPassword2 string      `json:"new_password2"`
	OnResponse   func(*User) `json:"-"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

func (e ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.OldPassword, validation.Required),
		validation.Field(&e.NewPassword1, validation.Required, validation.By(ValidatePassword)),
		validation.Field(&e.NewPassword2, validation.Required, validation.By(ValidateStringEquals(e.NewPassword1))),
	)
}

// ChangePasswordHandler replaces a password after checking the old one.
// Every session of the user is revoked, callers sign the user back in.
type ChangePasswordHandler struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	sessions SessionRevoker
	logger   Logger
	activity ActivitySink
}

// NewChangePasswordHandler creates the handler
func NewChangePasswordHandler(repo RepositoryManager, hasher PasswordHasher, sessions SessionRevoker) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByID(ctx, event.UserID.String())
	if err != nil {
		if IsNotFound(err) {
			return errIdentifierNotFound(event.UserID.String())
		}
		return errStorage(err, "failed to load user")
	}

	ok, _, err := h.hasher.Verify(event.OldPassword, user.PasswordHash)
	if err != nil && !errors.Is(err, ErrPasswordResetRequired) {
		return errInternal(err, "failed to verify password")
	}
	if !ok {
		return NewValidationError(validation.Errors{
			"old_password": errors.New("your old password was entered incorrectly, please enter it again"),
		})
	}

	passwordHash, err := h.hasher.Hash(event.NewPassword1)
	if err != nil {
		return errInternal(err, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		swapped, err := h.repo.Users().SwapPasswordTx(ctx, tx, user.ID, user.PasswordHash, passwordHash)
		if err != nil {
			return errStorage(err, "failed to update password")
		}
		if !swapped {
			return NewValidationError(validation.Errors{
				"old_password": errors.New("your password was changed by another request, please try again"),
			})
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return errStorage(err, "password change transaction failed")
	}

	user.PasswordHash = passwordHash

	if h.sessions != nil {
		if err := h.sessions.RevokeAll(ctx, user.ID); err != nil {
			h.logger.Error("failed to revoke sessions after password change", "user_id", user.ID.String(), "error", err)
		}
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventPasswordChanged, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
