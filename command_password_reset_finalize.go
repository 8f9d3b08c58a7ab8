package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage consumes a reset token
type FinalizePasswordResetMessage struct {
	UID        string      `json:"uid"`
	Token      string      `json:"token"`
	Password1  string      `json:"new_password1"`
	Password2  string      `json:"new_password2"`
	OnResponse func(*User) `json:"-"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Password1, validation.Required, validation.By(ValidatePassword)),
		validation.Field(&e.Password2, validation.Required, validation.By(ValidateStringEquals(e.Password1))),
	)
}

// FinalizePasswordResetHandler sets a new password from a valid token
// and signs the user out everywhere
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *ResetTokenGenerator
	hasher   PasswordHasher
	sessions SessionRevoker
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *ResetTokenGenerator, hasher PasswordHasher) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithSessionRevoker revokes the user sessions after the reset
func (h *FinalizePasswordResetHandler) WithSessionRevoker(sessions SessionRevoker) *FinalizePasswordResetHandler {
	h.sessions = sessions
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

// CheckToken returns the user a uid and token pair is valid for
func (h *FinalizePasswordResetHandler) CheckToken(ctx context.Context, uid, token string) (*User, error) {
	id, err := DecodeUID(uid)
	if err != nil {
		return nil, err
	}

	user, err := h.repo.Users().GetByID(ctx, id.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, errTokenMismatch()
		}
		return nil, errStorage(err, "could not retrieve user for password reset")
	}

	if err := h.tokens.Check(user, token); err != nil {
		return nil, err
	}

	return user, nil
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.CheckToken(ctx, event.UID, event.Token)
	if err != nil {
		return err
	}

	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	passwordHash, err := h.hasher.Hash(event.Password1)
	if err != nil {
		return errInternal(err, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		swapped, err := h.repo.Users().SwapPasswordTx(ctx, tx, user.ID, user.PasswordHash, passwordHash)
		if err != nil {
			return errStorage(err, "failed to update user password in database")
		}
		if !swapped {
			// someone changed the password since the token was checked
			return errTokenMismatch()
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return errStorage(err, "failed to finalize password reset")
	}

	user.PasswordHash = passwordHash

	if h.sessions != nil {
		if err := h.sessions.RevokeAll(ctx, user.ID); err != nil {
			h.logger.Error("failed to revoke sessions after password reset", "user_id", user.ID.String(), "error", err)
		}
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventPasswordResetSuccess, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
