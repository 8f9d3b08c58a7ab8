package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeleteUserMessage removes an account and every profile it owns
type DeleteUserMessage struct {
	UserID uuid.UUID `json:"user_id"`
}

func (e DeleteUserMessage) Type() string { return "user.account.delete" }

// DeleteParticipantProfileMessage removes a participant profile. Unless
// ProfileOnly is set the owning user is removed as well.
type DeleteParticipantProfileMessage struct {
	ProfileID   uuid.UUID `json:"profile_id"`
	ProfileOnly bool      `json:"profile_only"`
}

func (e DeleteParticipantProfileMessage) Type() string { return "user.participant_profile.delete" }

// DeleteUserHandler is the administrative delete path. Profiles go
// first, then the principal, in one transaction.
type DeleteUserHandler struct {
	repo     RepositoryManager
	sessions SessionRevoker
	avatars  *AvatarHandler
	logger   Logger
	activity ActivitySink
}

// NewDeleteUserHandler creates the handler
func NewDeleteUserHandler(repo RepositoryManager) *DeleteUserHandler {
	return &DeleteUserHandler{
		repo:     repo,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *DeleteUserHandler) WithSessionRevoker(sessions SessionRevoker) *DeleteUserHandler {
	h.sessions = sessions
	return h
}

func (h *DeleteUserHandler) WithAvatarHandler(avatars *AvatarHandler) *DeleteUserHandler {
	h.avatars = avatars
	return h
}

func (h *DeleteUserHandler) WithLogger(logger Logger) *DeleteUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *DeleteUserHandler) WithActivitySink(sink ActivitySink) *DeleteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.deleteUserTx(ctx, tx, event.UserID)
		return err
	})
	if err != nil {
		return richOrStorage(err, "user deletion transaction failed")
	}

	h.afterDelete(ctx, user)
	return nil
}

// deleteUserTx removes the user's remaining profiles and then the user.
// It never calls back into a profile delete path.
func (h *DeleteUserHandler) deleteUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*User, error) {
	user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, userID.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, errIdentifierNotFound(userID.String())
		}
		return nil, errStorage(err, "failed to load user")
	}

	if err := h.repo.Profiles().DeleteForUserTx(ctx, tx, user.ID); err != nil {
		return nil, errStorage(err, "failed to delete user profiles")
	}

	if err := h.repo.Users().RemoveTx(ctx, tx, user.ID); err != nil {
		return nil, errStorage(err, "failed to delete user")
	}

	return user, nil
}

func (h *DeleteUserHandler) afterDelete(ctx context.Context, user *User) {
	if h.sessions != nil {
		if err := h.sessions.RevokeAll(ctx, user.ID); err != nil {
			h.logger.Error("failed to revoke sessions of deleted user", "user_id", user.ID.String(), "error", err)
		}
	}

	if h.avatars != nil {
		h.avatars.Delete(ctx, user.Picture)
	}

	metadata := map[string]any{
		"username": user.Username,
		"role":     string(user.Role),
	}
	if actor, ok := FromContext(ctx); ok {
		metadata["actor_id"] = actor.ID.String()
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventAccountDeleted, user.ID.String(), metadata)
}

// DeleteParticipantProfileHandler is the profile initiated delete path
type DeleteParticipantProfileHandler struct {
	users *DeleteUserHandler
}

// NewDeleteParticipantProfileHandler shares collaborators with users
func NewDeleteParticipantProfileHandler(users *DeleteUserHandler) *DeleteParticipantProfileHandler {
	return &DeleteParticipantProfileHandler{users: users}
}

func (h *DeleteParticipantProfileHandler) Execute(ctx context.Context, event DeleteParticipantProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during participant profile deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteParticipantProfileHandler) execute(ctx context.Context, event DeleteParticipantProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	repo := h.users.repo

	var user *User
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := repo.Profiles().GetByIdentifierTx(ctx, tx, event.ProfileID.String())
		if err != nil {
			if IsNotFound(err) {
				return goerrors.New("participant profile not found", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound).
					WithMetadata(map[string]any{"profile_id": event.ProfileID.String()})
			}
			return errStorage(err, "failed to load participant profile")
		}

		if err := repo.Profiles().DeleteParticipantTx(ctx, tx, profile.ID); err != nil {
			return errStorage(err, "failed to delete participant profile")
		}

		if event.ProfileOnly {
			return nil
		}

		user, err = h.users.deleteUserTx(ctx, tx, profile.UserID)
		return err
	})
	if err != nil {
		return richOrStorage(err, "participant profile deletion transaction failed")
	}

	if user != nil {
		h.users.afterDelete(ctx, user)
	}

	return nil
}

func richOrStorage(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return errStorage(err, msg)
}
