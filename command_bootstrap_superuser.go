package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Superuser bootstrap outcomes
const (
	SuperuserCreated  = "created"
	SuperuserUpdated  = "updated"
	SuperuserUpgraded = "upgraded"
	SuperuserExists   = "exists"
)

// GeneratedPasswordLength is used when the bootstrap has no password
const GeneratedPasswordLength = 16

// EnsureSuperuserMessage carries the bootstrap credentials
type EnsureSuperuserMessage struct {
	Username   string                         `json:"username"`
	Email      string                         `json:"email"`
	Password   string                         `json:"password"`
	OnResponse func(*EnsureSuperuserResponse) `json:"-"`
}

func (e EnsureSuperuserMessage) Type() string { return "user.superuser.ensure" }

func (e EnsureSuperuserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required, validation.Length(1, MaxUsernameLength), validation.By(ValidateUsernameRule)),
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// EnsureSuperuserResponse reports what the bootstrap did. Password is
// only set when it was generated.
type EnsureSuperuserResponse struct {
	Action            string
	User              *User
	GeneratedPassword string
}

// EnsureSuperuserHandler makes sure one administrator account exists
type EnsureSuperuserHandler struct {
	repo   RepositoryManager
	hasher PasswordHasher
	logger Logger
}

// NewEnsureSuperuserHandler creates the handler
func NewEnsureSuperuserHandler(repo RepositoryManager, hasher PasswordHasher) *EnsureSuperuserHandler {
	return &EnsureSuperuserHandler{repo: repo, hasher: hasher, logger: defLogger{}}
}

func (h *EnsureSuperuserHandler) WithLogger(logger Logger) *EnsureSuperuserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *EnsureSuperuserHandler) Execute(ctx context.Context, event EnsureSuperuserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during superuser bootstrap",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *EnsureSuperuserHandler) execute(ctx context.Context, event EnsureSuperuserMessage) error {
	event.Username = strings.TrimSpace(event.Username)
	event.Email = strings.TrimSpace(event.Email)
	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	resp := &EnsureSuperuserResponse{}

	password := event.Password
	if password == "" {
		password = MakeRandomPassword(GeneratedPasswordLength)
		resp.GeneratedPassword = password
	}

	passwordHash, err := h.hasher.Hash(password)
	if err != nil {
		return errInternal(err, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Users().GetByUsernameTx(ctx, tx, event.Username)
		if err != nil && !IsNotFound(err) {
			return errStorage(err, "failed to load user")
		}

		if existing != nil && existing.IsSuperuser() {
			existing.Email = event.Email
			existing.IsActive = true
			existing.PasswordHash = passwordHash
			resp.Action = SuperuserUpdated
			resp.User, err = h.repo.Users().UpdateTx(ctx, tx, existing)
			return err
		}

		// some other administrator already exists, leave it alone
		admins, err := tx.NewSelect().Model((*User)(nil)).Where("role = ?", RoleAdministrator).Count(ctx)
		if err != nil {
			return errStorage(err, "failed to count administrators")
		}
		if admins > 0 {
			resp.Action = SuperuserExists
			resp.GeneratedPassword = ""
			return nil
		}

		if existing != nil {
			existing.Role = RoleAdministrator
			existing.Email = event.Email
			existing.IsActive = true
			existing.PasswordHash = passwordHash
			resp.Action = SuperuserUpgraded
			resp.User, err = h.repo.Users().UpdateTx(ctx, tx, existing)
			return err
		}

		resp.Action = SuperuserCreated
		resp.User, err = h.repo.Users().CreateTx(ctx, tx, &User{
			Username:     event.Username,
			Email:        event.Email,
			Role:         RoleAdministrator,
			IsActive:     true,
			PasswordHash: passwordHash,
		})
		return err
	})

	if err != nil {
		return richOrStorage(err, "superuser bootstrap failed")
	}

	h.logger.Info("superuser bootstrap", "action", resp.Action, "username", event.Username)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
