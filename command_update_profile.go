package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage is the profile edit form. Picture is optional.
type UpdateProfileMessage struct {
	UserID      uuid.UUID   `json:"-"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Gender      string      `json:"gender"`
	Address     string      `json:"address"`
	PictureName string      `json:"-"`
	Picture     io.Reader   `json:"-"`
	OnResponse  func(*User) `json:"-"`
}

func (e UpdateProfileMessage) Type() string { return "user.profile.update" }

func (e UpdateProfileMessage) Validate(phoneRegion string) error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Length(0, 150)),
		validation.Field(&e.LastName, validation.Length(0, 150)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Phone, validation.Length(0, 60), validation.By(ValidatePhone(phoneRegion))),
		validation.Field(&e.Gender, validation.In(GenderMale, GenderFemale)),
		validation.Field(&e.Address, validation.Length(0, 100)),
	)
}

// UpdateProfileHandler edits the user's own details and picture
type UpdateProfileHandler struct {
	repo        RepositoryManager
	avatars     *AvatarHandler
	logger      Logger
	phoneRegion string
}

// NewUpdateProfileHandler creates the handler
func NewUpdateProfileHandler(repo RepositoryManager, avatars *AvatarHandler) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:        repo,
		avatars:     avatars,
		logger:      defLogger{},
		phoneRegion: DefaultPhoneRegion,
	}
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateProfileHandler) WithPhoneRegion(region string) *UpdateProfileHandler {
	if region != "" {
		h.phoneRegion = region
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	event.Email = strings.TrimSpace(event.Email)
	event.Phone = strings.TrimSpace(event.Phone)
	if err := event.Validate(h.phoneRegion); err != nil {
		return NewValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var picture string
	if event.Picture != nil && h.avatars != nil {
		key, err := h.avatars.Store(ctx, event.PictureName, event.Picture)
		if err != nil {
			if errors.Is(err, ErrUnsupportedImage) {
				return NewValidationError(validation.Errors{"picture": err})
			}
			return err
		}
		picture = key
	}

	var user *User
	var previous string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if IsNotFound(err) {
				return errIdentifierNotFound(event.UserID.String())
			}
			return errStorage(err, "failed to load user")
		}

		if !strings.EqualFold(record.Email, event.Email) {
			taken, err := h.repo.Users().EmailExistsTx(ctx, tx, event.Email, record.ID)
			if err != nil {
				return errStorage(err, "failed to check email")
			}
			if taken {
				return errEmailTaken(event.Email)
			}
		}

		previous = record.Picture

		record.FirstName = strings.TrimSpace(event.FirstName)
		record.LastName = strings.TrimSpace(event.LastName)
		record.Email = event.Email
		record.Phone = event.Phone
		record.Gender = event.Gender
		record.Address = strings.TrimSpace(event.Address)
		if picture != "" {
			record.Picture = picture
		}

		user, err = h.repo.Users().UpdateContactTx(ctx, tx, record)
		return err
	})

	if err != nil {
		if picture != "" {
			h.avatars.Delete(ctx, picture)
		}
		return richOrStorage(err, "profile update transaction failed")
	}

	if h.avatars != nil {
		h.avatars.Replace(ctx, previous, user.Picture)
		h.avatars.ProcessOnSave(ctx, user.Picture)
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
