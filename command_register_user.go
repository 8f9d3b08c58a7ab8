package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxUsernameRetries bounds insert retries after a username conflict
var MaxUsernameRetries = 20

// RegisterParticipantMessage is the participant self registration form
type RegisterParticipantMessage struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	Level         Level  `json:"level"`
	Program       string `json:"program"`
	Password1     string `json:"password1"`
	Password2     string `json:"password2"`
	TermsAccepted bool   `json:"terms_accepted"`
	OnResponse    func(*User) `json:"-"`
}

func (e RegisterParticipantMessage) Type() string { return "user.register.participant" }

// Validate checks every field is present and well formed
func (e RegisterParticipantMessage) Validate(phoneRegion string) error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 30)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 30)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Phone, validation.Required, validation.Length(1, 15), validation.By(ValidatePhone(phoneRegion))),
		validation.Field(&e.City, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.Level, validation.Required, validation.In(levelValues()...)),
		validation.Field(&e.Program, validation.Required, is.UUID),
		validation.Field(&e.Password1, validation.Required, validation.By(ValidatePassword)),
		validation.Field(&e.Password2, validation.Required, validation.By(ValidateStringEquals(e.Password1))),
		validation.Field(&e.TermsAccepted, validation.By(mustAccept("you must accept the terms and conditions"))),
	)
}

func (e RegisterParticipantMessage) normalize() RegisterParticipantMessage {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Email = strings.TrimSpace(e.Email)
	e.Phone = strings.TrimSpace(e.Phone)
	e.City = strings.TrimSpace(e.City)
	e.Program = strings.TrimSpace(e.Program)
	return e
}

// RegisterParticipantHandler creates a participant and its profile in
// one transaction. It never signs the user in.
type RegisterParticipantHandler struct {
	repo        RepositoryManager
	hasher      PasswordHasher
	logger      Logger
	activity    ActivitySink
	phoneRegion string
}

// NewRegisterParticipantHandler creates the handler
func NewRegisterParticipantHandler(repo RepositoryManager, hasher PasswordHasher) *RegisterParticipantHandler {
	return &RegisterParticipantHandler{
		repo:        repo,
		hasher:      hasher,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		phoneRegion: DefaultPhoneRegion,
	}
}

func (h *RegisterParticipantHandler) WithLogger(logger Logger) *RegisterParticipantHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterParticipantHandler) WithActivitySink(sink ActivitySink) *RegisterParticipantHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterParticipantHandler) WithPhoneRegion(region string) *RegisterParticipantHandler {
	if region != "" {
		h.phoneRegion = region
	}
	return h
}

func (h *RegisterParticipantHandler) Execute(ctx context.Context, event RegisterParticipantMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterParticipantHandler) execute(ctx context.Context, event RegisterParticipantMessage) error {
	event = event.normalize()
	if err := event.Validate(h.phoneRegion); err != nil {
		return NewValidationError(err)
	}

	programID, err := uuid.Parse(event.Program)
	if err != nil {
		return NewValidationError(validation.Errors{"program": errors.New("select a valid choice")})
	}

	hash, err := h.hasher.Hash(event.Password1)
	if err != nil {
		return errInternal(err, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	base := BaseUsername(event.Email)
	from := 0

	for attempt := 0; attempt < MaxUsernameRetries; attempt++ {
		var suffix int
		user, err := h.register(ctx, event, programID, hash, base, from, &suffix)
		if err == nil {
			recordActivity(ctx, h.activity, h.logger, ActivityEventRegistration, user.ID.String(), map[string]any{
				"username": user.Username,
				"role":     string(user.Role),
			})
			if event.OnResponse != nil {
				event.OnResponse(user)
			}
			return nil
		}

		if HasTextCode(err, TextCodeUsernameCollision) {
			h.logger.Debug("username taken during insert, retrying", "username", CandidateUsername(base, suffix))
			from = suffix + 1
			continue
		}

		return err
	}

	return errInternal(errUsernameCollision(base), "could not allocate a unique username")
}

func (h *RegisterParticipantHandler) register(
	ctx context.Context,
	event RegisterParticipantMessage,
	programID uuid.UUID,
	hash, base string,
	from int,
	suffix *int,
) (*User, error) {
	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Users().EmailExistsTx(ctx, tx, event.Email, uuid.Nil)
		if err != nil {
			return errStorage(err, "failed to check email")
		}
		if taken {
			return errEmailTaken(event.Email)
		}

		if _, err := h.repo.Programs().GetByIdentifierTx(ctx, tx, programID.String()); err != nil {
			if IsNotFound(err) {
				return NewValidationError(validation.Errors{"program": errors.New("select a valid choice")})
			}
			return errStorage(err, "failed to load program")
		}

		username, n, err := h.repo.Users().NextUsernameTx(ctx, tx, base, from)
		*suffix = n
		if err != nil {
			return err
		}

		record := &User{
			Username:     username,
			Email:        event.Email,
			Phone:        event.Phone,
			FirstName:    event.FirstName,
			LastName:     event.LastName,
			Address:      event.City,
			Role:         RoleParticipant,
			IsActive:     true,
			PasswordHash: hash,
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, record); err != nil {
			return err
		}

		pid := programID
		if _, err := h.repo.Profiles().CreateTx(ctx, tx, &ParticipantProfile{
			UserID:    user.ID,
			Level:     event.Level,
			ProgramID: &pid,
		}); err != nil {
			return errStorage(err, "could not create participant profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errStorage(err, "user registration transaction failed")
	}

	return user, nil
}
