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

// CreateAccountMessage is the administrator account form. A blank
// password leaves the account unusable until it is reset.
type CreateAccountMessage struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Address   string `json:"address"`
	Role      Role   `json:"role"`
	Password  string `json:"password"`
	Inactive  bool   `json:"inactive"`

	// participant and department head
	Level   Level  `json:"level"`
	Program string `json:"program"`

	// guardian
	ParticipantProfile string       `json:"participant_profile"`
	Relationship       Relationship `json:"relationship"`

	OnResponse func(*User) `json:"-"`
}

func (e CreateAccountMessage) Type() string { return "user.account.create" }

func (e CreateAccountMessage) Validate(phoneRegion string) error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Length(1, MaxUsernameLength), validation.By(ValidateUsernameRule)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Phone, validation.Length(0, 60), validation.By(ValidatePhone(phoneRegion))),
		validation.Field(&e.FirstName, validation.Length(0, 150)),
		validation.Field(&e.LastName, validation.Length(0, 150)),
		validation.Field(&e.Gender, validation.In(GenderMale, GenderFemale)),
		validation.Field(&e.Address, validation.Length(0, 100)),
		validation.Field(&e.Role, validation.Required, validation.In(roleValues()...)),
		validation.Field(&e.Password, validation.By(ValidatePassword)),
		validation.Field(&e.Level, validation.In(levelValues()...)),
		validation.Field(&e.Program, is.UUID),
		validation.Field(&e.ParticipantProfile, is.UUID),
		validation.Field(&e.Relationship, validation.In(relationshipValues()...)),
	)
}

// CreateAccountHandler creates any kind of account together with the
// profile its role needs
type CreateAccountHandler struct {
	repo        RepositoryManager
	hasher      PasswordHasher
	logger      Logger
	activity    ActivitySink
	phoneRegion string
}

// NewCreateAccountHandler creates the handler
func NewCreateAccountHandler(repo RepositoryManager, hasher PasswordHasher) *CreateAccountHandler {
	return &CreateAccountHandler{
		repo:        repo,
		hasher:      hasher,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		phoneRegion: DefaultPhoneRegion,
	}
}

func (h *CreateAccountHandler) WithLogger(logger Logger) *CreateAccountHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *CreateAccountHandler) WithActivitySink(sink ActivitySink) *CreateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *CreateAccountHandler) WithPhoneRegion(region string) *CreateAccountHandler {
	if region != "" {
		h.phoneRegion = region
	}
	return h
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAccountHandler) execute(ctx context.Context, event CreateAccountMessage) error {
	event.Username = strings.TrimSpace(event.Username)
	event.Email = strings.TrimSpace(event.Email)
	event.Phone = strings.TrimSpace(event.Phone)

	if err := event.Validate(h.phoneRegion); err != nil {
		return NewValidationError(err)
	}

	var err error
	passwordHash := UnusablePassword()
	if event.Password != "" {
		if passwordHash, err = h.hasher.Hash(event.Password); err != nil {
			return errInternal(err, "failed to hash password")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	record := &User{
		Username:     event.Username,
		Email:        event.Email,
		Phone:        event.Phone,
		FirstName:    strings.TrimSpace(event.FirstName),
		LastName:     strings.TrimSpace(event.LastName),
		Gender:       event.Gender,
		Address:      strings.TrimSpace(event.Address),
		Role:         event.Role,
		IsActive:     !event.Inactive,
		PasswordHash: passwordHash,
	}

	var user *User
	if event.Username != "" {
		user, err = h.create(ctx, event, record, func(context.Context, bun.IDB) (string, int, error) {
			return event.Username, 0, nil
		})
		if HasTextCode(err, TextCodeUsernameCollision) {
			return NewValidationError(validation.Errors{
				"username": errors.New("a user with that username already exists"),
			})
		}
	} else {
		user, err = h.createWithSynthesizedUsername(ctx, event, record)
	}

	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventAccountCreated, user.ID.String(), map[string]any{
		"username":        user.Username,
		"role":            string(user.Role),
		"usable_password": user.HasUsablePassword(),
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *CreateAccountHandler) createWithSynthesizedUsername(ctx context.Context, event CreateAccountMessage, record *User) (*User, error) {
	base := BaseUsername(event.Email)
	from := 0

	for attempt := 0; attempt < MaxUsernameRetries; attempt++ {
		var suffix int
		user, err := h.create(ctx, event, record, func(ctx context.Context, tx bun.IDB) (string, int, error) {
			username, n, err := h.repo.Users().NextUsernameTx(ctx, tx, base, from)
			suffix = n
			return username, n, err
		})
		if !HasTextCode(err, TextCodeUsernameCollision) {
			return user, err
		}
		from = suffix + 1
	}

	return nil, errInternal(errUsernameCollision(base), "could not allocate a unique username")
}

func (h *CreateAccountHandler) create(
	ctx context.Context,
	event CreateAccountMessage,
	record *User,
	username func(context.Context, bun.IDB) (string, int, error),
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

		programID, err := h.program(ctx, tx, event.Program)
		if err != nil {
			return err
		}

		u := *record
		u.ID = uuid.Nil
		if u.Username, _, err = username(ctx, tx); err != nil {
			return err
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, &u); err != nil {
			return err
		}

		return h.createProfile(ctx, tx, event, user, programID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errStorage(err, "account creation transaction failed")
	}

	return user, nil
}

func (h *CreateAccountHandler) program(ctx context.Context, tx bun.IDB, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, NewValidationError(validation.Errors{"program": errors.New("select a valid choice")})
	}

	if _, err := h.repo.Programs().GetByIdentifierTx(ctx, tx, id.String()); err != nil {
		if IsNotFound(err) {
			return nil, NewValidationError(validation.Errors{"program": errors.New("select a valid choice")})
		}
		return nil, errStorage(err, "failed to load program")
	}

	return &id, nil
}

func (h *CreateAccountHandler) createProfile(ctx context.Context, tx bun.IDB, event CreateAccountMessage, user *User, programID *uuid.UUID) error {
	switch user.Role {
	case RoleParticipant:
		level := event.Level
		if level == "" {
			level = LevelBeginner
		}
		if _, err := h.repo.Profiles().CreateTx(ctx, tx, &ParticipantProfile{
			UserID:    user.ID,
			Level:     level,
			ProgramID: programID,
		}); err != nil {
			return errStorage(err, "could not create participant profile")
		}

	case RoleGuardian:
		profile := &GuardianProfile{
			UserID:       user.ID,
			FirstName:    user.FirstName,
			LastName:     user.LastName,
			Phone:        user.Phone,
			Email:        user.Email,
			Relationship: event.Relationship,
		}

		if event.ParticipantProfile != "" {
			pid, _ := uuid.Parse(event.ParticipantProfile)
			if _, err := h.repo.Profiles().GetByIdentifierTx(ctx, tx, pid.String()); err != nil {
				if IsNotFound(err) {
					return NewValidationError(validation.Errors{
						"participant_profile": errors.New("select a valid choice"),
					})
				}
				return errStorage(err, "failed to load participant profile")
			}
			profile.ParticipantProfileID = &pid
		}

		if _, err := h.repo.Profiles().CreateGuardianTx(ctx, tx, profile); err != nil {
			return errStorage(err, "could not create guardian profile")
		}

	case RoleDepartmentHead:
		if _, err := h.repo.Profiles().CreateDepartmentHeadTx(ctx, tx, &DepartmentHeadProfile{
			UserID:    user.ID,
			ProgramID: programID,
		}); err != nil {
			return errStorage(err, "could not create department head profile")
		}
	}

	return nil
}
