package auth

import (
	"context"
	"errors"
	"time"
)

// MaxLoginAttempts is the maximun number of failed attempts a user gets
// in a cool down period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = 24 * time.Hour

// LoginGate runs after the password has been verified. Returning an
// error refuses the login.
type LoginGate func(ctx context.Context, user *User) error

// Authenticator resolves an email or phone identifier to a single user,
// applies the role and activation gates and verifies the password.
type Authenticator struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	logger   Logger
	activity ActivitySink
	gates    []LoginGate
}

// NewAuthenticator creates an Authenticator with the lockout gate installed
func NewAuthenticator(repo RepositoryManager, hasher PasswordHasher) *Authenticator {
	return &Authenticator{
		repo:     repo,
		hasher:   hasher,
		logger:   defLogger{},
		activity: noopActivitySink{},
		gates:    []LoginGate{LockoutGate(MaxLoginAttempts, CoolDownPeriod)},
	}
}

// WithLogger sets the logger
func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	a.logger = normalizeLogger(logger)
	return a
}

// WithActivitySink records login events to sink
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithLoginGates appends gates that run after the lockout gate
func (a *Authenticator) WithLoginGates(gates ...LoginGate) *Authenticator {
	for _, g := range gates {
		if g != nil {
			a.gates = append(a.gates, g)
		}
	}
	return a
}

// Authenticate runs the full sign in algorithm for a login surface
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string, expected ExpectedRole) (*User, error) {
	identifier = normalizeIdentifier(identifier)

	user, kind, err := a.Resolve(ctx, identifier)
	if err != nil {
		a.recordFailure(ctx, "", identifier, err)
		return nil, err
	}

	if err := a.gate(ctx, user, expected); err != nil {
		a.recordFailure(ctx, user.ID.String(), identifier, err)
		return nil, err
	}

	ok, needsRehash, err := a.hasher.Verify(password, user.PasswordHash)
	switch {
	case errors.Is(err, ErrPasswordResetRequired):
		err = errLoginBlocked(BlockedReasonPasswordReset)
		a.recordFailure(ctx, user.ID.String(), identifier, err)
		return nil, err
	case err != nil:
		a.logger.Error("password verification failed", "user_id", user.ID.String(), "error", err)
		return nil, errInternal(err, "failed to verify password")
	case !ok:
		if err := a.repo.Users().TrackAttemptedLogin(ctx, user); err != nil {
			return nil, errStorage(err, "failed to track login attempt")
		}
		err = errBadPassword()
		a.recordFailure(ctx, user.ID.String(), identifier, err)
		return nil, err
	}

	for _, g := range a.gates {
		if err := g(ctx, user); err != nil {
			a.recordFailure(ctx, user.ID.String(), identifier, err)
			return nil, err
		}
	}

	if needsRehash {
		a.rehash(ctx, user, password)
	}

	if err := a.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		a.logger.Error("failed to track successful login", "user_id", user.ID.String(), "error", err)
	}

	recordActivity(ctx, a.activity, a.logger, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"identifier_kind": kind.String(),
		"role":            string(user.Role),
	})

	return user, nil
}

// Resolve finds the single user an identifier points to
func (a *Authenticator) Resolve(ctx context.Context, identifier string) (*User, IdentifierKind, error) {
	kind := ClassifyIdentifier(identifier)
	if identifier == "" {
		return nil, kind, errIdentifierNotFound(identifier)
	}

	if kind == IdentifierPhone {
		lookup := NewPhoneLookup(identifier)
		matches, err := a.repo.Users().FindByPhone(ctx, lookup)
		if err != nil {
			return nil, kind, errStorage(err, "failed to look up user by phone")
		}

		switch len(matches) {
		case 0:
			return nil, kind, errIdentifierNotFound(identifier)
		case 1:
			return matches[0], kind, nil
		default:
			a.logger.Warn("phone identifier is ambiguous", "identifier", identifier, "matches", len(matches))
			return nil, kind, errAmbiguousIdentifier(identifier, len(matches))
		}
	}

	user, err := a.repo.Users().GetByEmail(ctx, identifier)
	if err != nil {
		if IsNotFound(err) {
			return nil, kind, errIdentifierNotFound(identifier)
		}
		return nil, kind, errStorage(err, "failed to look up user by email")
	}

	return user, kind, nil
}

func (a *Authenticator) gate(ctx context.Context, user *User, expected ExpectedRole) error {
	if !expected.Allows(user.Role) {
		return errWrongRole(user.Role)
	}

	if !user.IsActive {
		return errAccountInactive()
	}

	if user.IsStudent() {
		ok, err := a.repo.Profiles().HasParticipant(ctx, user.ID)
		if err != nil {
			return errStorage(err, "failed to load participant profile")
		}
		if !ok {
			a.logger.Warn(
				"participant has no profile, refusing login",
				"user_id", user.ID.String(),
				"username", user.Username,
			)
			return errLoginBlocked(BlockedReasonProfileMissing)
		}
	}

	return nil
}

func (a *Authenticator) rehash(ctx context.Context, user *User, password string) {
	hash, err := a.hasher.Hash(password)
	if err != nil {
		a.logger.Error("failed to rehash password", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := a.repo.Users().SetPassword(ctx, user.ID, hash); err != nil {
		a.logger.Error("failed to store rehashed password", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = hash
}

func (a *Authenticator) recordFailure(ctx context.Context, userID, identifier string, err error) {
	recordActivity(ctx, a.activity, a.logger, ActivityEventLoginFailure, userID, map[string]any{
		"identifier": identifier,
		"text_code":  TextCodeOf(err),
	})
}

// LockoutGate blocks accounts with more than maxAttempts failed attempts inside
// the cool down window
func LockoutGate(maxAttempts int, coolDown time.Duration) LoginGate {
	return func(_ context.Context, user *User) error {
		if user.LoginAttemptAt == nil || time.Since(*user.LoginAttemptAt) > coolDown {
			return nil
		}
		if user.LoginAttempts > maxAttempts {
			return errLoginBlocked(BlockedReasonTooManyAttempts)
		}
		return nil
	}
}
