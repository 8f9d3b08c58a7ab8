package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL bounds a session without remember me. The cookie
// itself has no expiry so it ends with the browser.
var DefaultSessionTTL = 24 * time.Hour

// DefaultRememberTTL bounds a remember me session
var DefaultRememberTTL = 14 * 24 * time.Hour

const sessionIDBytes = 32

// SessionStore persists sessions by their opaque id
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// SessionRevoker drops every session a user holds
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// IssuedSession is a new session and its signed cookie value
type IssuedSession struct {
	Session *Session
	Token   string
}

// Persistent is true when the cookie should outlive the browser
func (i *IssuedSession) Persistent() bool {
	return i != nil && i.Session != nil && i.Session.Remember
}

// SessionManager issues, resolves and revokes sessions
type SessionManager struct {
	store       SessionStore
	users       Users
	signer      *SessionTokenSigner
	ttl         time.Duration
	rememberTTL time.Duration
	logger      Logger
	activity    ActivitySink
	NowFunc     func() time.Time
}

var _ SessionRevoker = (*SessionManager)(nil)

// NewSessionManager creates a manager backed by store
func NewSessionManager(store SessionStore, users Users, signer *SessionTokenSigner) *SessionManager {
	return &SessionManager{
		store:       store,
		users:       users,
		signer:      signer,
		ttl:         DefaultSessionTTL,
		rememberTTL: DefaultRememberTTL,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		NowFunc:     time.Now,
	}
}

// WithLifetimes overrides the default session lifetimes, zero keeps the default
func (m *SessionManager) WithLifetimes(ttl, rememberTTL time.Duration) *SessionManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	if rememberTTL > 0 {
		m.rememberTTL = rememberTTL
	}
	return m
}

func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	m.logger = normalizeLogger(logger)
	return m
}

func (m *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	m.activity = normalizeActivitySink(sink)
	return m
}

// Issue creates a new session for user. A previous session token, if
// any, is revoked so the id always rotates at sign in.
func (m *SessionManager) Issue(ctx context.Context, user *User, remember bool, previous string) (*IssuedSession, error) {
	if user == nil {
		return nil, errInternal(errors.New("nil user"), "can not issue a session without a user")
	}

	if previous != "" {
		if err := m.Revoke(ctx, previous); err != nil {
			m.logger.Debug("previous session not revoked", "error", err)
		}
	}

	id, err := newSessionID()
	if err != nil {
		return nil, errInternal(err, "failed to generate session id")
	}

	ttl := m.ttl
	if remember {
		ttl = m.rememberTTL
	}

	now := m.NowFunc().UTC()
	session := &Session{
		ID:        id,
		UserID:    user.ID,
		Role:      user.Role,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := m.store.Save(ctx, session); err != nil {
		return nil, errStorage(err, "failed to store session")
	}

	token, err := m.signer.Sign(session)
	if err != nil {
		return nil, err
	}

	return &IssuedSession{Session: session, Token: token}, nil
}

// Resolve returns the session and principal behind a cookie value.
// Sessions whose role no longer matches the user are revoked.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, *User, error) {
	if token == "" {
		return nil, nil, errSessionNotFound(ErrSessionNotFound)
	}

	claims, err := m.signer.Parse(token)
	if err != nil {
		return nil, nil, err
	}

	session, err := m.store.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, errSessionNotFound(err)
		}
		return nil, nil, errStorage(err, "failed to load session")
	}

	if session.Expired(m.NowFunc()) {
		m.drop(ctx, session.ID)
		return nil, nil, errSessionNotFound(ErrSessionNotFound)
	}

	user, err := m.users.GetByID(ctx, session.UserID.String())
	if err != nil {
		if IsNotFound(err) {
			m.drop(ctx, session.ID)
			return nil, nil, errSessionNotFound(err)
		}
		return nil, nil, errStorage(err, "failed to load session user")
	}

	if !user.IsActive || user.Role != session.Role {
		m.logger.Info("session no longer matches user, revoking", "user_id", user.ID.String(), "session_role", string(session.Role))
		m.drop(ctx, session.ID)
		return nil, nil, errSessionNotFound(ErrSessionNotFound)
	}

	return session, user, nil
}

// Revoke removes the session behind a cookie value
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	claims, err := m.signer.Parse(token)
	if err != nil {
		return err
	}

	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return errStorage(err, "failed to delete session")
	}

	if uid, err := uuid.Parse(claims.Subject); err == nil {
		recordActivity(ctx, m.activity, m.logger, ActivityEventLogout, uid.String(), nil)
	}

	return nil
}

// RevokeAll removes every session of the user
func (m *SessionManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.DeleteForUser(ctx, userID); err != nil {
		return errStorage(err, "failed to delete user sessions")
	}
	return nil
}

func (m *SessionManager) drop(ctx context.Context, id string) {
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn("failed to delete stale session", "error", err)
	}
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
