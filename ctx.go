package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// request locals keys
const (
	UserLocalsKey    = "user"
	SessionLocalsKey = "session"
)

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session *Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok && raw != nil
}

// CurrentUser returns the principal stored on the request
func CurrentUser(c router.Context) (*User, bool) {
	raw, ok := c.Locals(UserLocalsKey).(*User)
	return raw, ok && raw != nil
}

// CurrentSession returns the session stored on the request
func CurrentSession(c router.Context) (*Session, bool) {
	raw, ok := c.Locals(SessionLocalsKey).(*Session)
	return raw, ok && raw != nil
}

func setPrincipal(c router.Context, session *Session, user *User) {
	c.Locals(UserLocalsKey, user)
	c.Locals(SessionLocalsKey, session)

	ctx := WithContext(c.Context(), user)
	ctx = WithSessionContext(ctx, session)
	c.SetContext(ctx)
}
