package account

import (
	"context"

	"github.com/goliatone/go-router"
)

// Locals keys used by the protected route middleware
const (
	LocalsUserKey    = "current_user"
	LocalsSessionKey = "account_session"
)

var userCtxKey = &contextKey{"user"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

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

// CurrentUser returns the user stored by ProtectedRoute
func CurrentUser(ctx router.Context) (*User, bool) {
	user, ok := ctx.Locals(LocalsUserKey).(*User)
	return user, ok && user != nil
}

// CurrentSession returns the session stored by ProtectedRoute
func CurrentSession(ctx router.Context) (*Session, bool) {
	session, ok := ctx.Locals(LocalsSessionKey).(*Session)
	return session, ok && session != nil
}
