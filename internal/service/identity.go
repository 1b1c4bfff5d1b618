package service

import "context"

// Identity resolves the current user for owner-scoped operations. It is an
// injected collaborator, never ambient global state; the HTTP layer binds
// it to whatever carries the user (a header, a verified token claim) and
// tests substitute a static implementation.
type Identity interface {
	// CurrentUserID returns the user id and whether a user is present.
	CurrentUserID(ctx context.Context) (string, bool)
}

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// ContextIdentity resolves the user id placed on the request context by the
// HTTP middleware.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// StaticIdentity always resolves to a fixed user id; used in tests.
type StaticIdentity string

func (s StaticIdentity) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}
