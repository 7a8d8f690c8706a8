package identity

import "context"

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the authenticated user in the given context. Only a
// value that passed a credential check can be stored, so downstream code
// reading it back gets proof of authentication for free.
func WithContext(ctx context.Context, user AuthenticatedUserLike) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the authenticated user in the context.
func FromContext(ctx context.Context) (AuthenticatedUserLike, bool) {
	raw, ok := ctx.Value(userCtxKey).(AuthenticatedUserLike)
	return raw, ok
}

// WithClaimsContext sets the session claims in the given context.
func WithClaimsContext(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the session claims from the context.
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok
}
