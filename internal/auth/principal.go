package auth

import "context"

// Principal is the caller of a request as verified by the server: the token
// subject plus the admin flag read from the identity store.
type Principal struct {
	UserID  int64
	Email   string
	IsAdmin bool
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by the auth middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
