package auth

import "context"

// Gate decides whether the caller behind ctx may use admin operations.
type Gate interface {
	IsAdmin(ctx context.Context) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context) bool

func (f GateFunc) IsAdmin(ctx context.Context) bool { return f(ctx) }

type claimsKey struct{}

// WithClaims returns a context carrying validated session claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the session claims stored in ctx, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// SessionGate grants admin access to requests whose context carries admin claims
// (placed there by middleware.Session).
type SessionGate struct{}

func (SessionGate) IsAdmin(ctx context.Context) bool {
	c, ok := ClaimsFrom(ctx)
	return ok && c.Role == RoleAdmin
}
