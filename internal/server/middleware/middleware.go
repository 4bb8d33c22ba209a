package middleware

import "context"

// Request-scoped values written by the auth middleware and read by RBAC,
// the audit trail and the handlers.
type ctxKey int

const (
	userKey ctxKey = iota
	claimsKey
)

// ClaimsKey returns the context key holding the token claims.
func ClaimsKey() any { return claimsKey }

// WithUser returns ctx carrying user as the authenticated subject.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the subject stored by WithUser, or "".
func UserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}
