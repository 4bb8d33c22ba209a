package tenant

import (
	"context"
	"errors"
)

// ErrMissing is returned when a tenant-scoped operation runs without a tenant.
var ErrMissing = errors.New("tenant not set in context")

// ctxKey is an unexported type for context keys defined in this package.
type ctxKey struct{}

// WithTenant stores the given tenant ID in the context.
func WithTenant(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tid)
}

// FromContext retrieves the tenant ID stored in the context. Empty string if missing.
func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// Require returns the tenant ID or ErrMissing.
func Require(ctx context.Context) (string, error) {
	if tid := FromContext(ctx); tid != "" {
		return tid, nil
	}
	return "", ErrMissing
}
